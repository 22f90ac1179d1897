package domain

import (
	"fmt"
	"sort"
)

// Assignment maps each giver id to the id of the participant they give to.
type Assignment map[string]string

// Validate checks that a is a bijection over ids with no fixed point.
func (a Assignment) Validate(ids []string) error {
	if len(a) != len(ids) {
		return fmt.Errorf("assignment covers %d participants, want %d", len(a), len(ids))
	}
	members := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		members[id] = struct{}{}
	}
	received := make(map[string]string, len(a))
	for _, giver := range ids {
		target, ok := a[giver]
		if !ok {
			return fmt.Errorf("participant %s has no recipient", giver)
		}
		if target == giver {
			return fmt.Errorf("participant %s is assigned to themselves", giver)
		}
		if _, ok := members[target]; !ok {
			return fmt.Errorf("participant %s is assigned to unknown id %s", giver, target)
		}
		if prev, dup := received[target]; dup {
			return fmt.Errorf("participant %s receives from both %s and %s", target, prev, giver)
		}
		received[target] = giver
	}
	return nil
}

// Givers returns the giver ids in sorted order.
func (a Assignment) Givers() []string {
	out := make([]string, 0, len(a))
	for k := range a {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AssignmentFromProfiles collects the assigned targets currently present on
// the profiles. Profiles without a target are skipped.
func AssignmentFromProfiles(profiles []Profile) Assignment {
	out := make(Assignment, len(profiles))
	for _, p := range profiles {
		if p.HasTarget() {
			out[p.ID] = p.Target()
		}
	}
	return out
}
