package core

import (
	"context"
	"fmt"

	"secretsanta/pkg/domain"
)

// DerangementIntegrityRule requires that, once any profile has a target, the
// targets of all roster participants form a permutation with no fixed point.
// A partially assigned roster is never committed.
func DerangementIntegrityRule(roster Roster) domain.Rule {
	return derangementIntegrityRule{roster: roster}
}

type derangementIntegrityRule struct {
	roster Roster
}

func (derangementIntegrityRule) Name() string { return "derangement_integrity" }

func (r derangementIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	touched := false
	for _, change := range changes {
		if change.Entity == domain.EntityProfile {
			touched = true
			break
		}
	}
	if !touched {
		return res, nil
	}
	assignment := domain.AssignmentFromProfiles(view.ListProfiles())
	if len(assignment) == 0 {
		return res, nil
	}
	if err := assignment.Validate(r.roster.IDs()); err != nil {
		res.Violations = append(res.Violations, blocking(r.Name(), "",
			fmt.Sprintf("assignment is not a derangement of the roster: %v", err)))
	}
	return res, nil
}
