package core

import (
	"context"
	"fmt"

	"secretsanta/pkg/domain"
)

// RosterMembershipRule blocks profile records whose id is not on the roster.
func RosterMembershipRule(roster Roster) domain.Rule {
	return rosterMembershipRule{roster: roster}
}

type rosterMembershipRule struct {
	roster Roster
}

func (rosterMembershipRule) Name() string { return "roster_membership" }

func (r rosterMembershipRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		_, after := domain.ProfileChange(change)
		if after == nil || r.roster.Contains(after.ID) {
			continue
		}
		res.Violations = append(res.Violations, blocking(r.Name(), after.ID,
			fmt.Sprintf("profile %s does not belong to the roster", after.ID)))
	}
	return res, nil
}
