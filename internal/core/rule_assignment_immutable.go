package core

import (
	"context"
	"fmt"

	"secretsanta/pkg/domain"
)

// AssignmentImmutableRule blocks changes to an assigned target once it is set.
func AssignmentImmutableRule() domain.Rule {
	return assignmentImmutableRule{}
}

type assignmentImmutableRule struct{}

func (assignmentImmutableRule) Name() string { return "assignment_immutable" }

func (r assignmentImmutableRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		before, after := domain.ProfileChange(change)
		if before == nil || after == nil || !before.HasTarget() {
			continue
		}
		if after.Target() != before.Target() {
			res.Violations = append(res.Violations, blocking(r.Name(), after.ID,
				fmt.Sprintf("profile %s already gives to %s", after.ID, before.Target())))
		}
	}
	return res, nil
}
