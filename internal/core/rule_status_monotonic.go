package core

import (
	"context"
	"fmt"

	"secretsanta/pkg/domain"
)

// StatusMonotonicRule blocks a ready profile from reverting to pending and
// rejects unknown statuses.
func StatusMonotonicRule() domain.Rule {
	return statusMonotonicRule{}
}

type statusMonotonicRule struct{}

func (statusMonotonicRule) Name() string { return "status_monotonic" }

func (r statusMonotonicRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		before, after := domain.ProfileChange(change)
		if after == nil {
			continue
		}
		switch after.Status {
		case domain.StatusPending, domain.StatusReady:
		default:
			res.Violations = append(res.Violations, blocking(r.Name(), after.ID,
				fmt.Sprintf("profile %s has invalid status %q", after.ID, after.Status)))
			continue
		}
		if before != nil && before.IsReady() && !after.IsReady() {
			res.Violations = append(res.Violations, blocking(r.Name(), after.ID,
				fmt.Sprintf("profile %s cannot revert from ready to %s", after.ID, after.Status)))
		}
	}
	return res, nil
}
