package core

import "secretsanta/pkg/domain"

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set for
// the supplied roster.
func NewDefaultRulesEngine(roster Roster) *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(RosterMembershipRule(roster))
	engine.Register(StatusMonotonicRule())
	engine.Register(AssignmentImmutableRule())
	engine.Register(DerangementIntegrityRule(roster))
	return engine
}

func blocking(rule, entityID, msg string) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityProfile,
		EntityID: entityID,
	}
}
