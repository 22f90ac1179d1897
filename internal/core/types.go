package core

import "secretsanta/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Participant        = domain.Participant
	Roster             = domain.Roster
	Profile            = domain.Profile
	ProfileStatus      = domain.ProfileStatus
	GiftSuggestion     = domain.GiftSuggestion
	Snapshot           = domain.Snapshot
	Assignment         = domain.Assignment
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityProfile = domain.EntityProfile
)

const (
	StatusPending = domain.StatusPending
	StatusReady   = domain.StatusReady
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
)
