// Package domain defines the persistent profile records, roster value types,
// and rule evaluation primitives used by secretsanta.
package domain

import (
	"sort"
	"time"
)

// EntityType identifies the type of record stored in the profile store.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityProfile identifies a participant profile record.
	EntityProfile EntityType = "profile"
)

// ParticipantKind distinguishes people from pets. It only changes prompt and
// reminder wording, plus exclusion from the readiness gate.
type ParticipantKind string

// Supported participant kinds.
const (
	KindHuman ParticipantKind = "human"
	KindPet   ParticipantKind = "pet"
)

// QuizSize is the number of quiz questions; answers are keyed 0..QuizSize-1.
const QuizSize = 10

// ProfileStatus tracks whether a participant has submitted their profile.
type ProfileStatus string

// Profile statuses. The transition pending -> ready is one-way within a cycle.
const (
	StatusPending ProfileStatus = "pending"
	StatusReady   ProfileStatus = "ready"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GiftSuggestion is a generated gift idea enriched with a marketplace link.
type GiftSuggestion struct {
	GiftName       string `json:"gift_name"`
	Reason         string `json:"reason"`
	MatchScore     int    `json:"match_score"`
	EstimatedPrice string `json:"estimated_price"`
	PurchaseLink   string `json:"purchase_link,omitempty"`
}

// Profile is the per-participant record shared by every client. Name and
// Avatar are denormalized copies of the roster entry at submission time.
type Profile struct {
	Base
	Name             string          `json:"name"`
	Avatar           string          `json:"avatar,omitempty"`
	Status           ProfileStatus   `json:"status"`
	ManualGift       string          `json:"manual_gift,omitempty"`
	QuizAnswers      map[int]string  `json:"quiz_answers,omitempty"`
	Suggestion       *GiftSuggestion `json:"suggestion,omitempty"`
	AssignedTargetID *string         `json:"assigned_target_id,omitempty"`
}

// IsReady reports whether the profile has been submitted.
func (p Profile) IsReady() bool { return p.Status == StatusReady }

// HasTarget reports whether the committer assigned a recipient to the profile.
func (p Profile) HasTarget() bool {
	return p.AssignedTargetID != nil && *p.AssignedTargetID != ""
}

// Target returns the assigned recipient id, or "" when none is set.
func (p Profile) Target() string {
	if !p.HasTarget() {
		return ""
	}
	return *p.AssignedTargetID
}

// Clone returns a deep copy safe to hand across goroutines.
func (p Profile) Clone() Profile {
	cp := p
	if p.QuizAnswers != nil {
		cp.QuizAnswers = make(map[int]string, len(p.QuizAnswers))
		for k, v := range p.QuizAnswers {
			cp.QuizAnswers[k] = v
		}
	}
	if p.Suggestion != nil {
		s := *p.Suggestion
		cp.Suggestion = &s
	}
	if p.AssignedTargetID != nil {
		t := *p.AssignedTargetID
		cp.AssignedTargetID = &t
	}
	return cp
}

// Snapshot is the full profile collection as observed at one point in time.
type Snapshot struct {
	Profiles map[string]Profile `json:"profiles"`
	Revision uint64             `json:"revision"`
	TakenAt  time.Time          `json:"taken_at"`
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	cp := Snapshot{Revision: s.Revision, TakenAt: s.TakenAt, Profiles: make(map[string]Profile, len(s.Profiles))}
	for k, v := range s.Profiles {
		cp.Profiles[k] = v.Clone()
	}
	return cp
}

// Sorted returns the profiles ordered by id.
func (s Snapshot) Sorted() []Profile {
	out := make([]Profile, 0, len(s.Profiles))
	for _, p := range s.Profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Change describes a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
)

// ProfileChange extracts typed before/after profiles from a change.
func ProfileChange(c Change) (before, after *Profile) {
	if c.Entity != EntityProfile {
		return nil, nil
	}
	if b, ok := c.Before.(Profile); ok {
		before = &b
	}
	if a, ok := c.After.(Profile); ok {
		after = &a
	}
	return before, after
}

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
