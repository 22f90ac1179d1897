package core

import (
	"fmt"
	"strings"
)

// ErrNotFound is returned when a record is missing.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError reports an invalid submission field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// AdminAuthError is returned when the admin passcode does not match. It never
// carries the expected value.
type AdminAuthError struct{}

func (AdminAuthError) Error() string { return "incorrect admin passcode" }

// PreconditionReason names the draw gate that failed.
type PreconditionReason string

// Draw gates.
const (
	ReasonNotAllReady  PreconditionReason = "not_all_ready"
	ReasonAlreadyDrawn PreconditionReason = "already_drawn"
)

// PreconditionFailedError is returned when the draw is attempted out of order.
type PreconditionFailedError struct {
	Reason  PreconditionReason
	Pending []string
}

func (e PreconditionFailedError) Error() string {
	switch e.Reason {
	case ReasonNotAllReady:
		return fmt.Sprintf("draw precondition failed: participants not ready: %s", strings.Join(e.Pending, ", "))
	case ReasonAlreadyDrawn:
		return "draw precondition failed: draw already done"
	default:
		return fmt.Sprintf("draw precondition failed: %s", e.Reason)
	}
}

// CommitError wraps a store failure after the draw gates passed. Nothing was
// written and the draw may be retried.
type CommitError struct {
	Err error
}

func (e CommitError) Error() string { return fmt.Sprintf("commit draw: %v", e.Err) }

func (e CommitError) Unwrap() error { return e.Err }

// SubscriptionError reports a change-feed failure. Readers keep the last
// known projection.
type SubscriptionError struct {
	Err error
}

func (e SubscriptionError) Error() string { return fmt.Sprintf("subscription: %v", e.Err) }

func (e SubscriptionError) Unwrap() error { return e.Err }
