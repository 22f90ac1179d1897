package domain

import (
	"context"
	"fmt"
)

// Transaction exposes the profile operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateProfile(Profile) (Profile, error)
	UpdateProfile(id string, mutator func(*Profile) error) (Profile, error)
	// UpsertProfile creates the record with the given id when missing and then
	// applies mutator, merging into whatever the record already holds.
	UpsertProfile(id string, mutator func(*Profile) error) (Profile, error)
	FindProfile(id string) (Profile, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListProfiles() []Profile
	FindProfile(id string) (Profile, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	// Subscribe delivers the current snapshot immediately and then the latest
	// snapshot after every commit. Intermediate snapshots may be skipped when
	// the reader is slow. The channel closes when ctx is done.
	Subscribe(ctx context.Context) (<-chan Snapshot, error)
	GetProfile(id string) (Profile, bool)
	ListProfiles() []Profile
}

// ConflictError reports that the durable copy advanced past the revision the
// transaction was based on, typically because another instance committed
// first. The caller may reload and retry.
type ConflictError struct {
	Expected uint64
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("store conflict: durable state is no longer at revision %d", e.Expected)
}
