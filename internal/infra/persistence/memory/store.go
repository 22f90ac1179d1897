// Package memory provides an in-memory implementation of the profile store
// used for tests, ephemeral environments, and as the transactional core of
// the durable backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"secretsanta/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Profile aliases domain.Profile for in-memory persistence operations.
	Profile = domain.Profile
	// Snapshot aliases domain.Snapshot.
	Snapshot = domain.Snapshot
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// CommitHook runs after rules pass and before the new state becomes visible.
// Returning an error aborts the commit, leaving the previous state in place.
type CommitHook func(ctx context.Context, next Snapshot) error

type memoryState struct {
	profiles map[string]Profile
	revision uint64
}

func newMemoryState() memoryState {
	return memoryState{profiles: make(map[string]Profile)}
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{profiles: make(map[string]Profile, len(s.profiles)), revision: s.revision}
	for k, v := range s.profiles {
		cloned.profiles[k] = v.Clone()
	}
	return cloned
}

func (s memoryState) snapshot(at time.Time) Snapshot {
	out := Snapshot{Profiles: make(map[string]Profile, len(s.profiles)), Revision: s.revision, TakenAt: at}
	for k, v := range s.profiles {
		out.Profiles[k] = v.Clone()
	}
	return out
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	state.revision = s.Revision
	for k, v := range s.Profiles {
		v.ID = k
		state.profiles[k] = v.Clone()
	}
	return state
}

// Store provides an in-memory transactional store for profile records.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	hook   CommitHook
	feed   *feed
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		feed:   newFeed(),
	}
}

// SetCommitHook installs the hook invoked before each commit becomes visible.
// Durable backends use it to persist the next snapshot atomically with the swap.
func (s *Store) SetCommitHook(hook CommitHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// SetNowFunc overrides the clock used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.snapshot(s.nowFn())
}

// ImportState replaces the store state with the provided snapshot and
// notifies subscribers.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
	s.feed.publish(s.state.snapshot(s.nowFn()))
}

// ImportNewer replaces the store state with snapshot only when it is ahead of
// the committed revision, and reports whether it did. Reloads racing with a
// local commit therefore never roll the state back.
func (s *Store) ImportNewer(snapshot Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snapshot.Revision <= s.state.revision {
		return false
	}
	s.state = memoryStateFromSnapshot(snapshot)
	s.feed.publish(s.state.snapshot(s.nowFn()))
	return true
}

// Revision returns the revision of the committed state.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.revision
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListProfiles returns all profiles within the snapshot ordered by id.
func (v transactionView) ListProfiles() []Profile {
	return sortedProfiles(v.state.profiles)
}

// FindProfile retrieves a profile by ID from the snapshot.
func (v transactionView) FindProfile(id string) (Profile, bool) {
	p, ok := v.state.profiles[id]
	if !ok {
		return Profile{}, false
	}
	return p.Clone(), true
}

func sortedProfiles(in map[string]Profile) []Profile {
	out := make([]Profile, 0, len(in))
	for _, p := range in {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn, the rules engine, and the
// commit hook all succeed; subscribers then receive the new snapshot.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}
	if len(tx.changes) == 0 {
		return Result{}, nil
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	tx.state.revision++
	next := tx.state.snapshot(tx.now)
	if s.hook != nil {
		if err := s.hook(ctx, next); err != nil {
			return result, err
		}
	}

	s.state = tx.state
	s.feed.publish(next)
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()

	view := newTransactionView(&snapshot)
	return fn(view)
}

// Subscribe registers a change-feed subscriber. The current snapshot is
// queued before Subscribe returns.
func (s *Store) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	current := s.state.snapshot(s.nowFn())
	ch := s.feed.add(current)
	s.mu.RUnlock()

	go func() {
		<-ctx.Done()
		s.feed.remove(ch)
	}()
	return ch, nil
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	return s.feed.size()
}

// GetProfile returns a profile by id.
func (s *Store) GetProfile(id string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.profiles[id]
	if !ok {
		return Profile{}, false
	}
	return p.Clone(), true
}

// ListProfiles returns all profiles ordered by id.
func (s *Store) ListProfiles() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedProfiles(s.state.profiles)
}

// helper to record and append change entries.
func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindProfile retrieves a profile from the transactional state.
func (tx *transaction) FindProfile(id string) (Profile, bool) {
	p, ok := tx.state.profiles[id]
	if !ok {
		return Profile{}, false
	}
	return p.Clone(), true
}

// CreateProfile stores a new profile within the transaction.
func (tx *transaction) CreateProfile(p Profile) (Profile, error) {
	if p.ID == "" {
		return Profile{}, fmt.Errorf("profile id required")
	}
	if _, exists := tx.state.profiles[p.ID]; exists {
		return Profile{}, fmt.Errorf("profile %q already exists", p.ID)
	}
	if p.Status == "" {
		p.Status = domain.StatusPending
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.profiles[p.ID] = p.Clone()
	tx.recordChange(Change{Entity: domain.EntityProfile, Action: domain.ActionCreate, After: p.Clone()})
	return p.Clone(), nil
}

// UpdateProfile mutates a profile using the provided mutator function.
func (tx *transaction) UpdateProfile(id string, mutator func(*Profile) error) (Profile, error) {
	current, ok := tx.state.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found", id)
	}
	before := current.Clone()
	if err := mutator(&current); err != nil {
		return Profile{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.profiles[id] = current.Clone()
	tx.recordChange(Change{Entity: domain.EntityProfile, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current.Clone(), nil
}

// UpsertProfile creates the profile when absent, then applies mutator.
func (tx *transaction) UpsertProfile(id string, mutator func(*Profile) error) (Profile, error) {
	if _, ok := tx.state.profiles[id]; ok {
		return tx.UpdateProfile(id, mutator)
	}
	p := Profile{Base: domain.Base{ID: id}, Status: domain.StatusPending}
	if err := mutator(&p); err != nil {
		return Profile{}, err
	}
	p.ID = id
	return tx.CreateProfile(p)
}
