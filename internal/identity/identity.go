// Package identity issues the opaque session tokens clients present to the
// API. Sign-in is anonymous: the token proves a session, not a person.
package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Identity is an established anonymous session.
type Identity struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

// Provider signs a client in.
type Provider interface {
	SignIn(ctx context.Context) (Identity, error)
}

// AuthInitError reports that no session could be established.
type AuthInitError struct {
	Attempts int
	Err      error
}

func (e AuthInitError) Error() string {
	return fmt.Sprintf("identity: sign-in failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e AuthInitError) Unwrap() error { return e.Err }

// DefaultTTL bounds how long an issued token verifies.
const DefaultTTL = 30 * 24 * time.Hour

// Anonymous issues random uuid tokens and remembers them for verification
// until they expire or are revoked.
type Anonymous struct {
	mu     sync.RWMutex
	issued map[string]Identity
	ttl    time.Duration
	nowFn  func() time.Time
	newID  func() (uuid.UUID, error)
}

// Option configures an Anonymous provider.
type Option func(*Anonymous)

// WithTTL sets the token lifetime; non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(a *Anonymous) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Anonymous) {
		if now != nil {
			a.nowFn = now
		}
	}
}

// NewAnonymous constructs an empty provider.
func NewAnonymous(opts ...Option) *Anonymous {
	a := &Anonymous{
		issued: make(map[string]Identity),
		ttl:    DefaultTTL,
		nowFn:  func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewRandom,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SignIn issues a fresh token and drops expired ones.
func (a *Anonymous) SignIn(ctx context.Context) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	id, err := a.newID()
	if err != nil {
		return Identity{}, fmt.Errorf("generate token: %w", err)
	}
	now := a.nowFn()
	ident := Identity{Token: id.String(), IssuedAt: now}
	a.mu.Lock()
	for token, prev := range a.issued {
		if a.expired(prev, now) {
			delete(a.issued, token)
		}
	}
	a.issued[ident.Token] = ident
	a.mu.Unlock()
	return ident, nil
}

// Verify reports whether token was issued by this provider and has not
// expired.
func (a *Anonymous) Verify(token string) (Identity, bool) {
	a.mu.RLock()
	ident, ok := a.issued[token]
	a.mu.RUnlock()
	if !ok {
		return Identity{}, false
	}
	if a.expired(ident, a.nowFn()) {
		a.Revoke(token)
		return Identity{}, false
	}
	return ident, true
}

// Revoke forgets token.
func (a *Anonymous) Revoke(token string) {
	a.mu.Lock()
	delete(a.issued, token)
	a.mu.Unlock()
}

// Len reports how many tokens are held.
func (a *Anonymous) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.issued)
}

func (a *Anonymous) expired(ident Identity, now time.Time) bool {
	return now.Sub(ident.IssuedAt) >= a.ttl
}

// SignInWithRetry calls p.SignIn up to attempts times, sleeping backoff
// between tries, and wraps the last failure in AuthInitError.
func SignInWithRetry(ctx context.Context, p Provider, attempts int, backoff time.Duration) (Identity, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		ident, err := p.SignIn(ctx)
		if err == nil {
			return ident, nil
		}
		lastErr = err
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return Identity{}, AuthInitError{Attempts: i, Err: ctx.Err()}
		case <-time.After(backoff):
		}
	}
	return Identity{}, AuthInitError{Attempts: attempts, Err: lastErr}
}
