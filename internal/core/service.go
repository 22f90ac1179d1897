package core

import (
	"context"
	"crypto/subtle"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"secretsanta/internal/derangement"
	"secretsanta/internal/infra/persistence/memory"
	"secretsanta/pkg/domain"
)

// Service coordinates profile submission, the draw, and projections over a
// persistent store for one roster.
type Service struct {
	store    PersistentStore
	roster   Roster
	logger   Logger
	clock    Clock
	audit    AuditRecorder
	metrics  MetricsRecorder
	tracer   Tracer
	passcode string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, roster Roster, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		store:    store,
		roster:   roster,
		logger:   o.logger,
		clock:    o.clock,
		audit:    o.audit,
		metrics:  o.metrics,
		tracer:   o.tracer,
		passcode: o.passcode,
		rng:      o.rng,
	}
}

// NewInMemoryService creates a service and in-memory store guarded by the
// default rules for roster.
func NewInMemoryService(roster Roster, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(NewDefaultRulesEngine(roster)), roster, opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Roster returns the participant roster.
func (s *Service) Roster() Roster { return s.roster }

// Submission is the content a participant sends when completing their profile.
type Submission struct {
	ManualGift  string          `json:"manual_gift"`
	QuizAnswers map[int]string  `json:"quiz_answers"`
	Suggestion  *GiftSuggestion `json:"suggestion,omitempty"`
}

func (sub Submission) validate() error {
	if strings.TrimSpace(sub.ManualGift) == "" {
		return ValidationError{Field: "manual_gift", Message: "must not be empty"}
	}
	for idx := range sub.QuizAnswers {
		if idx < 0 || idx >= domain.QuizSize {
			return ValidationError{Field: "quiz_answers", Message: "question index out of range"}
		}
	}
	if sg := sub.Suggestion; sg != nil {
		if strings.TrimSpace(sg.GiftName) == "" {
			return ValidationError{Field: "suggestion", Message: "gift name must not be empty"}
		}
		if sg.MatchScore < 0 || sg.MatchScore > 100 {
			return ValidationError{Field: "suggestion", Message: "match score must be within 0..100"}
		}
	}
	return nil
}

// SubmitProfile upserts the participant's profile and marks it ready. Content
// is overwritten; an assigned target, if any, is preserved.
func (s *Service) SubmitProfile(ctx context.Context, participantID string, sub Submission) (Profile, Result, error) {
	var saved Profile
	var res Result
	err := s.run(ctx, "submit_profile", ActionUpdate, participantID, func(ctx context.Context) error {
		participant, ok := s.roster.Find(participantID)
		if !ok {
			return ErrNotFound{Entity: EntityProfile, ID: participantID}
		}
		if err := sub.validate(); err != nil {
			return err
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			saved, txErr = tx.UpsertProfile(participant.ID, func(p *Profile) error {
				p.Name = participant.Name
				p.Avatar = participant.Avatar
				p.Status = StatusReady
				p.ManualGift = strings.TrimSpace(sub.ManualGift)
				p.QuizAnswers = copyAnswers(sub.QuizAnswers)
				p.Suggestion = nil
				if sub.Suggestion != nil {
					sg := *sub.Suggestion
					p.Suggestion = &sg
				}
				return nil
			})
			return txErr
		})
		return err
	})
	return saved, res, err
}

func copyAnswers(in map[int]string) map[int]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[int]string, len(in))
	for k, v := range in {
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// CommitDraw verifies the admin passcode, checks the draw gates against the
// transactional state, and writes a derangement of the whole roster in one
// atomic commit. Concurrent callers are serialized by the store; the loser
// observes ReasonAlreadyDrawn.
func (s *Service) CommitDraw(ctx context.Context, passcode string) (Assignment, Result, error) {
	var assignment Assignment
	var res Result
	err := s.run(ctx, "commit_draw", ActionUpdate, "", func(ctx context.Context) error {
		if subtle.ConstantTimeCompare([]byte(passcode), []byte(s.passcode)) != 1 {
			return AdminAuthError{}
		}
		var gateErr error
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if gateErr = CheckDrawPreconditions(s.roster, tx.Snapshot().ListProfiles()); gateErr != nil {
				return gateErr
			}
			drawn, genErr := s.generate(s.roster.IDs())
			if genErr != nil {
				gateErr = genErr
				return genErr
			}
			for _, p := range s.roster.Participants() {
				participant := p
				target := drawn[participant.ID]
				if _, upErr := tx.UpsertProfile(participant.ID, func(rec *Profile) error {
					if rec.Name == "" {
						rec.Name = participant.Name
						rec.Avatar = participant.Avatar
					}
					rec.AssignedTargetID = &target
					return nil
				}); upErr != nil {
					return upErr
				}
			}
			assignment = drawn
			return nil
		})
		if gateErr != nil {
			assignment = nil
			return gateErr
		}
		if err != nil {
			assignment = nil
			return CommitError{Err: err}
		}
		return nil
	})
	return assignment, res, err
}

func (s *Service) generate(ids []string) (Assignment, error) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return derangement.Generate(ids, s.rng)
}

// Profile returns one profile record.
func (s *Service) Profile(_ context.Context, id string) (Profile, error) {
	p, ok := s.store.GetProfile(id)
	if !ok {
		return Profile{}, ErrNotFound{Entity: EntityProfile, ID: id}
	}
	return p, nil
}

type stateExporter interface {
	ExportState() Snapshot
}

// Snapshot returns the current full profile collection.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	if exp, ok := s.store.(stateExporter); ok {
		return exp.ExportState(), nil
	}
	snap := Snapshot{Profiles: map[string]Profile{}, TakenAt: s.clock.Now()}
	err := s.store.View(ctx, func(v TransactionView) error {
		for _, p := range v.ListProfiles() {
			snap.Profiles[p.ID] = p
		}
		return nil
	})
	return snap, err
}

// View projects the current snapshot for participant me. me may be empty.
func (s *Service) View(ctx context.Context, me string) (View, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return View{}, err
	}
	return Project(s.roster, snap, me), nil
}

// Subscribe returns a live projection for participant me.
func (s *Service) Subscribe(ctx context.Context, me string) (*LiveView, error) {
	return NewLiveView(ctx, s.store, s.roster, me, s.logger)
}

func (s *Service) run(ctx context.Context, op string, action Action, entityID string, fn func(context.Context) error) error {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	duration := time.Since(started)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.recordAuditError(ctx, op, action, entityID, duration, err)
		if isExpected(err) {
			s.logger.Warn("operation rejected", "operation", op, "entity_id", entityID, "error", err)
		} else {
			s.logger.Error("operation failed", "operation", op, "entity_id", entityID, "error", err)
		}
		return err
	}
	s.recordAuditSuccess(ctx, op, action, entityID, duration)
	s.logger.Info("operation completed", "operation", op, "entity_id", entityID, "duration_ms", duration.Milliseconds())
	return nil
}

func isExpected(err error) bool {
	var (
		auth       AdminAuthError
		pre        PreconditionFailedError
		validation ValidationError
		notFound   ErrNotFound
	)
	return errors.As(err, &auth) || errors.As(err, &pre) || errors.As(err, &validation) || errors.As(err, &notFound)
}

func (s *Service) recordAuditSuccess(ctx context.Context, op string, action Action, entityID string, duration time.Duration) {
	s.audit.Record(ctx, AuditEntry{
		ID:        uuid.NewString(),
		Operation: op,
		Entity:    EntityProfile,
		Action:    action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	})
}

func (s *Service) recordAuditError(ctx context.Context, op string, action Action, entityID string, duration time.Duration, err error) {
	s.audit.Record(ctx, AuditEntry{
		ID:        uuid.NewString(),
		Operation: op,
		Entity:    EntityProfile,
		Action:    action,
		EntityID:  entityID,
		Status:    AuditStatusError,
		Error:     err.Error(),
		Duration:  duration,
		Timestamp: s.clock.Now(),
	})
}
