package core

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"secretsanta/internal/derangement"
	"secretsanta/internal/infra/persistence/memory"
	"secretsanta/pkg/domain"
)

func TestSubmitProfileMarksReady(t *testing.T) {
	svc := NewInMemoryService(testRoster())
	sub := submission("  a scarf ")
	sub.Suggestion = &GiftSuggestion{GiftName: "Wool scarf", MatchScore: 90, EstimatedPrice: "R$ 45"}
	saved, _, err := svc.SubmitProfile(context.Background(), "a", sub)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !saved.IsReady() || saved.ManualGift != "a scarf" || saved.Name != "Alice" || saved.Avatar != "https://img/a" {
		t.Fatalf("unexpected saved profile %+v", saved)
	}
	if saved.Suggestion == nil || saved.Suggestion.GiftName != "Wool scarf" {
		t.Fatalf("expected suggestion to be stored")
	}
	got, err := svc.Profile(context.Background(), "a")
	if err != nil || len(got.QuizAnswers) != domain.QuizSize {
		t.Fatalf("expected stored quiz answers, got %+v (%v)", got, err)
	}
}

func TestSubmitProfileResubmissionKeepsReadyAndOverwrites(t *testing.T) {
	svc := NewInMemoryService(testRoster())
	ctx := context.Background()
	first := submission("book")
	first.Suggestion = &GiftSuggestion{GiftName: "Novel", MatchScore: 70}
	if _, _, err := svc.SubmitProfile(ctx, "a", first); err != nil {
		t.Fatalf("first: %v", err)
	}
	saved, _, err := svc.SubmitProfile(ctx, "a", Submission{ManualGift: "tea"})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !saved.IsReady() || saved.ManualGift != "tea" || saved.Suggestion != nil || saved.QuizAnswers != nil {
		t.Fatalf("expected overwrite keeping ready, got %+v", saved)
	}
}

func TestSubmitProfileValidation(t *testing.T) {
	svc := NewInMemoryService(testRoster())
	ctx := context.Background()
	cases := []struct {
		name string
		id   string
		sub  Submission
	}{
		{"empty gift", "a", Submission{ManualGift: "   "}},
		{"quiz index", "a", Submission{ManualGift: "x", QuizAnswers: map[int]string{domain.QuizSize: "late"}}},
		{"score range", "a", Submission{ManualGift: "x", Suggestion: &GiftSuggestion{GiftName: "y", MatchScore: 101}}},
		{"unnamed suggestion", "a", Submission{ManualGift: "x", Suggestion: &GiftSuggestion{MatchScore: 50}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.SubmitProfile(ctx, tc.id, tc.sub)
			var validation ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	_, _, err := svc.SubmitProfile(ctx, "stranger", submission("x"))
	var notFound ErrNotFound
	if !errors.As(err, &notFound) || notFound.ID != "stranger" {
		t.Fatalf("expected not found for unknown participant, got %v", err)
	}
	if len(svc.Store().ListProfiles()) != 0 {
		t.Fatalf("rejected submissions must not write")
	}
}

func TestCommitDrawWrongPasscode(t *testing.T) {
	svc := NewInMemoryService(testRoster())
	mustSubmit(t, svc, "a", "b", "c")
	_, _, err := svc.CommitDraw(context.Background(), "0000")
	var auth AdminAuthError
	if !errors.As(err, &auth) {
		t.Fatalf("expected AdminAuthError, got %v", err)
	}
	for _, p := range svc.Store().ListProfiles() {
		if p.HasTarget() {
			t.Fatalf("wrong passcode must not draw")
		}
	}
}

func TestCommitDrawRejectsWhenHumanPending(t *testing.T) {
	svc := NewInMemoryService(testRoster())
	mustSubmit(t, svc, "a", "b")
	before, _ := svc.Snapshot(context.Background())

	_, _, err := svc.CommitDraw(context.Background(), DefaultAdminPasscode)
	var pre PreconditionFailedError
	if !errors.As(err, &pre) || pre.Reason != ReasonNotAllReady {
		t.Fatalf("expected not_all_ready, got %v", err)
	}
	if len(pre.Pending) != 1 || pre.Pending[0] != "c" {
		t.Fatalf("expected c pending, got %v", pre.Pending)
	}
	after, _ := svc.Snapshot(context.Background())
	if after.Revision != before.Revision || len(after.Profiles) != len(before.Profiles) {
		t.Fatalf("store modified by rejected draw")
	}
}

func TestCommitDrawAssignsWholeRosterIncludingPets(t *testing.T) {
	roster := testRoster()
	svc := NewInMemoryService(roster, WithRand(rand.New(rand.NewPCG(1, 2))))
	mustSubmit(t, svc, "a", "b", "c")

	assignment, _, err := svc.CommitDraw(context.Background(), DefaultAdminPasscode)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := assignment.Validate(roster.IDs()); err != nil {
		t.Fatalf("invalid assignment: %v", err)
	}
	stored := domain.AssignmentFromProfiles(svc.Store().ListProfiles())
	if err := stored.Validate(roster.IDs()); err != nil {
		t.Fatalf("stored assignment invalid: %v", err)
	}
	for giver, target := range assignment {
		if stored[giver] != target {
			t.Fatalf("stored assignment differs for %s", giver)
		}
	}
	pet, err := svc.Profile(context.Background(), "p")
	if err != nil {
		t.Fatalf("pet profile: %v", err)
	}
	if pet.IsReady() || pet.Name != "Paçoca" || !pet.HasTarget() {
		t.Fatalf("expected pending pet record with target, got %+v", pet)
	}
	a, _ := svc.Profile(context.Background(), "a")
	if a.ManualGift != "gift for a" {
		t.Fatalf("draw must merge into existing profile, got %+v", a)
	}
}

func TestCommitDrawSecondCallRejected(t *testing.T) {
	svc := NewInMemoryService(testRoster())
	mustSubmit(t, svc, "a", "b", "c")
	ctx := context.Background()
	first, _, err := svc.CommitDraw(ctx, DefaultAdminPasscode)
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	_, _, err = svc.CommitDraw(ctx, DefaultAdminPasscode)
	var pre PreconditionFailedError
	if !errors.As(err, &pre) || pre.Reason != ReasonAlreadyDrawn {
		t.Fatalf("expected already_drawn, got %v", err)
	}
	stored := domain.AssignmentFromProfiles(svc.Store().ListProfiles())
	for giver, target := range first {
		if stored[giver] != target {
			t.Fatalf("second call changed the assignment")
		}
	}
}

func TestCommitDrawAllOrNothingOnStoreFailure(t *testing.T) {
	roster := testRoster()
	store := memory.NewStore(NewDefaultRulesEngine(roster))
	svc := NewService(store, roster)
	mustSubmit(t, svc, "a", "b", "c")

	writeErr := errors.New("write failed")
	store.SetCommitHook(func(context.Context, domain.Snapshot) error { return writeErr })
	_, _, err := svc.CommitDraw(context.Background(), DefaultAdminPasscode)
	var commitErr CommitError
	if !errors.As(err, &commitErr) || !errors.Is(err, writeErr) {
		t.Fatalf("expected CommitError wrapping write failure, got %v", err)
	}
	for _, p := range store.ListProfiles() {
		if p.HasTarget() {
			t.Fatalf("partial draw observable on %s", p.ID)
		}
	}
	if _, ok := store.GetProfile("p"); ok {
		t.Fatalf("pet record must not exist after failed commit")
	}

	store.SetCommitHook(nil)
	if _, _, err := svc.CommitDraw(context.Background(), DefaultAdminPasscode); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestCommitDrawConcurrentCallersOnlyOneWins(t *testing.T) {
	svc := NewInMemoryService(testRoster())
	mustSubmit(t, svc, "a", "b", "c")

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.CommitDraw(context.Background(), DefaultAdminPasscode)
		}(i)
	}
	wg.Wait()
	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var pre PreconditionFailedError
		if !errors.As(err, &pre) || pre.Reason != ReasonAlreadyDrawn {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning draw, got %d", wins)
	}
}

func TestCommitDrawIsDeterministicWithSeededRand(t *testing.T) {
	draw := func() Assignment {
		svc := NewInMemoryService(testRoster(), WithRand(rand.New(rand.NewPCG(9, 9))))
		mustSubmit(t, svc, "a", "b", "c")
		a, _, err := svc.CommitDraw(context.Background(), DefaultAdminPasscode)
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
		return a
	}
	first, second := draw(), draw()
	for giver, target := range first {
		if second[giver] != target {
			t.Fatalf("expected identical draws, got %v and %v", first, second)
		}
	}
}

func TestCommitDrawPropagatesGeneratorFailure(t *testing.T) {
	roster := domain.MustRoster(domain.Participant{ID: "solo", Name: "Solo"})
	svc := NewInMemoryService(roster)
	mustSubmit(t, svc, "solo")
	_, _, err := svc.CommitDraw(context.Background(), DefaultAdminPasscode)
	var degenerate derangement.DegenerateInputError
	if !errors.As(err, &degenerate) {
		t.Fatalf("expected degenerate input error, got %v", err)
	}
	p, _ := svc.Profile(context.Background(), "solo")
	if p.HasTarget() {
		t.Fatalf("failed generation must not write")
	}
}

func TestCustomPasscode(t *testing.T) {
	svc := NewInMemoryService(testRoster(), WithAdminPasscode("4242"))
	mustSubmit(t, svc, "a", "b", "c")
	if _, _, err := svc.CommitDraw(context.Background(), DefaultAdminPasscode); err == nil {
		t.Fatalf("default passcode must be rejected once overridden")
	}
	if _, _, err := svc.CommitDraw(context.Background(), "4242"); err != nil {
		t.Fatalf("commit with configured passcode: %v", err)
	}
}

func TestProfileNotFound(t *testing.T) {
	svc := NewInMemoryService(testRoster())
	_, err := svc.Profile(context.Background(), "a")
	var notFound ErrNotFound
	if !errors.As(err, &notFound) || notFound.Error() != "profile a not found" {
		t.Fatalf("expected not found, got %v", err)
	}
}
