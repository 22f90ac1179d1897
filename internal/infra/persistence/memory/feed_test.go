package memory

import (
	"context"
	"testing"
	"time"

	"secretsanta/pkg/domain"
)

func createProfile(t *testing.T, store *Store, id string) {
	t.Helper()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateProfile(domain.Profile{Base: domain.Base{ID: id}})
		return err
	})
	if err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed unexpectedly")
		}
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestSubscribeDeliversCurrentSnapshotFirst(t *testing.T) {
	store := NewStore(nil)
	createProfile(t, store, "ana")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	first := receive(t, ch)
	if len(first.Profiles) != 1 || first.Revision != 1 {
		t.Fatalf("expected current snapshot, got %+v", first)
	}
	createProfile(t, store, "bia")
	second := receive(t, ch)
	if len(second.Profiles) != 2 || second.Revision != 2 {
		t.Fatalf("expected updated snapshot, got %+v", second)
	}
}

func TestSlowSubscriberSeesLatestSnapshot(t *testing.T) {
	store := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := store.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		createProfile(t, store, id)
	}
	latest := receive(t, ch)
	if latest.Revision != 4 || len(latest.Profiles) != 4 {
		t.Fatalf("expected coalesced latest snapshot, got revision %d with %d profiles", latest.Revision, len(latest.Profiles))
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected no further snapshots, got revision %d", extra.Revision)
	default:
	}
}

func TestSubscriptionClosesOnCancel(t *testing.T) {
	store := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := store.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	_ = receive(t, ch)
	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if store.Subscribers() != 0 {
					t.Fatalf("expected subscriber removed")
				}
				createProfile(t, store, "after-close")
				return
			}
		case <-deadline:
			t.Fatalf("channel not closed after cancel")
		}
	}
}

func TestSubscribeRejectsDoneContext(t *testing.T) {
	store := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Subscribe(ctx); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
