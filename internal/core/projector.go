package core

import (
	"context"
	"sync"
)

// ParticipantReadiness is one roster row of the dashboard.
type ParticipantReadiness struct {
	Participant
	Status    ProfileStatus `json:"status"`
	HasTarget bool          `json:"has_target"`
}

// View is the projection every client renders. It is derived only by Project.
type View struct {
	Revision         uint64                 `json:"revision"`
	ReadyCount       int                    `json:"ready_count"`
	ReadyHumans      int                    `json:"ready_humans"`
	Total            int                    `json:"total"`
	AllHumansReady   bool                   `json:"all_humans_ready"`
	IsDrawDone       bool                   `json:"is_draw_done"`
	AnyAssigned      bool                   `json:"any_assigned"`
	Inconsistent     bool                   `json:"inconsistent"`
	Me               string                 `json:"me,omitempty"`
	MyProfile        *Profile               `json:"my_profile,omitempty"`
	MyAssignedTarget *Profile               `json:"my_assigned_target,omitempty"`
	Readiness        []ParticipantReadiness `json:"readiness"`
}

// Project derives the view of snapshot for participant me.
//
// ReadyCount counts ready records. ReadyHumans and Total count only the roster
// humans who gate the draw, so progress is shown as ReadyHumans of Total.
// IsDrawDone holds once every roster participant has a target. AnyAssigned
// holds once any record has one; the two differ only for a partially written
// draw, which Inconsistent flags. MyAssignedTarget resolves from me's own
// record regardless of the global flags.
func Project(roster Roster, snapshot Snapshot, me string) View {
	v := View{
		Revision:  snapshot.Revision,
		Total:     len(roster.Humans()),
		Me:        me,
		Readiness: make([]ParticipantReadiness, 0, roster.Len()),
	}
	for _, p := range snapshot.Profiles {
		if p.IsReady() {
			v.ReadyCount++
		}
		if p.HasTarget() {
			v.AnyAssigned = true
		}
	}

	allAssigned := roster.Len() > 0
	humansReady := true
	for _, participant := range roster.Participants() {
		row := ParticipantReadiness{Participant: participant, Status: StatusPending}
		if rec, ok := snapshot.Profiles[participant.ID]; ok {
			row.Status = rec.Status
			row.HasTarget = rec.HasTarget()
		}
		if !row.HasTarget {
			allAssigned = false
		}
		if !participant.IsPet() {
			if row.Status == StatusReady {
				v.ReadyHumans++
			} else {
				humansReady = false
			}
		}
		v.Readiness = append(v.Readiness, row)
	}
	v.AllHumansReady = humansReady
	v.IsDrawDone = allAssigned
	v.Inconsistent = v.AnyAssigned && !v.IsDrawDone

	if me == "" {
		return v
	}
	if rec, ok := snapshot.Profiles[me]; ok {
		mine := rec.Clone()
		v.MyProfile = &mine
		if rec.HasTarget() {
			v.MyAssignedTarget = resolveTarget(roster, snapshot, rec.Target())
		}
	}
	return v
}

func resolveTarget(roster Roster, snapshot Snapshot, id string) *Profile {
	if rec, ok := snapshot.Profiles[id]; ok {
		target := rec.Clone()
		return &target
	}
	participant, ok := roster.Find(id)
	if !ok {
		return nil
	}
	return &Profile{Base: Base{ID: id}, Name: participant.Name, Avatar: participant.Avatar, Status: StatusPending}
}

// LiveView keeps the projection of the latest store snapshot for one
// participant and fans it out to readers. Each reader holds at most one
// pending view; a newer view replaces an unread one.
type LiveView struct {
	roster Roster
	me     string
	logger Logger

	mu      sync.Mutex
	current View
	err     error
	readers map[chan View]struct{}
	closed  bool
	done    chan struct{}
}

// NewLiveView subscribes to store and blocks until the first snapshot has
// been projected. The view stops when ctx is done or the feed closes.
func NewLiveView(ctx context.Context, store PersistentStore, roster Roster, me string, logger Logger) (*LiveView, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	feed, err := store.Subscribe(ctx)
	if err != nil {
		return nil, SubscriptionError{Err: err}
	}
	lv := &LiveView{
		roster:  roster,
		me:      me,
		logger:  logger,
		readers: make(map[chan View]struct{}),
		done:    make(chan struct{}),
	}
	select {
	case snap, ok := <-feed:
		if !ok {
			if err := context.Cause(ctx); err != nil {
				return nil, SubscriptionError{Err: err}
			}
			return nil, SubscriptionError{Err: errFeedClosed}
		}
		lv.current = Project(roster, snap, me)
	case <-ctx.Done():
		return nil, SubscriptionError{Err: ctx.Err()}
	}
	go lv.loop(ctx, feed)
	return lv, nil
}

func (lv *LiveView) loop(ctx context.Context, feed <-chan Snapshot) {
	for snap := range feed {
		lv.publish(Project(lv.roster, snap, lv.me))
	}
	lv.mu.Lock()
	if ctx.Err() == nil {
		lv.err = SubscriptionError{Err: errFeedClosed}
		lv.logger.Error("live view feed closed; keeping last projection", "participant", lv.me, "revision", lv.current.Revision)
	}
	lv.closed = true
	for ch := range lv.readers {
		close(ch)
	}
	lv.readers = nil
	lv.mu.Unlock()
	close(lv.done)
}

type feedClosedError struct{}

func (feedClosedError) Error() string { return "change feed closed" }

var errFeedClosed = feedClosedError{}

func (lv *LiveView) publish(v View) {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	lv.current = v
	for ch := range lv.readers {
		offer(ch, v)
	}
}

func offer(ch chan View, v View) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}

// Current returns the latest projection.
func (lv *LiveView) Current() View {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	return lv.current
}

// Err reports a feed failure. The last projection stays available.
func (lv *LiveView) Err() error {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	return lv.err
}

// Done is closed once the live view stops receiving snapshots.
func (lv *LiveView) Done() <-chan struct{} { return lv.done }

// Updates delivers the current projection and then every newer one until ctx
// is done or the live view stops.
func (lv *LiveView) Updates(ctx context.Context) <-chan View {
	ch := make(chan View, 1)
	lv.mu.Lock()
	ch <- lv.current
	if lv.closed {
		close(ch)
		lv.mu.Unlock()
		return ch
	}
	lv.readers[ch] = struct{}{}
	lv.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-lv.done:
			return
		}
		lv.mu.Lock()
		defer lv.mu.Unlock()
		if _, ok := lv.readers[ch]; ok {
			delete(lv.readers, ch)
			close(ch)
		}
	}()
	return ch
}
