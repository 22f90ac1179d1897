// Package valkey relays store revisions between server instances sharing one
// durable backend. Each instance announces its commits on a pub/sub channel
// and reloads from the database when a peer announces a newer revision.
package valkey

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"secretsanta/pkg/domain"
)

// Store is the slice of a durable profile store the bridge drives.
type Store interface {
	Subscribe(ctx context.Context) (<-chan domain.Snapshot, error)
	Reload(ctx context.Context) error
}

// PubSub is the transport; NewPubSub adapts a valkey client to it.
type PubSub interface {
	Publish(ctx context.Context, channel, message string) error
	// Receive blocks delivering messages until ctx is done or the
	// connection fails.
	Receive(ctx context.Context, channel string, fn func(message string)) error
	Close()
}

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Channel returns the pub/sub channel for a deployment.
func Channel(deployment string) string {
	if deployment == "" {
		deployment = "default-app-id"
	}
	return "secretsanta:" + deployment + ":revision"
}

// Bridge connects one store to the deployment channel.
type Bridge struct {
	ps       PubSub
	store    Store
	channel  string
	instance string
	logger   Logger

	local     atomic.Uint64
	announced atomic.Uint64
	reloads   atomic.Uint64
}

// NewBridge constructs a bridge. logger may be nil.
func NewBridge(ps PubSub, store Store, deployment string, logger Logger) *Bridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		ps:       ps,
		store:    store,
		channel:  Channel(deployment),
		instance: uuid.NewString(),
		logger:   logger,
	}
}

// Reloads reports how many peer announcements triggered a reload.
func (b *Bridge) Reloads() uint64 { return b.reloads.Load() }

// Run announces local commits and applies peer announcements until ctx is
// done. It returns the first transport error, or nil on cancellation.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// The feed is bound to the inner context so a transport failure also
	// stops the announcer.
	feed, err := b.store.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe store: %w", err)
	}

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	fail := func(err error) {
		errOnce.Do(func() { runErr = err })
		cancel()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		for snap := range feed {
			b.local.Store(snap.Revision)
			if snap.Revision <= b.announced.Load() {
				continue
			}
			if err := b.ps.Publish(ctx, b.channel, b.encode(snap.Revision)); err != nil {
				if ctx.Err() != nil {
					return
				}
				b.logger.Warn("announce revision failed", "revision", snap.Revision, "error", err)
				continue
			}
			b.raiseAnnounced(snap.Revision)
		}
	}()
	go func() {
		defer wg.Done()
		err := b.ps.Receive(ctx, b.channel, func(msg string) { b.handle(ctx, msg) })
		if err != nil && ctx.Err() == nil {
			fail(fmt.Errorf("receive %s: %w", b.channel, err))
		}
	}()
	wg.Wait()
	return runErr
}

func (b *Bridge) handle(ctx context.Context, msg string) {
	instance, revision, err := decode(msg)
	if err != nil {
		b.logger.Warn("ignoring malformed revision announcement", "message", msg, "error", err)
		return
	}
	if instance == b.instance {
		return
	}
	// Peers already know this revision; do not echo it back after reloading.
	b.raiseAnnounced(revision)
	if revision <= b.local.Load() {
		return
	}
	if err := b.store.Reload(ctx); err != nil {
		b.logger.Warn("reload after peer commit failed", "revision", revision, "error", err)
		return
	}
	b.reloads.Add(1)
	b.logger.Info("reloaded after peer commit", "peer", instance, "revision", revision)
}

func (b *Bridge) raiseAnnounced(rev uint64) {
	for {
		cur := b.announced.Load()
		if rev <= cur || b.announced.CompareAndSwap(cur, rev) {
			return
		}
	}
}

func (b *Bridge) encode(rev uint64) string {
	return b.instance + ":" + strconv.FormatUint(rev, 10)
}

func decode(msg string) (string, uint64, error) {
	instance, rev, ok := strings.Cut(msg, ":")
	if !ok || instance == "" {
		return "", 0, errors.New("expected <instance>:<revision>")
	}
	n, err := strconv.ParseUint(rev, 10, 64)
	if err != nil {
		return "", 0, err
	}
	return instance, n, nil
}

type valkeyPubSub struct {
	client valkey.Client
}

// NewPubSub connects to a Valkey server at addr.
func NewPubSub(addr string) (PubSub, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("connect valkey %s: %w", addr, err)
	}
	return valkeyPubSub{client: client}, nil
}

func (v valkeyPubSub) Publish(ctx context.Context, channel, message string) error {
	return v.client.Do(ctx, v.client.B().Publish().Channel(channel).Message(message).Build()).Error()
}

func (v valkeyPubSub) Receive(ctx context.Context, channel string, fn func(string)) error {
	return v.client.Receive(ctx, v.client.B().Subscribe().Channel(channel).Build(), func(msg valkey.PubSubMessage) {
		fn(msg.Message)
	})
}

func (v valkeyPubSub) Close() { v.client.Close() }
