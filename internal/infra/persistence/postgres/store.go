// Package postgres provides a Postgres-backed persistent store that mirrors the
// in-memory semantics and writes every committed snapshot under a revision guard.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	sqldocs "secretsanta/docs/schema/sql"
	"secretsanta/internal/infra/persistence/memory"
	"secretsanta/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenPersistentStore defaults while allowing overrides via env.
	defaultDSN        = "postgres://localhost/secretsanta?sslmode=disable"
	defaultDeployment = "default-app-id"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db     *sql.DB
	mu     sync.Mutex
	bucket string
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN).
// It ensures the snapshot table exists and hydrates the in-memory store from
// the deployment's snapshot.
func NewStore(dsn, deployment string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	if deployment == "" {
		deployment = defaultDeployment
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		return nil, err
	}
	s := &Store{Store: memory.NewStore(engine), db: db, bucket: deployment + "/profiles"}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	s.SetCommitHook(s.persist)
	return s, nil
}

// RunInTransaction applies fn and persists the resulting snapshot before it
// becomes visible. A revision conflict triggers a reload so a retry sees the
// other writer's state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	var conflict domain.ConflictError
	if errors.As(err, &conflict) {
		if rErr := s.Reload(ctx); rErr != nil {
			return res, errors.Join(err, rErr)
		}
	}
	return res, err
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqldocs.Postgres); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

// Reload replaces the in-memory state with the durable snapshot when the
// durable revision is ahead of the local one.
func (s *Store) Reload(ctx context.Context) error {
	snapshot, found, err := loadSnapshot(ctx, s.db, s.bucket)
	if err != nil {
		return err
	}
	if found {
		s.ImportNewer(snapshot)
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB, bucket string) (domain.Snapshot, bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, revision, payload FROM santa_state`)
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		snapshot domain.Snapshot
		found    bool
	)
	for rows.Next() {
		var (
			name     string
			revision int64
			payload  []byte
		)
		if err := rows.Scan(&name, &revision, &payload); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("scan state: %w", err)
		}
		if name != bucket || len(payload) == 0 {
			continue
		}
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("decode %s: %w", bucket, err)
		}
		snapshot.Revision = uint64(revision)
		found = true
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, found, nil
}

func (s *Store) persist(ctx context.Context, next domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.bucket, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	prev := int64(next.Revision) - 1
	res, err := tx.ExecContext(ctx, `INSERT INTO santa_state(bucket,revision,payload) VALUES($1,$2,$3) ON CONFLICT(bucket) DO UPDATE SET revision=EXCLUDED.revision, payload=EXCLUDED.payload WHERE santa_state.revision = $4`,
		s.bucket, int64(next.Revision), data, prev)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", s.bucket, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ConflictError{Expected: uint64(prev)}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
