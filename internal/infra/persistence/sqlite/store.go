// Package sqlite persists the profile store to a single SQLite table. The
// in-memory store remains the transactional core; every commit writes the
// full snapshot before it becomes visible.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sqldocs "secretsanta/docs/schema/sql"
	"secretsanta/internal/infra/persistence/memory"
	"secretsanta/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultPath       = "secretsanta.db"
	defaultDeployment = "default-app-id"
)

// Store persists the in-memory state to SQLite as a JSON snapshot keyed by deployment.
type Store struct {
	*memory.Store
	db     *sql.DB
	mu     sync.Mutex
	path   string
	bucket string
}

// NewStore constructs a snapshotting SQLite-backed persistent store scoped to
// the given deployment id.
func NewStore(path, deployment string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if deployment == "" {
		deployment = defaultDeployment
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single writer keeps the revision guard and the commit in one connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqldocs.SQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path, bucket: deployment + "/profiles"}
	if err := s.Reload(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.SetCommitHook(s.persist)
	return s, nil
}

// Reload replaces the in-memory state with the durable snapshot when the
// durable revision is ahead of the local one.
func (s *Store) Reload(ctx context.Context) error {
	var (
		revision int64
		payload  []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT revision, payload FROM santa_state WHERE bucket = ?`, s.bucket).Scan(&revision, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return fmt.Errorf("decode profiles: %w", err)
	}
	snapshot.Revision = uint64(revision)
	s.ImportNewer(snapshot)
	return nil
}

func (s *Store) persist(ctx context.Context, next domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	prev := int64(next.Revision) - 1
	res, err := s.db.ExecContext(ctx, `INSERT INTO santa_state(bucket,revision,payload) VALUES(?,?,?)
		ON CONFLICT(bucket) DO UPDATE SET revision=excluded.revision, payload=excluded.payload
		WHERE santa_state.revision = ?`, s.bucket, int64(next.Revision), data, prev)
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
	return nil
}

// RunInTransaction applies fn and persists the resulting snapshot before it
// becomes visible. On a revision conflict the store reloads the durable state
// so a retry operates on fresh data.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
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

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
