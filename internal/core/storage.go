package core

import (
	"context"
	"fmt"

	"secretsanta/internal/infra/persistence/memory"
	"secretsanta/internal/infra/persistence/postgres"
	"secretsanta/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and parameterizes a backend. Deployment scopes the
// profile collection so several draws can share one database.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	Deployment  string
}

// Reloader is implemented by durable stores whose state can be advanced by
// another process.
type Reloader interface {
	Reload(ctx context.Context) error
}

// OpenPersistentStore selects a backend from cfg. An empty driver means sqlite.
func OpenPersistentStore(cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, cfg.Deployment, engine)
	case StoragePostgres:
		return postgres.NewStore(cfg.PostgresDSN, cfg.Deployment, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
