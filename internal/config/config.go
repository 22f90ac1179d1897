// Package config reads server settings from SANTA_* environment variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"secretsanta/internal/blob"
	"secretsanta/internal/core"
)

// Config is the immutable server configuration.
type Config struct {
	Deployment      string
	AdminPasscode   string
	HTTPAddr        string
	ShutdownTimeout time.Duration
	SessionTTL      time.Duration
	LogLevel        string
	TraceLog        bool

	Storage core.StorageConfig
	Blob    blob.Config

	ValkeyAddr      string
	GeminiAPIKey    string
	GeminiModel     string
	MarketplaceBase string
	CORSOrigins     []string
}

// Lookup resolves a variable; os.LookupEnv satisfies it.
type Lookup func(key string) (string, bool)

// Load reads .env files (missing files are skipped) into the process
// environment without overriding variables already set, then parses it.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return Parse(os.LookupEnv)
}

// Parse builds a Config from lookup, applying defaults.
func Parse(lookup Lookup) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	cfg := Config{
		Deployment:      get("SANTA_DEPLOYMENT_ID", "default-app-id"),
		AdminPasscode:   get("SANTA_ADMIN_PASSCODE", core.DefaultAdminPasscode),
		HTTPAddr:        get("SANTA_HTTP_ADDR", ":8080"),
		LogLevel:        strings.ToLower(get("SANTA_LOG_LEVEL", "info")),
		ValkeyAddr:      get("SANTA_VALKEY_ADDR", ""),
		GeminiAPIKey:    get("SANTA_GEMINI_API_KEY", ""),
		GeminiModel:     get("SANTA_GEMINI_MODEL", "gemini-2.5-flash"),
		MarketplaceBase: get("SANTA_MARKETPLACE_BASE", "https://lista.mercadolivre.com.br"),
		CORSOrigins:     splitList(get("SANTA_CORS_ORIGINS", "")),
	}

	traceLog, err := strconv.ParseBool(get("SANTA_TRACE_LOG", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("SANTA_TRACE_LOG: %w", err)
	}
	cfg.TraceLog = traceLog

	timeout, err := time.ParseDuration(get("SANTA_SHUTDOWN_TIMEOUT", "10s"))
	if err != nil || timeout <= 0 {
		return Config{}, fmt.Errorf("SANTA_SHUTDOWN_TIMEOUT: invalid duration %q", get("SANTA_SHUTDOWN_TIMEOUT", ""))
	}
	cfg.ShutdownTimeout = timeout

	sessionTTL, err := time.ParseDuration(get("SANTA_SESSION_TTL", "720h"))
	if err != nil || sessionTTL <= 0 {
		return Config{}, fmt.Errorf("SANTA_SESSION_TTL: invalid duration %q", get("SANTA_SESSION_TTL", ""))
	}
	cfg.SessionTTL = sessionTTL

	cfg.Storage = core.StorageConfig{
		Driver:      core.StorageDriver(get("SANTA_STORAGE_DRIVER", string(core.StorageSQLite))),
		SQLitePath:  get("SANTA_SQLITE_PATH", "secretsanta.db"),
		PostgresDSN: get("SANTA_POSTGRES_DSN", ""),
		Deployment:  cfg.Deployment,
	}
	switch cfg.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if cfg.Storage.PostgresDSN == "" {
			return Config{}, fmt.Errorf("SANTA_POSTGRES_DSN required for postgres storage")
		}
	default:
		return Config{}, fmt.Errorf("SANTA_STORAGE_DRIVER: unknown driver %q", cfg.Storage.Driver)
	}

	pathStyle, err := strconv.ParseBool(get("SANTA_BLOB_S3_PATH_STYLE", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("SANTA_BLOB_S3_PATH_STYLE: %w", err)
	}
	cfg.Blob = blob.Config{
		Driver: blob.Driver(get("SANTA_BLOB_DRIVER", string(blob.DriverFilesystem))),
		FSRoot: get("SANTA_BLOB_FS_ROOT", "./blobdata"),
		S3: blob.S3Config{
			Bucket:    get("SANTA_BLOB_S3_BUCKET", ""),
			Region:    get("SANTA_BLOB_S3_REGION", "us-east-1"),
			Endpoint:  get("SANTA_BLOB_S3_ENDPOINT", ""),
			PathStyle: pathStyle,
		},
	}
	switch cfg.Blob.Driver {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if cfg.Blob.S3.Bucket == "" {
			return Config{}, fmt.Errorf("SANTA_BLOB_S3_BUCKET required for s3 blob driver")
		}
	default:
		return Config{}, fmt.Errorf("SANTA_BLOB_DRIVER: unknown driver %q", cfg.Blob.Driver)
	}

	if len([]rune(cfg.AdminPasscode)) != 4 {
		return Config{}, fmt.Errorf("SANTA_ADMIN_PASSCODE must be 4 characters")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
