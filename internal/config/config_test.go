package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"secretsanta/internal/blob"
	"secretsanta/internal/core"
)

func mapLookup(m map[string]string) Lookup {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(mapLookup(nil))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Deployment != "default-app-id" || cfg.AdminPasscode != "1008" || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Storage.Driver != core.StorageSQLite || cfg.Storage.SQLitePath != "secretsanta.db" || cfg.Storage.Deployment != "default-app-id" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.SessionTTL != 720*time.Hour {
		t.Fatalf("unexpected session ttl %s", cfg.SessionTTL)
	}
	if cfg.Blob.Driver != blob.DriverFilesystem || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected blob/timeout %+v %s", cfg.Blob, cfg.ShutdownTimeout)
	}
	if cfg.GeminiModel != "gemini-2.5-flash" || cfg.CORSOrigins != nil {
		t.Fatalf("unexpected gemini/cors %q %v", cfg.GeminiModel, cfg.CORSOrigins)
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse(mapLookup(map[string]string{
		"SANTA_DEPLOYMENT_ID":      "office-2026",
		"SANTA_ADMIN_PASSCODE":     "4242",
		"SANTA_STORAGE_DRIVER":     "postgres",
		"SANTA_POSTGRES_DSN":       "postgres://santa@db/santa",
		"SANTA_BLOB_DRIVER":        "s3",
		"SANTA_BLOB_S3_BUCKET":     "avatars",
		"SANTA_BLOB_S3_PATH_STYLE": "true",
		"SANTA_CORS_ORIGINS":       " http://a.example , ,http://b.example",
		"SANTA_SHUTDOWN_TIMEOUT":   "3s",
		"SANTA_SESSION_TTL":        "12h",
		"SANTA_TRACE_LOG":          "true",
	}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Storage.Deployment != "office-2026" || cfg.Storage.PostgresDSN == "" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if !cfg.Blob.S3.PathStyle || cfg.Blob.S3.Bucket != "avatars" {
		t.Fatalf("unexpected s3 %+v", cfg.Blob.S3)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.AdminPasscode != "4242" || cfg.ShutdownTimeout != 3*time.Second || cfg.SessionTTL != 12*time.Hour || !cfg.TraceLog {
		t.Fatalf("unexpected passcode/timeout")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown storage":    {"SANTA_STORAGE_DRIVER": "mongo"},
		"postgres no dsn":    {"SANTA_STORAGE_DRIVER": "postgres"},
		"unknown blob":       {"SANTA_BLOB_DRIVER": "ftp"},
		"s3 no bucket":       {"SANTA_BLOB_DRIVER": "s3"},
		"bad path style":     {"SANTA_BLOB_S3_PATH_STYLE": "sometimes"},
		"bad timeout":        {"SANTA_SHUTDOWN_TIMEOUT": "soon"},
		"bad trace flag":     {"SANTA_TRACE_LOG": "loud"},
		"short passcode":     {"SANTA_ADMIN_PASSCODE": "12"},
		"non-positive delay": {"SANTA_SHUTDOWN_TIMEOUT": "0s"},
		"bad session ttl":    {"SANTA_SESSION_TTL": "-1h"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(mapLookup(env)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "santa.env")
	if err := os.WriteFile(path, []byte("SANTA_DEPLOYMENT_ID=from-file\nSANTA_HTTP_ADDR=:9999\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("SANTA_HTTP_ADDR", ":7000")
	t.Setenv("SANTA_DEPLOYMENT_ID", "")
	if err := os.Unsetenv("SANTA_DEPLOYMENT_ID"); err != nil {
		t.Fatalf("unset: %v", err)
	}
	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Deployment != "from-file" {
		t.Fatalf("expected deployment from file, got %q", cfg.Deployment)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Fatalf("environment must win over file, got %q", cfg.HTTPAddr)
	}
}
