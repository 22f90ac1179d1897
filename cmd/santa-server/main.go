// Command santa-server runs the Secret Santa HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"secretsanta/internal/adapters/httpapi"
	"secretsanta/internal/avatars"
	"secretsanta/internal/blob"
	"secretsanta/internal/config"
	"secretsanta/internal/core"
	"secretsanta/internal/identity"
	"secretsanta/internal/infra/feed/valkey"
	"secretsanta/internal/roster"
	"secretsanta/internal/suggest"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "santa-server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	participants := roster.Default()
	store, err := core.OpenPersistentStore(cfg.Storage, core.NewDefaultRulesEngine(participants))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	opts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithAuditRecorder(core.LogAuditRecorder{Logger: logger}),
		core.WithAdminPasscode(cfg.AdminPasscode),
	}
	if cfg.TraceLog {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(os.Stderr)))
	}
	svc := core.NewService(store, participants, opts...)

	blobStore, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	av := avatars.New(blobStore, participants, cfg.Deployment, "/api/v1/avatars")

	if cfg.GeminiAPIKey == "" {
		logger.Warn("no Gemini API key configured; gift suggestions will use the fallback pair")
	}
	suggester := suggest.New(suggest.Config{
		APIKey:          cfg.GeminiAPIKey,
		Model:           cfg.GeminiModel,
		MarketplaceBase: cfg.MarketplaceBase,
		Logger:          logger,
	})

	if cfg.ValkeyAddr != "" {
		if err := startBridge(ctx, cfg, store, logger); err != nil {
			return err
		}
	}

	api := httpapi.NewHandler(svc, identity.NewAnonymous(identity.WithTTL(cfg.SessionTTL)), suggester, av, logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(api, reg, cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "deployment", cfg.Deployment,
			"storage", cfg.Storage.Driver, "blob", blobStore.Driver())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func startBridge(ctx context.Context, cfg config.Config, store core.PersistentStore, logger *slog.Logger) error {
	reloadable, ok := store.(valkey.Store)
	if !ok {
		logger.Warn("valkey configured but storage driver cannot reload; cross-instance feed disabled", "storage", cfg.Storage.Driver)
		return nil
	}
	ps, err := valkey.NewPubSub(cfg.ValkeyAddr)
	if err != nil {
		return err
	}
	bridge := valkey.NewBridge(ps, reloadable, cfg.Deployment, logger)
	go func() {
		defer ps.Close()
		if err := bridge.Run(ctx); err != nil {
			logger.Error("valkey bridge stopped", "error", err)
		}
	}()
	logger.Info("cross-instance feed enabled", "valkey", cfg.ValkeyAddr, "channel", valkey.Channel(cfg.Deployment))
	return nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
