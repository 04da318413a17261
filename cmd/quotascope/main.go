package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quotascope/quotascope/internal/afs"
	"github.com/quotascope/quotascope/internal/api"
	"github.com/quotascope/quotascope/internal/collector"
	"github.com/quotascope/quotascope/internal/config"
	"github.com/quotascope/quotascope/internal/retry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("quotascope starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		slog.Error("credential check failed", "err", err)
		os.Exit(1)
	}

	// Re-install the logger at the configured level.
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Server.Level()}))
	slog.SetDefault(logger)

	slog.Info("config loaded",
		"base_url", cfg.AFS.BaseURL,
		"volumes", len(cfg.AFS.Volumes),
		"listen", cfg.Server.Addr(),
		"cache_duration", cfg.Collection.CacheTTL(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := afs.New(cfg.AFS.AccessKey(), cfg.AFS.SecretKey(), cfg.AFS.BaseURL, cfg.Server.Timeout())

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = max(1, cfg.Collection.MaxRetries)
	policy.BaseDelay = cfg.Collection.RetryBaseDelay()
	policy.MaxDelay = 30 * time.Second
	exec := retry.New(policy)

	coll := collector.New(cfg, client, exec)

	// Watch the config file: reloads swap the volume list and drop the cache.
	go func() {
		if err := config.Watch(ctx, *configPath, coll.UpdateConfig); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.New(coll),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout(),
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.Addr())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("quotascope shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
