// Command notifier runs the crew notification pipeline: the change watcher,
// the event bus, the delivery queue, the scheduled jobs and the HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/crewnotify/pkg/api"
	"github.com/dmitrymomot/crewnotify/pkg/config"
	"github.com/dmitrymomot/crewnotify/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg config.App
	if err := config.Load(&cfg, ".env"); err != nil {
		slog.Error("failed to load config", logger.Error(err))
		os.Exit(1)
	}

	log := logger.NewFromConfig(cfg.Logger, logger.WithContextExtractors(api.RequestIDExtractor()))
	logger.SetAsDefault(log)

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.LogAttrs(ctx, slog.LevelError, "notifier stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("notifier stopped")
}

func run(ctx context.Context, cfg config.App, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(app.bus.Run(ctx))
	g.Go(app.queue.Run(ctx))
	g.Go(app.scheduler.Run(ctx))
	if app.watcher != nil {
		g.Go(app.watcher.Run(ctx))
	}
	g.Go(func() error {
		return app.server.Run(ctx, app.api.Routes())
	})

	log.LogAttrs(ctx, slog.LevelInfo, "notifier started",
		slog.String("storage_backend", cfg.StorageBackend),
		slog.String("audit_backend", cfg.AuditBackend),
		slog.String("addr", cfg.HTTP.Addr),
	)
	return g.Wait()
}
