// Package bootstrap provides application startup utilities for worker
// services.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/caseforge/worker/internal/adapter/queue/generate"
	"github.com/caseforge/worker/internal/app"
	"github.com/caseforge/worker/internal/infra/config"
	"github.com/caseforge/worker/internal/infra/db"
	infraqueue "github.com/caseforge/worker/internal/infra/queue"
)

// StartWorker runs the generation worker until SIGTERM/SIGINT.
func StartWorker(serviceName string, cfg *config.Config) error {
	slog.Info("starting service", "name", serviceName)
	slog.Info("config loaded",
		"database_url", maskURL(cfg.DatabaseURL),
		"provider", cfg.Provider,
		"queue_max_workers", cfg.QueueMaxWorkers,
		"strict_mode", cfg.StrictMode,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection: %w", err)
	}
	defer pool.Close()

	slog.Info("postgres connected")

	container, err := app.NewWorkerContainer(ctx, app.ContainerConfig{
		Config: cfg,
		Pool:   pool,
	})
	if err != nil {
		return fmt.Errorf("container: %w", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			slog.Error("close container", "error", err)
		}
	}()

	srv, err := infraqueue.NewServer(ctx, infraqueue.ServerConfig{
		Pool: pool,
		Queues: []infraqueue.QueueAllocation{
			{Name: generate.QueueDefault, MaxWorkers: cfg.QueueMaxWorkers},
		},
		Workers: container.Workers,
	})
	if err != nil {
		return fmt.Errorf("queue server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("worker starting", "queue", generate.QueueDefault, "max_workers", cfg.QueueMaxWorkers)
		if err := srv.Start(gctx); err != nil {
			return fmt.Errorf("start queue server: %w", err)
		}
		slog.Info("worker ready")
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	slog.Info("shutdown signal received")
	if err := srv.Stop(context.Background()); err != nil {
		slog.Error("queue server stop", "error", err)
	} else {
		slog.Info("queue server stopped")
	}

	slog.Info("service shutdown complete", "name", serviceName)
	return nil
}
