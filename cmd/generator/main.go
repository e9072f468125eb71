package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/caseforge/worker/internal/app/bootstrap"
	"github.com/caseforge/worker/internal/infra/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Best effort: production sets real env vars, .env is for local runs.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := bootstrap.StartWorker("generator", cfg); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}
