// Package app wires configuration into concrete collaborators.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"github.com/caseforge/worker/internal/adapter/ai/gemini"
	"github.com/caseforge/worker/internal/adapter/ai/githubmodels"
	"github.com/caseforge/worker/internal/adapter/ai/mock"
	"github.com/caseforge/worker/internal/adapter/ai/reliability"
	"github.com/caseforge/worker/internal/adapter/queue/generate"
	"github.com/caseforge/worker/internal/adapter/repository/postgres"
	"github.com/caseforge/worker/internal/adapter/vcs"
	"github.com/caseforge/worker/internal/domain/suite"
	"github.com/caseforge/worker/internal/infra/config"
	infraqueue "github.com/caseforge/worker/internal/infra/queue"
	"github.com/caseforge/worker/internal/usecase/testgen"
)

type ContainerConfig struct {
	Config *config.Config
	Pool   *pgxpool.Pool
}

func (c ContainerConfig) Validate() error {
	if c.Config == nil {
		return fmt.Errorf("config is required")
	}
	if c.Pool == nil {
		return fmt.Errorf("pool is required")
	}
	return nil
}

type WorkerContainer struct {
	GenerateWorker *generate.Worker
	Workers        *river.Workers
	QueueClient    *infraqueue.Client

	generator suite.Generator
}

func NewWorkerContainer(ctx context.Context, cfg ContainerConfig) (*WorkerContainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid container config: %w", err)
	}

	generator, err := buildGenerator(cfg.Config)
	if err != nil {
		return nil, err
	}

	suiteRepo := postgres.NewSuiteRepository(cfg.Pool)
	fetcher := vcs.NewGitHubContentClient(nil)
	parser := &testgen.Parser{
		Strict:   cfg.Config.StrictMode,
		MinCases: cfg.Config.MinCases,
	}
	service := testgen.NewService(generator, parser,
		testgen.WithRepository(suiteRepo),
		testgen.WithContextFetcher(fetcher),
		testgen.WithTimeout(cfg.Config.GenerationTimeout),
	)

	generateWorker := generate.NewWorker(service)

	workers := river.NewWorkers()
	river.AddWorker(workers, generateWorker)

	queueClient, err := infraqueue.NewClient(ctx, cfg.Pool)
	if err != nil {
		return nil, fmt.Errorf("create queue client: %w", err)
	}

	return &WorkerContainer{
		GenerateWorker: generateWorker,
		Workers:        workers,
		QueueClient:    queueClient,
		generator:      generator,
	}, nil
}

func (c *WorkerContainer) Close() error {
	if c.generator != nil {
		if err := c.generator.Close(); err != nil {
			return fmt.Errorf("close generator: %w", err)
		}
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			return fmt.Errorf("close queue client: %w", err)
		}
	}
	return nil
}

// buildGenerator selects and constructs the generation backend. Rate
// limiters are created here, once per backend, because the quota belongs to
// the credentials and must be shared across every caller in the process.
func buildGenerator(cfg *config.Config) (suite.Generator, error) {
	provider, err := cfg.ResolveProvider()
	if err != nil {
		return nil, fmt.Errorf("resolve provider: %w", err)
	}

	slog.Info("generation backend selected", "provider", provider)

	switch provider {
	case config.ProviderGemini:
		limiter := reliability.NewRateLimiter(cfg.Gemini.RPMLimit,
			reliability.WithDailyCap(cfg.Gemini.RPDLimit))
		return gemini.NewGateway(gemini.Config{
			APIKeys:         cfg.Gemini.APIKeys,
			Models:          cfg.GeminiModels(),
			Temperature:     float32(cfg.Gemini.Temperature),
			TopP:            float32(cfg.Gemini.TopP),
			MaxOutputTokens: int32(cfg.Gemini.MaxOutputTokens),
			MaxInputTokens:  cfg.MaxInputTokens,
			EnableGapFill:   cfg.EnableGapFill,
		}, limiter)

	case config.ProviderGitHubModels:
		limiter := reliability.NewRateLimiter(cfg.GitHubModels.RPMLimit,
			reliability.WithDailyCap(cfg.GitHubModels.RPDLimit))
		return githubmodels.NewGateway(githubmodels.Config{
			Token:         cfg.GitHubModels.Token,
			Model:         cfg.GitHubModels.Model,
			Org:           cfg.GitHubModels.Org,
			BaseURL:       cfg.GitHubModels.APIBase,
			APIVersion:    cfg.GitHubModels.APIVersion,
			MaxAttempts:   cfg.GitHubModels.MaxRetries + 1,
			UseJSONSchema: cfg.GitHubModels.StructuredOutput,
			EnableGapFill: cfg.EnableGapFill,
		}, limiter)

	case config.ProviderMock:
		return mock.NewGenerator(), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
