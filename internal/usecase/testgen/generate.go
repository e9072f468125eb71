// Package testgen orchestrates the generation pipeline: prompt the backend,
// parse and validate the raw output, deduplicate, and persist the result.
package testgen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caseforge/worker/internal/domain/suite"
)

const defaultTimeout = 5 * time.Minute

// ContextFetcher resolves a source reference into file content attached to
// the prompt.
type ContextFetcher interface {
	GetFileContent(ctx context.Context, ref suite.SourceRef) (string, error)
}

// Service runs one generation request end to end.
type Service struct {
	generator suite.Generator
	parser    *Parser
	repo      suite.Repository // optional
	fetcher   ContextFetcher   // optional
	timeout   time.Duration
}

// ServiceOption configures optional service collaborators.
type ServiceOption func(*Service)

// WithRepository enables persistence of finished suites.
func WithRepository(repo suite.Repository) ServiceOption {
	return func(s *Service) { s.repo = repo }
}

// WithContextFetcher enables source context resolution for requests that
// carry a SourceRef.
func WithContextFetcher(fetcher ContextFetcher) ServiceOption {
	return func(s *Service) { s.fetcher = fetcher }
}

// WithTimeout bounds one end-to-end generation run.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates the generation service.
func NewService(generator suite.Generator, parser *Parser, opts ...ServiceOption) *Service {
	s := &Service{
		generator: generator,
		parser:    parser,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate validates the request, runs the backend, parses the output into a
// suite and saves it when a repository is configured.
func (s *Service) Generate(ctx context.Context, req suite.GenerationRequest) (*suite.TestSuite, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	slog.InfoContext(ctx, "generation started",
		"component", req.ComponentContext,
		"format", req.TargetFormat,
		"has_source", req.Source != nil,
	)

	contextCode := s.resolveContext(ctx, req)

	raw, err := s.generator.Generate(ctx, req, contextCode)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	result, err := s.parser.Parse(raw, req)
	if err != nil {
		return nil, fmt.Errorf("parse output: %w", err)
	}

	if s.repo != nil {
		if err := s.repo.SaveSuite(ctx, result); err != nil {
			return nil, fmt.Errorf("save suite: %w", err)
		}
	}

	slog.InfoContext(ctx, "generation finished",
		"suite_id", result.ID,
		"total_cases", result.TotalCases,
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return result, nil
}

// resolveContext returns pre-fetched context when the request carries it,
// otherwise fetches the referenced file. Fetch failures degrade to an empty
// context; the pipeline proceeds on the story alone.
func (s *Service) resolveContext(ctx context.Context, req suite.GenerationRequest) string {
	if req.ContextCode != "" {
		return req.ContextCode
	}
	if req.Source == nil || s.fetcher == nil {
		return ""
	}

	content, err := s.fetcher.GetFileContent(ctx, *req.Source)
	if err != nil {
		slog.WarnContext(ctx, "source context fetch failed, continuing without context",
			"repo", req.Source.Repo,
			"path", req.Source.FilePath,
			"error", err,
		)
		return ""
	}
	return content
}
