// Package generate wires test suite generation into the River job queue.
package generate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/caseforge/worker/internal/domain/suite"
	"github.com/caseforge/worker/internal/usecase/testgen"
)

const (
	// Queue name (underscore required - River disallows colons)
	QueueDefault = "testgen_default"

	jobKind          = "testgen:generate"
	maxRetryAttempts = 3
	jobTimeout       = 10 * time.Minute
	initialBackoff   = 10 * time.Second
)

// Args represents the arguments for a suite generation job.
type Args struct {
	RequestID          string   `json:"request_id" river:"unique"`
	UserStory          string   `json:"user_story"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	ComponentContext   string   `json:"component_context,omitempty"`
	Priority           string   `json:"priority,omitempty"`
	TargetFormat       string   `json:"target_format,omitempty"`
	ProjectID          string   `json:"project_id,omitempty"`
	TaskID             string   `json:"task_id,omitempty"`
	SourceRepo         string   `json:"source_repo,omitempty"`
	SourceFilePath     string   `json:"source_file_path,omitempty"`
	SourceToken        string   `json:"source_token,omitempty"`
}

// Kind returns the unique identifier for this job type.
func (Args) Kind() string { return jobKind }

// InsertOpts returns the River insert options for this job type.
func (Args) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueDefault,
		MaxAttempts: maxRetryAttempts,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	}
}

// Worker processes suite generation jobs.
type Worker struct {
	river.WorkerDefaults[Args]
	service *testgen.Service
}

// NewWorker creates a new generation worker.
func NewWorker(service *testgen.Service) *Worker {
	return &Worker{service: service}
}

// Timeout returns the maximum duration for this job.
func (w *Worker) Timeout(job *river.Job[Args]) time.Duration {
	return jobTimeout
}

// NextRetry returns the next retry time with exponential backoff.
// Backoff: 10s, 40s, 90s (attempt² × 10s)
func (w *Worker) NextRetry(job *river.Job[Args]) time.Time {
	attempt := job.Attempt
	backoff := time.Duration(attempt*attempt) * initialBackoff
	return time.Now().Add(backoff)
}

// Work processes one generation job.
func (w *Worker) Work(ctx context.Context, job *river.Job[Args]) error {
	args := job.Args

	if args.RequestID == "" {
		err := errors.New("request_id is required")
		slog.WarnContext(ctx, "invalid job arguments, cancelling",
			"job_id", job.ID,
			"error", err,
		)
		return river.JobCancel(err)
	}

	startTime := time.Now()
	slog.InfoContext(ctx, "processing generation task",
		"job_id", job.ID,
		"request_id", args.RequestID,
		"component", args.ComponentContext,
		"attempt", job.Attempt,
	)

	result, err := w.service.Generate(ctx, toRequest(args))
	if err != nil {
		return w.handleError(ctx, job, err)
	}

	slog.InfoContext(ctx, "generation task completed",
		"job_id", job.ID,
		"request_id", args.RequestID,
		"suite_id", result.ID,
		"total_cases", result.TotalCases,
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
	return nil
}

func toRequest(args Args) suite.GenerationRequest {
	req := suite.GenerationRequest{
		UserStory:          args.UserStory,
		AcceptanceCriteria: args.AcceptanceCriteria,
		ComponentContext:   args.ComponentContext,
		Priority:           suite.Priority(args.Priority),
		TargetFormat:       suite.TestFormat(args.TargetFormat),
		ProjectID:          args.ProjectID,
		TaskID:             args.TaskID,
	}
	if args.SourceRepo != "" && args.SourceFilePath != "" {
		req.Source = &suite.SourceRef{
			Repo:     args.SourceRepo,
			FilePath: args.SourceFilePath,
			Token:    args.SourceToken,
		}
	}
	return req
}

func (w *Worker) handleError(ctx context.Context, job *river.Job[Args], err error) error {
	args := job.Args

	if isPermanentError(err) {
		slog.WarnContext(ctx, "permanent error, cancelling job",
			"job_id", job.ID,
			"request_id", args.RequestID,
			"attempt", job.Attempt,
			"will_retry", false,
			"error", err,
		)
		return river.JobCancel(err)
	}

	willRetry := job.Attempt < maxRetryAttempts
	slog.ErrorContext(ctx, "generation task failed",
		"job_id", job.ID,
		"request_id", args.RequestID,
		"attempt", job.Attempt,
		"max_attempts", maxRetryAttempts,
		"will_retry", willRetry,
		"error", err,
	)
	return err
}

// isPermanentError reports errors that no retry can fix. Quota exhaustion is
// retryable: the daily window rolls over.
func isPermanentError(err error) bool {
	return errors.Is(err, suite.ErrInvalidInput) ||
		errors.Is(err, suite.ErrValidationFailed)
}
