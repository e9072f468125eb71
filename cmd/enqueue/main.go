package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/caseforge/worker/internal/adapter/queue/generate"
	"github.com/caseforge/worker/internal/infra/db"
	"github.com/caseforge/worker/internal/infra/queue"
)

func main() {
	_ = godotenv.Load()

	databaseURL := flag.String("database", os.Getenv("DATABASE_URL"), "Database URL")
	criteria := flag.String("criteria", "", "Acceptance criteria, separated by |")
	component := flag.String("component", "", "Component context")
	priority := flag.String("priority", "", "Priority (P0-P3)")
	format := flag.String("format", "", "Target format (gherkin, plain_steps, pytest)")
	sourceRepo := flag.String("source-repo", "", "owner/repo for source context")
	sourcePath := flag.String("source-path", "", "File path for source context")
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "Error: Database URL is required (use -database flag or set DATABASE_URL)")
		os.Exit(1)
	}

	args := generate.Args{
		RequestID:        uuid.NewString(),
		UserStory:        flag.Arg(0),
		ComponentContext: *component,
		Priority:         *priority,
		TargetFormat:     *format,
		SourceRepo:       *sourceRepo,
		SourceFilePath:   *sourcePath,
	}
	if *criteria != "" {
		for _, c := range strings.Split(*criteria, "|") {
			if c = strings.TrimSpace(c); c != "" {
				args.AcceptanceCriteria = append(args.AcceptanceCriteria, c)
			}
		}
	}

	if err := enqueue(*databaseURL, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to enqueue task: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: enqueue [flags] <user-story>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Arguments:")
	fmt.Fprintln(os.Stderr, "  <user-story>  The user story to generate test cases for")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Flags:")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Examples:")
	fmt.Fprintln(os.Stderr, `  enqueue "As a user, I want to log in so that I can see my dashboard."`)
	fmt.Fprintln(os.Stderr, `  enqueue -format pytest -priority P0 "As an admin, I want to export reports."`)
}

func enqueue(databaseURL string, args generate.Args) error {
	ctx := context.Background()

	pool, err := db.NewPool(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("database connection: %w", err)
	}
	defer pool.Close()

	client, err := queue.NewClient(ctx, pool)
	if err != nil {
		return fmt.Errorf("create queue client: %w", err)
	}
	defer client.Close()

	if err := client.EnqueueGeneration(ctx, args); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}

	slog.Info("task enqueued",
		"request_id", args.RequestID,
		"component", args.ComponentContext,
	)
	return nil
}
