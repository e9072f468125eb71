// Package mock provides a deterministic in-process generator for local
// development and tests. No network calls, no credentials.
package mock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caseforge/worker/internal/domain/suite"
)

// Generator returns a canned suite derived from the request so output is
// stable across runs.
type Generator struct{}

var _ suite.Generator = (*Generator)(nil)

// NewGenerator creates a mock generator.
func NewGenerator() *Generator {
	slog.Info("mock generator initialized, no backend calls will be made")
	return &Generator{}
}

// Generate returns a raw suite covering every mandatory scenario category.
func (g *Generator) Generate(ctx context.Context, req suite.GenerationRequest, _ string) (suite.RawSuite, error) {
	subject := storySubject(req.UserStory)

	return suite.RawSuite{
		"user_story_summary": subject,
		"test_cases": []any{
			mockCase(
				fmt.Sprintf("Verify %s succeeds with valid input", subject),
				suite.ScenarioHappyPath, suite.SeverityCritical,
				"Provide valid input and submit", "Operation completes successfully",
			),
			mockCase(
				fmt.Sprintf("Verify %s is rejected with invalid input", subject),
				suite.ScenarioNegative, suite.SeverityMajor,
				"Provide invalid input and submit", "A validation error is shown",
			),
			mockCase(
				fmt.Sprintf("Verify %s with empty input", subject),
				suite.ScenarioEdgeCase, suite.SeverityMajor,
				"Submit without entering any input", "The request is rejected with a clear message",
			),
		},
	}, nil
}

// Close is a no-op.
func (g *Generator) Close() error {
	return nil
}

func mockCase(title string, scenario suite.ScenarioType, severity suite.Severity, action, expected string) map[string]any {
	return map[string]any{
		"title":         title,
		"scenario_type": string(scenario),
		"severity":      string(severity),
		"preconditions": []any{"System is reachable"},
		"steps": []any{
			map[string]any{
				"step_number":     float64(1),
				"action":          action,
				"input_data":      nil,
				"expected_result": expected,
			},
		},
		"tags":         []any{"mock"},
		"is_edge_case": scenario == suite.ScenarioEdgeCase,
	}
}

// storySubject extracts a short subject phrase from "As a ..., I want to X"
// stories, falling back to a truncated prefix.
func storySubject(story string) string {
	lower := strings.ToLower(story)
	if idx := strings.Index(lower, "i want to "); idx >= 0 {
		rest := story[idx+len("i want to "):]
		if end := strings.IndexAny(rest, ",."); end > 0 {
			rest = rest[:end]
		}
		if soThat := strings.Index(strings.ToLower(rest), " so that"); soThat > 0 {
			rest = rest[:soThat]
		}
		return strings.TrimSpace(rest)
	}
	if len(story) > 60 {
		return strings.TrimSpace(story[:60])
	}
	return story
}
