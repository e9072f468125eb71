// Package gapfill implements the optional third generation turn that patches
// mandatory scenario coverage before parsing. It is backend-agnostic: each
// gateway supplies its own call function.
package gapfill

import (
	"context"
	"log/slog"

	"github.com/caseforge/worker/internal/adapter/ai/extract"
	"github.com/caseforge/worker/internal/adapter/ai/prompt"
	"github.com/caseforge/worker/internal/domain/suite"
)

// CallFunc sends one prompt to a backend and returns the raw text reply.
type CallFunc func(ctx context.Context, userPrompt string) (string, error)

// Fill issues one extra call for mandatory scenario categories absent from
// parsed and merges the reply's cases in place. The combined batch goes
// through the output parser afterwards, so gap-fill cases are deduplicated
// against the main batch like any other case. Failures are non-fatal: the
// parser's coverage fallback is the backstop.
func Fill(ctx context.Context, parsed suite.RawSuite, req suite.GenerationRequest, prompts *prompt.Builder, call CallFunc) {
	missing := missingCategories(parsed)
	if len(missing) == 0 {
		return
	}

	slog.InfoContext(ctx, "coverage gap detected", "missing", missing)

	raw, err := call(ctx, prompts.GapFill(req.UserStory, missing))
	if err != nil {
		slog.WarnContext(ctx, "gap-fill call failed, proceeding without extra cases", "error", err)
		return
	}

	additional, ok := extract.Object(raw)
	if !ok {
		slog.WarnContext(ctx, "gap-fill returned invalid JSON, proceeding without extra cases")
		return
	}

	appendCases(parsed, additional)
}

// missingCategories returns the mandatory scenario categories with zero
// entries in the raw test_cases array.
func missingCategories(parsed suite.RawSuite) []suite.ScenarioType {
	counts := make(map[string]int)
	if rawCases, ok := parsed["test_cases"].([]any); ok {
		for _, rc := range rawCases {
			if m, ok := rc.(map[string]any); ok {
				if t, ok := m["scenario_type"].(string); ok {
					counts[t]++
				}
			}
		}
	}

	var missing []suite.ScenarioType
	for _, required := range suite.RequiredScenarioTypes {
		if counts[string(required)] == 0 {
			missing = append(missing, required)
		}
	}
	return missing
}

// appendCases merges the gap-fill response's test_cases into the parsed
// object.
func appendCases(parsed, additional suite.RawSuite) {
	extra, ok := additional["test_cases"].([]any)
	if !ok || len(extra) == 0 {
		return
	}
	existing, _ := parsed["test_cases"].([]any)
	parsed["test_cases"] = append(existing, extra...)
}
