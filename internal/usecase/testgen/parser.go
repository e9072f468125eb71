package testgen

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caseforge/worker/internal/domain/suite"
)

const (
	defaultMinCases = 3
	summaryLimit    = 100
)

// Parser turns the raw JSON object a backend returns into a validated
// TestSuite. It is deliberately forgiving: individual malformed cases are
// skipped, off-enum fields are coerced, and coverage gaps are patched with
// synthesized fallback cases. Strict mode trades that tolerance for errors.
type Parser struct {
	// Strict rejects suites with coverage gaps or too few cases instead
	// of patching them.
	Strict bool

	// MinCases is the minimum surviving case count. Zero means the
	// default of 3.
	MinCases int
}

func (p *Parser) minCases() int {
	if p.MinCases > 0 {
		return p.MinCases
	}
	return defaultMinCases
}

// Parse coerces raw into a TestSuite for the given request. The request must
// already be validated. A missing or empty test_cases array degrades to zero
// parsed cases, which the coverage fallback then patches; only strict mode
// turns that into an error.
func (p *Parser) Parse(raw suite.RawSuite, req suite.GenerationRequest) (*suite.TestSuite, error) {
	rawCases, ok := raw["test_cases"].([]any)
	if !ok || len(rawCases) == 0 {
		slog.Warn("test_cases missing or empty in backend output, degrading to zero cases")
	}

	cases := make([]suite.TestCase, 0, len(rawCases))
	for idx, rc := range rawCases {
		obj, ok := rc.(map[string]any)
		if !ok {
			slog.Warn("skipping non-object test case entry", "index", idx)
			continue
		}
		tc, err := p.coerceCase(obj, req)
		if err != nil {
			slog.Warn("skipping malformed test case", "index", idx, "error", err)
			continue
		}
		cases = append(cases, tc)
	}

	if len(cases) == 0 {
		slog.Warn("no test case survived coercion, relying on fallback synthesis")
	}

	cases = deduplicate(cases)

	missing := missingRequired(cases)
	if p.Strict {
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: mandatory scenario categories missing: %s",
				suite.ErrValidationFailed, joinScenarios(missing))
		}
		if len(cases) < p.minCases() {
			return nil, fmt.Errorf("%w: only %d case(s) survived, minimum is %d",
				suite.ErrValidationFailed, len(cases), p.minCases())
		}
	} else if len(missing) > 0 {
		slog.Warn("patching coverage gaps with fallback cases", "missing", missing)
		for _, m := range missing {
			cases = append(cases, fallbackCase(m, req))
		}
	}

	for i := range cases {
		cases[i].ID = suite.NewCaseID()
	}

	breakdown := make(map[suite.ScenarioType]int)
	for _, tc := range cases {
		breakdown[tc.ScenarioType]++
	}

	return &suite.TestSuite{
		ID:           suite.NewSuiteID(),
		StorySummary: storySummary(raw, req),
		Component:    req.ComponentContext,
		TotalCases:   len(cases),
		Breakdown:    breakdown,
		TestCases:    cases,
		GeneratedAt:  time.Now().UTC(),
		Format:       req.TargetFormat,
		ProjectID:    req.ProjectID,
		TaskID:       req.TaskID,
	}, nil
}

// coerceCase converts one raw case object into a typed TestCase, filling
// defaults for everything except the title.
func (p *Parser) coerceCase(obj map[string]any, req suite.GenerationRequest) (suite.TestCase, error) {
	title := strings.TrimSpace(asString(obj["title"]))
	if len(title) < 5 {
		return suite.TestCase{}, fmt.Errorf("title too short: %q", title)
	}
	if len(title) > 300 {
		title = title[:300]
	}

	tags := asStringSlice(obj["tags"])
	scenario := classifyScenario(asString(obj["scenario_type"]), title, tags)

	severity, ok := suite.ParseSeverity(asString(obj["severity"]))
	if !ok {
		severity = defaultSeverity(scenario)
	}

	steps := coerceSteps(obj["steps"])
	if len(steps) == 0 {
		steps = []suite.TestStep{{
			Action:         "Execute the scenario described by the title",
			ExpectedResult: "Behavior matches the title",
		}}
	}
	steps = suite.NormalizeSteps(steps)

	isEdge := scenario == suite.ScenarioEdgeCase || scenario == suite.ScenarioBoundary
	if b, ok := obj["is_edge_case"].(bool); ok && b {
		isEdge = true
	}

	return suite.TestCase{
		Title:         title,
		ScenarioType:  scenario,
		Severity:      severity,
		Priority:      req.Priority,
		Preconditions: asStringSlice(obj["preconditions"]),
		Steps:         steps,
		Tags:          tags,
		IsEdgeCase:    isEdge,
		Component:     req.ComponentContext,
		Gherkin:       asString(obj["gherkin"]),
		PytestCode:    asString(obj["pytest_code"]),
	}, nil
}

func coerceSteps(raw any) []suite.TestStep {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	steps := make([]suite.TestStep, 0, len(items))
	for i, item := range items {
		var step suite.TestStep
		if obj, ok := item.(map[string]any); ok {
			step = suite.TestStep{
				Action:         strings.TrimSpace(asString(obj["action"])),
				InputData:      strings.TrimSpace(asString(obj["input_data"])),
				ExpectedResult: strings.TrimSpace(asString(obj["expected_result"])),
			}
		} else {
			// A bare string (or other scalar) is the action itself.
			step = suite.TestStep{Action: strings.TrimSpace(fmt.Sprintf("%v", item))}
		}
		if step.Action == "" {
			step.Action = fmt.Sprintf("Step %d", i+1)
		}
		if step.ExpectedResult == "" {
			step.ExpectedResult = "Result not specified"
		}
		steps = append(steps, step)
	}
	return steps
}

// fallbackCase synthesizes a placeholder case for a mandatory category the
// model failed to cover.
func fallbackCase(scenario suite.ScenarioType, req suite.GenerationRequest) suite.TestCase {
	var title, action, expected string
	switch scenario {
	case suite.ScenarioNegative:
		title = "Verify the operation is rejected with invalid input"
		action = "Perform the operation described in the story with invalid input"
		expected = "The operation is rejected with a clear error message"
	case suite.ScenarioEdgeCase:
		title = "Verify the operation at an input boundary"
		action = "Perform the operation with boundary input such as empty or maximum-length values"
		expected = "The operation handles the boundary input without crashing"
	default:
		title = "Verify the operation succeeds with valid input"
		action = "Perform the operation described in the story with valid input"
		expected = "The operation completes successfully"
	}

	return suite.TestCase{
		Title:        title,
		ScenarioType: scenario,
		Severity:     defaultSeverity(scenario),
		Priority:     req.Priority,
		Steps: suite.NormalizeSteps([]suite.TestStep{{
			Action:         action,
			ExpectedResult: expected,
		}}),
		Tags:       []string{"fallback"},
		IsEdgeCase: scenario == suite.ScenarioEdgeCase,
		Component:  req.ComponentContext,
	}
}

func missingRequired(cases []suite.TestCase) []suite.ScenarioType {
	present := make(map[suite.ScenarioType]bool)
	for _, tc := range cases {
		present[tc.ScenarioType] = true
	}

	var missing []suite.ScenarioType
	for _, required := range suite.RequiredScenarioTypes {
		if !present[required] {
			missing = append(missing, required)
		}
	}
	return missing
}

func storySummary(raw suite.RawSuite, req suite.GenerationRequest) string {
	if s := strings.TrimSpace(asString(raw["user_story_summary"])); s != "" {
		return s
	}
	story := strings.TrimSpace(req.UserStory)
	if len(story) > summaryLimit {
		return story[:summaryLimit]
	}
	return story
}

func joinScenarios(scenarios []suite.ScenarioType) string {
	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%v", s), ".0")
	default:
		return ""
	}
}

// asStringSlice accepts both a list of strings and a single bare string,
// which is wrapped as a one-element list.
func asStringSlice(v any) []string {
	switch items := v.(type) {
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s := strings.TrimSpace(asString(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(items); s != "" {
			return []string{s}
		}
		return nil
	default:
		return nil
	}
}
