package suite

import (
	"fmt"
	"strings"
	"time"
)

// Priority represents the business priority inherited by every generated case.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// IsValid checks if the priority is one of the supported values.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	default:
		return false
	}
}

// TestFormat represents the target rendering format for generated cases.
type TestFormat string

const (
	FormatGherkin    TestFormat = "gherkin"
	FormatPlainSteps TestFormat = "plain_steps"
	FormatPytest     TestFormat = "pytest"
)

// IsValid checks if the format is one of the supported values.
func (f TestFormat) IsValid() bool {
	switch f {
	case FormatGherkin, FormatPlainSteps, FormatPytest:
		return true
	default:
		return false
	}
}

// ScenarioType categorizes the intent of a test case.
type ScenarioType string

const (
	ScenarioHappyPath   ScenarioType = "happy_path"
	ScenarioEdgeCase    ScenarioType = "edge_case"
	ScenarioNegative    ScenarioType = "negative"
	ScenarioBoundary    ScenarioType = "boundary"
	ScenarioSecurity    ScenarioType = "security"
	ScenarioPerformance ScenarioType = "performance"
)

// AllScenarioTypes lists every scenario type in breakdown order.
var AllScenarioTypes = []ScenarioType{
	ScenarioHappyPath,
	ScenarioEdgeCase,
	ScenarioNegative,
	ScenarioBoundary,
	ScenarioSecurity,
	ScenarioPerformance,
}

// RequiredScenarioTypes are the categories every suite must cover.
var RequiredScenarioTypes = []ScenarioType{
	ScenarioHappyPath,
	ScenarioNegative,
	ScenarioEdgeCase,
}

// IsValid checks if the scenario type is one of the supported values.
func (s ScenarioType) IsValid() bool {
	switch s {
	case ScenarioHappyPath, ScenarioEdgeCase, ScenarioNegative,
		ScenarioBoundary, ScenarioSecurity, ScenarioPerformance:
		return true
	default:
		return false
	}
}

// Severity represents how serious a failing case would be.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityTrivial  Severity = "trivial"
)

// ParseSeverity parses a raw severity string against the enum.
func ParseSeverity(raw string) (Severity, bool) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case SeverityCritical, SeverityMajor, SeverityMinor, SeverityTrivial:
		return s, true
	default:
		return "", false
	}
}

// SourceRef points at a repository file whose content should be attached
// to the prompt as code context.
type SourceRef struct {
	Repo     string // owner/repo
	FilePath string
	Token    string // optional, for private repos
}

// GenerationRequest is the immutable external input to the pipeline.
type GenerationRequest struct {
	UserStory          string
	AcceptanceCriteria []string
	ComponentContext   string
	Priority           Priority
	TargetFormat       TestFormat
	ProjectID          string
	TaskID             string
	Source             *SourceRef
	ContextCode        string // pre-fetched source context, optional
}

const (
	minStoryLength    = 10
	maxStoryLength    = 5000
	maxCriteriaCount  = 20
	maxComponentChars = 200
)

// Validate checks request bounds and fills defaults for optional fields.
func (r *GenerationRequest) Validate() error {
	story := strings.TrimSpace(r.UserStory)
	if len(story) < minStoryLength {
		return fmt.Errorf("%w: user story must be at least %d characters", ErrInvalidInput, minStoryLength)
	}
	if len(story) > maxStoryLength {
		return fmt.Errorf("%w: user story exceeds %d characters", ErrInvalidInput, maxStoryLength)
	}
	if len(r.AcceptanceCriteria) > maxCriteriaCount {
		return fmt.Errorf("%w: at most %d acceptance criteria allowed", ErrInvalidInput, maxCriteriaCount)
	}
	if len(r.ComponentContext) > maxComponentChars {
		return fmt.Errorf("%w: component context exceeds %d characters", ErrInvalidInput, maxComponentChars)
	}
	if r.ComponentContext == "" {
		r.ComponentContext = "General"
	}
	if r.Priority == "" {
		r.Priority = PriorityP1
	}
	if !r.Priority.IsValid() {
		return fmt.Errorf("%w: unsupported priority: %s", ErrInvalidInput, r.Priority)
	}
	if r.TargetFormat == "" {
		r.TargetFormat = FormatGherkin
	}
	if !r.TargetFormat.IsValid() {
		return fmt.Errorf("%w: unsupported target format: %s", ErrInvalidInput, r.TargetFormat)
	}
	return nil
}

// TestStep is one ordered step of a test case.
type TestStep struct {
	StepNumber     int    `json:"step_number"`
	Action         string `json:"action"`
	InputData      string `json:"input_data,omitempty"`
	ExpectedResult string `json:"expected_result"`
}

// NormalizeSteps renumbers steps sequentially from 1, preserving order.
// Step numbers must always match list position.
func NormalizeSteps(steps []TestStep) []TestStep {
	for i := range steps {
		steps[i].StepNumber = i + 1
	}
	return steps
}

// TestCase is one validated, typed test case.
type TestCase struct {
	ID            string       `json:"test_id"`
	Title         string       `json:"title"`
	ScenarioType  ScenarioType `json:"scenario_type"`
	Severity      Severity     `json:"severity"`
	Priority      Priority     `json:"priority"`
	Preconditions []string     `json:"preconditions"`
	Steps         []TestStep   `json:"steps"`
	Tags          []string     `json:"tags"`
	IsEdgeCase    bool         `json:"is_edge_case"`
	Component     string       `json:"component"`
	Gherkin       string       `json:"gherkin,omitempty"`
	PytestCode    string       `json:"pytest_code,omitempty"`
}

const (
	minTitleLength = 5
	maxTitleLength = 300
)

// Validate checks structural invariants of a single case.
func (tc *TestCase) Validate() error {
	if len(tc.Title) < minTitleLength {
		return fmt.Errorf("%w: title must be at least %d characters", ErrInvalidInput, minTitleLength)
	}
	if len(tc.Title) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, maxTitleLength)
	}
	if !tc.ScenarioType.IsValid() {
		return fmt.Errorf("%w: unsupported scenario type: %s", ErrInvalidInput, tc.ScenarioType)
	}
	if len(tc.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrInvalidInput)
	}
	return nil
}

// TestSuite is the final deduplicated, coverage-complete result of one request.
type TestSuite struct {
	ID           string               `json:"suite_id"`
	StorySummary string               `json:"user_story_summary"`
	Component    string               `json:"component"`
	TotalCases   int                  `json:"total_cases"`
	Breakdown    map[ScenarioType]int `json:"breakdown"`
	TestCases    []TestCase           `json:"test_cases"`
	GeneratedAt  time.Time            `json:"generated_at"`
	Format       TestFormat           `json:"format"`
	ProjectID    string               `json:"project_id,omitempty"`
	TaskID       string               `json:"task_id,omitempty"`
}

// RawSuite is the loosely-typed JSON object a generation backend returns.
// The parser is responsible for coercing it into a TestSuite.
type RawSuite = map[string]any
