// Package prompt renders generation requests into backend prompts using
// versioned, embedded templates.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/caseforge/worker/internal/domain/suite"
)

//go:embed templates/base_prompt.md
var basePromptTemplate string

//go:embed templates/format_gherkin.md
var gherkinFormatSchema string

//go:embed templates/format_plain_steps.md
var plainStepsFormatSchema string

//go:embed templates/format_pytest.md
var pytestFormatSchema string

//go:embed templates/few_shot.md
var fewShotExample string

// correctionPreviewLimit bounds how much broken output is echoed back to the
// model in the self-correction turn.
const correctionPreviewLimit = 3000

// Builder assembles generation, correction and gap-fill prompts.
type Builder struct {
	base *template.Template
}

type basePromptData struct {
	FormatSchema       string
	FewShotExample     string
	Component          string
	Priority           suite.Priority
	TargetFormat       suite.TestFormat
	UserStory          string
	AcceptanceCriteria []string
	ContextCode        string
}

// NewBuilder parses the embedded templates.
func NewBuilder() (*Builder, error) {
	base, err := template.New("base_prompt").Parse(basePromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse base prompt template: %w", err)
	}
	return &Builder{base: base}, nil
}

// Build renders the full generation prompt for one request.
func (b *Builder) Build(req suite.GenerationRequest, contextCode string) (string, error) {
	var sb strings.Builder
	err := b.base.Execute(&sb, basePromptData{
		FormatSchema:       formatSchema(req.TargetFormat),
		FewShotExample:     fewShotExample,
		Component:          req.ComponentContext,
		Priority:           req.Priority,
		TargetFormat:       req.TargetFormat,
		UserStory:          req.UserStory,
		AcceptanceCriteria: req.AcceptanceCriteria,
		ContextCode:        contextCode,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

// Correction builds the self-correction prompt embedding a bounded preview
// of the model's broken output.
func (b *Builder) Correction(malformedOutput string) string {
	if len(malformedOutput) > correctionPreviewLimit {
		malformedOutput = malformedOutput[:correctionPreviewLimit]
	}
	return fmt.Sprintf(`The following output was supposed to be valid JSON
matching a test case schema, but it has syntax errors.

Fix it and return ONLY valid JSON. Do not explain.

BROKEN OUTPUT:
%s

Return the corrected JSON:`, malformedOutput)
}

// GapFill builds the coverage gap-fill prompt asking for cases covering
// exactly the missing scenario categories.
func (b *Builder) GapFill(userStory string, missing []suite.ScenarioType) string {
	names := make([]string, len(missing))
	for i, m := range missing {
		names[i] = string(m)
	}
	return fmt.Sprintf(`Given this user story:
"%s"

Generate exactly %d additional test cases for these
MISSING scenario types: %s.

Return them in the same JSON format as before. Return ONLY a JSON
object with a "test_cases" array containing the new cases.`,
		userStory, len(missing), strings.Join(names, ", "))
}

// EstimateTokens approximates the token count of text as length/4. A coarse
// proxy kept behind a named function so a real tokenizer can replace it
// without touching gateway logic.
func EstimateTokens(text string) int {
	return len(text) / 4
}

func formatSchema(format suite.TestFormat) string {
	switch format {
	case suite.FormatPlainSteps:
		return plainStepsFormatSchema
	case suite.FormatPytest:
		return pytestFormatSchema
	default:
		return gherkinFormatSchema
	}
}
