// Package export renders finished test suites into deliverable formats.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/caseforge/worker/internal/domain/suite"
)

var titleCaser = cases.Title(language.English)

// Render dispatches on the suite's target format. JSON is always available
// through RenderJSON regardless of format.
func Render(s *suite.TestSuite) (string, error) {
	switch s.Format {
	case suite.FormatPlainSteps:
		return RenderPlainSteps(s), nil
	case suite.FormatPytest:
		return RenderPytestStub(s), nil
	case suite.FormatGherkin:
		return RenderGherkin(s), nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", suite.ErrInvalidInput, s.Format)
	}
}

// RenderJSON produces the canonical indented JSON document.
func RenderJSON(s *suite.TestSuite) (string, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal suite: %w", err)
	}
	return string(out), nil
}

// RenderCSV produces a flat one-row-per-case table.
func RenderCSV(s *suite.TestSuite) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Test ID", "Title", "Scenario Type", "Severity", "Priority", "Preconditions", "Steps", "Expected Results", "Tags"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, tc := range s.TestCases {
		actions := make([]string, len(tc.Steps))
		expected := make([]string, len(tc.Steps))
		for i, step := range tc.Steps {
			actions[i] = strconv.Itoa(step.StepNumber) + ". " + step.Action
			expected[i] = strconv.Itoa(step.StepNumber) + ". " + step.ExpectedResult
		}

		record := []string{
			tc.ID,
			tc.Title,
			scenarioLabel(tc.ScenarioType),
			string(tc.Severity),
			string(tc.Priority),
			strings.Join(tc.Preconditions, "; "),
			strings.Join(actions, " "),
			strings.Join(expected, " "),
			strings.Join(tc.Tags, ", "),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}

// RenderGherkin produces one Feature with a Scenario per case. Cases that
// carry model-generated gherkin use it verbatim.
func RenderGherkin(s *suite.TestSuite) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Feature: %s\n", s.StorySummary)

	for _, tc := range s.TestCases {
		sb.WriteString("\n")
		if tc.Gherkin != "" {
			sb.WriteString(indent(strings.TrimSpace(tc.Gherkin), "  "))
			sb.WriteString("\n")
			continue
		}

		fmt.Fprintf(&sb, "  @%s @%s\n", string(tc.ScenarioType), string(tc.Severity))
		fmt.Fprintf(&sb, "  Scenario: %s\n", tc.Title)
		for _, pre := range tc.Preconditions {
			fmt.Fprintf(&sb, "    Given %s\n", lowerFirst(pre))
		}
		for i, step := range tc.Steps {
			keyword := "When"
			if i > 0 {
				keyword = "And"
			}
			fmt.Fprintf(&sb, "    %s %s\n", keyword, lowerFirst(step.Action))
		}
		for i, step := range tc.Steps {
			keyword := "Then"
			if i > 0 {
				keyword = "And"
			}
			fmt.Fprintf(&sb, "    %s %s\n", keyword, lowerFirst(step.ExpectedResult))
		}
	}
	return sb.String()
}

// RenderPlainSteps produces a numbered human-readable document.
func RenderPlainSteps(s *suite.TestSuite) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Test Suite: %s\n", s.StorySummary)
	fmt.Fprintf(&sb, "Component: %s | Total Cases: %d\n", s.Component, s.TotalCases)

	for i, tc := range s.TestCases {
		fmt.Fprintf(&sb, "\n%d. %s [%s]\n", i+1, tc.Title, tc.ID)
		fmt.Fprintf(&sb, "   Type: %s | Severity: %s | Priority: %s\n",
			scenarioLabel(tc.ScenarioType), titleCaser.String(string(tc.Severity)), tc.Priority)

		if len(tc.Preconditions) > 0 {
			sb.WriteString("   Preconditions:\n")
			for _, pre := range tc.Preconditions {
				fmt.Fprintf(&sb, "     - %s\n", pre)
			}
		}
		sb.WriteString("   Steps:\n")
		for _, step := range tc.Steps {
			fmt.Fprintf(&sb, "     %d) %s\n", step.StepNumber, step.Action)
			if step.InputData != "" {
				fmt.Fprintf(&sb, "        Input: %s\n", step.InputData)
			}
			fmt.Fprintf(&sb, "        Expected: %s\n", step.ExpectedResult)
		}
	}
	return sb.String()
}

// RenderPytestStub produces a runnable pytest skeleton. Cases that carry
// model-generated pytest code use it verbatim.
func RenderPytestStub(s *suite.TestSuite) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\"\"\"Generated test suite: %s\"\"\"\nimport pytest\n", s.StorySummary)

	for _, tc := range s.TestCases {
		sb.WriteString("\n\n")
		if tc.PytestCode != "" {
			sb.WriteString(strings.TrimSpace(tc.PytestCode))
			sb.WriteString("\n")
			continue
		}

		fmt.Fprintf(&sb, "@pytest.mark.%s\n", string(tc.ScenarioType))
		fmt.Fprintf(&sb, "def test_%s():\n", pythonIdent(tc.Title))
		fmt.Fprintf(&sb, "    \"\"\"%s\"\"\"\n", tc.Title)
		for _, pre := range tc.Preconditions {
			fmt.Fprintf(&sb, "    # Precondition: %s\n", pre)
		}
		for _, step := range tc.Steps {
			fmt.Fprintf(&sb, "    # Step %d: %s\n", step.StepNumber, step.Action)
			fmt.Fprintf(&sb, "    # Expect: %s\n", step.ExpectedResult)
		}
		sb.WriteString("    pytest.fail(\"not implemented\")\n")
	}
	return sb.String()
}

// scenarioLabel renders a scenario type for humans, e.g. "Happy Path".
func scenarioLabel(st suite.ScenarioType) string {
	return titleCaser.String(strings.ReplaceAll(string(st), "_", " "))
}

var nonIdent = regexp.MustCompile(`[^a-z0-9]+`)

func pythonIdent(title string) string {
	ident := nonIdent.ReplaceAllString(strings.ToLower(title), "_")
	ident = strings.Trim(ident, "_")
	if ident == "" {
		ident = "case"
	}
	if ident[0] >= '0' && ident[0] <= '9' {
		ident = "case_" + ident
	}
	return ident
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
