package export

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/caseforge/worker/internal/domain/suite"
)

func sampleSuite(format suite.TestFormat) *suite.TestSuite {
	return &suite.TestSuite{
		ID:           "TS-ABCD1234",
		StorySummary: "User logs in",
		Component:    "Login",
		TotalCases:   2,
		Breakdown: map[suite.ScenarioType]int{
			suite.ScenarioHappyPath: 1,
			suite.ScenarioNegative:  1,
		},
		TestCases: []suite.TestCase{
			{
				ID:            "TC-00000001",
				Title:         "Login succeeds with valid credentials",
				ScenarioType:  suite.ScenarioHappyPath,
				Severity:      suite.SeverityCritical,
				Priority:      suite.PriorityP1,
				Preconditions: []string{"Account exists"},
				Steps: []suite.TestStep{
					{StepNumber: 1, Action: "Enter valid credentials", InputData: "user@example.com", ExpectedResult: "Dashboard shown"},
				},
				Tags: []string{"auth"},
			},
			{
				ID:           "TC-00000002",
				Title:        "Login rejected with wrong password",
				ScenarioType: suite.ScenarioNegative,
				Severity:     suite.SeverityMajor,
				Priority:     suite.PriorityP1,
				Steps: []suite.TestStep{
					{StepNumber: 1, Action: "Enter wrong password", ExpectedResult: "Error shown"},
					{StepNumber: 2, Action: "Check no session exists", ExpectedResult: "No cookie issued"},
				},
			},
		},
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Format:      format,
	}
}

func TestRenderJSON(t *testing.T) {
	out, err := RenderJSON(sampleSuite(suite.FormatGherkin))
	if err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["suite_id"] != "TS-ABCD1234" {
		t.Errorf("suite_id = %v", decoded["suite_id"])
	}
}

func TestRenderCSV(t *testing.T) {
	out, err := RenderCSV(sampleSuite(suite.FormatPlainSteps))
	if err != nil {
		t.Fatalf("RenderCSV: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2 rows", len(records))
	}
	if records[1][2] != "Happy Path" {
		t.Errorf("scenario label = %q, want %q", records[1][2], "Happy Path")
	}
}

func TestRenderGherkin(t *testing.T) {
	out := RenderGherkin(sampleSuite(suite.FormatGherkin))

	for _, want := range []string{
		"Feature: User logs in",
		"Scenario: Login succeeds with valid credentials",
		"Given account exists",
		"When enter valid credentials",
		"Then dashboard shown",
		"@negative @major",
		"And check no session exists",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("gherkin output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderGherkin_UsesModelGherkinVerbatim(t *testing.T) {
	s := sampleSuite(suite.FormatGherkin)
	s.TestCases[0].Gherkin = "Scenario: Custom\n  Given something"

	out := RenderGherkin(s)
	if !strings.Contains(out, "Scenario: Custom") {
		t.Error("model-provided gherkin must be used verbatim")
	}
}

func TestRenderPlainSteps(t *testing.T) {
	out := RenderPlainSteps(sampleSuite(suite.FormatPlainSteps))

	for _, want := range []string{
		"Test Suite: User logs in",
		"1. Login succeeds with valid credentials [TC-00000001]",
		"Input: user@example.com",
		"Expected: Dashboard shown",
		"Severity: Critical",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plain steps output missing %q", want)
		}
	}
}

func TestRenderPytestStub(t *testing.T) {
	out := RenderPytestStub(sampleSuite(suite.FormatPytest))

	for _, want := range []string{
		"import pytest",
		"@pytest.mark.happy_path",
		"def test_login_succeeds_with_valid_credentials():",
		"# Step 1: Enter wrong password",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("pytest output missing %q", want)
		}
	}
}

func TestRender_DispatchesOnFormat(t *testing.T) {
	for _, format := range []suite.TestFormat{suite.FormatGherkin, suite.FormatPlainSteps, suite.FormatPytest} {
		if _, err := Render(sampleSuite(format)); err != nil {
			t.Errorf("Render(%s): %v", format, err)
		}
	}
	s := sampleSuite("bogus")
	if _, err := Render(s); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestPythonIdent(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Login succeeds with valid credentials", "login_succeeds_with_valid_credentials"},
		{"123 starts with digit", "case_123_starts_with_digit"},
		{"!!!", "case"},
	}
	for _, tt := range tests {
		if got := pythonIdent(tt.in); got != tt.want {
			t.Errorf("pythonIdent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
