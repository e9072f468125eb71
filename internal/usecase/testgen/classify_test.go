package testgen

import (
	"testing"

	"github.com/caseforge/worker/internal/domain/suite"
)

func TestClassifyScenario(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		title    string
		tags     []string
		want     suite.ScenarioType
	}{
		{"canonical passes through", "negative", "anything", nil, suite.ScenarioNegative},
		{"canonical with casing", "Edge_Case", "anything", nil, suite.ScenarioEdgeCase},
		{"hyphenated canonical", "happy-path", "anything", nil, suite.ScenarioHappyPath},
		{"alias error_case", "error_case", "anything", nil, suite.ScenarioNegative},
		{"alias positive", "positive", "anything", nil, suite.ScenarioHappyPath},
		{"alias corner case", "corner case", "anything", nil, suite.ScenarioEdgeCase},
		{"alias perf", "perf", "anything", nil, suite.ScenarioPerformance},
		{"keyword reject", "unknown-label", "Reject login with expired token", nil, suite.ScenarioNegative},
		{"keyword boundary", "", "Submit form at maximum field limit", nil, suite.ScenarioEdgeCase},
		{"keyword injection", "", "Attempt SQL injection in search box", nil, suite.ScenarioSecurity},
		{"keyword load", "", "Measure page speed under stress", nil, suite.ScenarioPerformance},
		{"keyword latency", "", "Check latency of the dashboard", nil, suite.ScenarioPerformance},
		{"keyword in tags only", "", "Verify the form submission", []string{"edge"}, suite.ScenarioEdgeCase},
		{"security tag", "", "Submit the search form", []string{"xss", "smoke"}, suite.ScenarioSecurity},
		{"no signal defaults to happy path", "", "Display the welcome banner", []string{"smoke"}, suite.ScenarioHappyPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyScenario(tt.declared, tt.title, tt.tags); got != tt.want {
				t.Errorf("classifyScenario(%q, %q, %v) = %s, want %s", tt.declared, tt.title, tt.tags, got, tt.want)
			}
		})
	}
}

func TestDefaultSeverity(t *testing.T) {
	tests := []struct {
		scenario suite.ScenarioType
		want     suite.Severity
	}{
		{suite.ScenarioHappyPath, suite.SeverityCritical},
		{suite.ScenarioSecurity, suite.SeverityCritical},
		{suite.ScenarioNegative, suite.SeverityMajor},
		{suite.ScenarioEdgeCase, suite.SeverityMajor},
		{suite.ScenarioBoundary, suite.SeverityMinor},
		{suite.ScenarioPerformance, suite.SeverityMinor},
	}
	for _, tt := range tests {
		if got := defaultSeverity(tt.scenario); got != tt.want {
			t.Errorf("defaultSeverity(%s) = %s, want %s", tt.scenario, got, tt.want)
		}
	}
}
