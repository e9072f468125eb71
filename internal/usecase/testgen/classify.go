package testgen

import (
	"strings"

	"github.com/caseforge/worker/internal/domain/suite"
)

// scenarioAliases maps off-enum labels models commonly emit onto canonical
// scenario types. Keys are lowercased.
var scenarioAliases = map[string]suite.ScenarioType{
	"happy":         suite.ScenarioHappyPath,
	"happy path":    suite.ScenarioHappyPath,
	"happypath":     suite.ScenarioHappyPath,
	"positive":      suite.ScenarioHappyPath,
	"normal":        suite.ScenarioHappyPath,
	"success":       suite.ScenarioHappyPath,
	"edge":          suite.ScenarioEdgeCase,
	"edge case":     suite.ScenarioEdgeCase,
	"edgecase":      suite.ScenarioEdgeCase,
	"corner case":   suite.ScenarioEdgeCase,
	"corner_case":   suite.ScenarioEdgeCase,
	"negative case": suite.ScenarioNegative,
	"error":         suite.ScenarioNegative,
	"error case":    suite.ScenarioNegative,
	"error_case":    suite.ScenarioNegative,
	"failure":       suite.ScenarioNegative,
	"invalid":       suite.ScenarioNegative,
	"boundary value": suite.ScenarioBoundary,
	"boundary_value": suite.ScenarioBoundary,
	"limits":         suite.ScenarioBoundary,
	"sec":            suite.ScenarioSecurity,
	"perf":           suite.ScenarioPerformance,
	"load":           suite.ScenarioPerformance,
	"stress":         suite.ScenarioPerformance,
}

// keywordRule classifies a case by words in its title and tags. Rules are
// checked in order; the first hit wins.
type keywordRule struct {
	keywords []string
	scenario suite.ScenarioType
}

var hintKeywordRules = []keywordRule{
	{[]string{"edge", "boundary", "limit", "corner", "extreme"}, suite.ScenarioEdgeCase},
	{[]string{"invalid", "error", "fail", "reject", "unauthorized", "wrong", "missing", "expired"}, suite.ScenarioNegative},
	{[]string{"security", "xss", "csrf", "injection", "exploit", "privilege"}, suite.ScenarioSecurity},
	{[]string{"performance", "load", "latency", "stress", "throughput", "concurrent"}, suite.ScenarioPerformance},
}

// classifyScenario resolves the scenario type for one raw case. The declared
// label wins when it is canonical or a known alias; otherwise the title and
// tags are scanned together for signal keywords, and happy_path is the
// fallback.
func classifyScenario(declared, title string, tags []string) suite.ScenarioType {
	normalized := strings.ToLower(strings.TrimSpace(declared))
	normalized = strings.ReplaceAll(normalized, "-", "_")

	if st := suite.ScenarioType(normalized); st.IsValid() {
		return st
	}
	if st, ok := scenarioAliases[normalized]; ok {
		return st
	}
	if st, ok := scenarioAliases[strings.ReplaceAll(normalized, "_", " ")]; ok {
		return st
	}

	hint := strings.ToLower(strings.Join(append([]string{title}, tags...), " "))
	for _, rule := range hintKeywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(hint, kw) {
				return rule.scenario
			}
		}
	}

	return suite.ScenarioHappyPath
}

// defaultSeverity returns the severity assigned when the model omits it or
// emits an off-enum value.
func defaultSeverity(scenario suite.ScenarioType) suite.Severity {
	switch scenario {
	case suite.ScenarioHappyPath, suite.ScenarioSecurity:
		return suite.SeverityCritical
	case suite.ScenarioNegative, suite.ScenarioEdgeCase:
		return suite.SeverityMajor
	default:
		return suite.SeverityMinor
	}
}
