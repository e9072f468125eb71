package testgen

import (
	"fmt"
	"strings"
	"testing"

	"github.com/caseforge/worker/internal/domain/suite"
)

// caseWithTokens builds a case whose action contains tokens w<1>..w<n>,
// optionally with extra steps to bias survivor selection.
func caseWithTokens(title string, scenario suite.ScenarioType, n int, extraSteps int) suite.TestCase {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i+1)
	}
	steps := []suite.TestStep{{Action: strings.Join(words, " "), ExpectedResult: "ok"}}
	for i := 0; i < extraSteps; i++ {
		steps = append(steps, suite.TestStep{Action: words[0], ExpectedResult: "ok"})
	}
	return suite.TestCase{
		Title:        title,
		ScenarioType: scenario,
		Steps:        suite.NormalizeSteps(steps),
	}
}

func TestDeduplicate_ThresholdBoundary(t *testing.T) {
	// 17 shared tokens out of a 20-token union: similarity exactly 0.85.
	a := caseWithTokens("first", suite.ScenarioHappyPath, 20, 0)
	b := caseWithTokens("second", suite.ScenarioHappyPath, 17, 0)

	got := deduplicate([]suite.TestCase{a, b})
	if len(got) != 1 {
		t.Fatalf("similarity 0.85 must deduplicate, got %d cases", len(got))
	}

	// 16 shared tokens out of a 19-token union: similarity 0.842, both survive.
	a = caseWithTokens("first", suite.ScenarioHappyPath, 19, 0)
	c := caseWithTokens("third", suite.ScenarioHappyPath, 16, 0)

	got = deduplicate([]suite.TestCase{a, c})
	if len(got) != 2 {
		t.Fatalf("similarity just below threshold must keep both, got %d cases", len(got))
	}
}

func TestDeduplicate_DifferentScenariosNeverCompared(t *testing.T) {
	a := caseWithTokens("valid path", suite.ScenarioHappyPath, 10, 0)
	b := caseWithTokens("same words negative", suite.ScenarioNegative, 10, 0)

	got := deduplicate([]suite.TestCase{a, b})
	if len(got) != 2 {
		t.Fatalf("identical actions across scenario types must both survive, got %d", len(got))
	}
}

func TestDeduplicate_KeepsCaseWithMoreSteps(t *testing.T) {
	short := caseWithTokens("short", suite.ScenarioHappyPath, 10, 0)
	long := caseWithTokens("long", suite.ScenarioHappyPath, 10, 2)

	got := deduplicate([]suite.TestCase{short, long})
	if len(got) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(got))
	}
	if got[0].Title != "long" {
		t.Errorf("survivor = %q, want the case with more steps", got[0].Title)
	}
}

func TestDeduplicate_TieKeepsEarlierCase(t *testing.T) {
	a := caseWithTokens("earlier", suite.ScenarioHappyPath, 10, 0)
	b := caseWithTokens("later", suite.ScenarioHappyPath, 10, 0)

	got := deduplicate([]suite.TestCase{a, b})
	if len(got) != 1 || got[0].Title != "earlier" {
		t.Fatalf("tie must keep the earlier case, got %v", got)
	}
}

func TestDeduplicate_MergesUnseenPreconditions(t *testing.T) {
	a := caseWithTokens("kept", suite.ScenarioHappyPath, 10, 0)
	a.Preconditions = []string{"x"}
	b := caseWithTokens("dropped", suite.ScenarioHappyPath, 10, 0)
	b.Preconditions = []string{"x", "y"}

	got := deduplicate([]suite.TestCase{a, b})
	if len(got) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(got))
	}
	want := []string{"x", "y"}
	if len(got[0].Preconditions) != 2 || got[0].Preconditions[0] != want[0] || got[0].Preconditions[1] != want[1] {
		t.Errorf("preconditions = %v, want %v", got[0].Preconditions, want)
	}
}

func TestJaccard_EmptySetsAreIdentical(t *testing.T) {
	if sim := jaccard(map[string]struct{}{}, map[string]struct{}{}); sim != 1.0 {
		t.Errorf("jaccard of two empty sets = %v, want 1.0", sim)
	}
}

func TestDeduplicate_CaseInsensitiveTokens(t *testing.T) {
	a := suite.TestCase{
		Title:        "upper",
		ScenarioType: suite.ScenarioHappyPath,
		Steps:        []suite.TestStep{{Action: "Enter Valid Email And Submit Form", ExpectedResult: "ok"}},
	}
	b := suite.TestCase{
		Title:        "lower",
		ScenarioType: suite.ScenarioHappyPath,
		Steps:        []suite.TestStep{{Action: "enter valid email and submit form", ExpectedResult: "ok"}},
	}

	if got := deduplicate([]suite.TestCase{a, b}); len(got) != 1 {
		t.Fatalf("case-folded identical actions must deduplicate, got %d cases", len(got))
	}
}
