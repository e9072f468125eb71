package testgen

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/caseforge/worker/internal/domain/suite"
)

// similarityThreshold is the Jaccard similarity at or above which two cases
// of the same scenario type count as duplicates.
const similarityThreshold = 0.85

var tokenPattern = regexp.MustCompile(`\b\w+\b`)

// deduplicate removes near-duplicate cases in place, comparing only cases of
// the same scenario type. Of a duplicate pair the case with strictly more
// steps survives; on a tie the earlier one does. Preconditions of the
// discarded case that the survivor lacks are merged into it.
func deduplicate(cases []suite.TestCase) []suite.TestCase {
	if len(cases) < 2 {
		return cases
	}

	tokens := make([]map[string]struct{}, len(cases))
	for i := range cases {
		tokens[i] = actionTokens(cases[i])
	}

	removed := make([]bool, len(cases))
	for i := 0; i < len(cases); i++ {
		if removed[i] {
			continue
		}
		for j := i + 1; j < len(cases); j++ {
			if removed[j] || cases[i].ScenarioType != cases[j].ScenarioType {
				continue
			}
			sim := jaccard(tokens[i], tokens[j])
			if sim < similarityThreshold {
				continue
			}

			keep, drop := i, j
			if len(cases[j].Steps) > len(cases[i].Steps) {
				keep, drop = j, i
			}
			mergePreconditions(&cases[keep], cases[drop])
			removed[drop] = true

			slog.Debug("near-duplicate case removed",
				"kept", cases[keep].Title,
				"dropped", cases[drop].Title,
				"similarity", sim,
			)
			if drop == i {
				break
			}
		}
	}

	result := cases[:0]
	for i := range cases {
		if !removed[i] {
			result = append(result, cases[i])
		}
	}
	return result
}

// actionTokens builds the lowercase word set of all step actions of a case.
func actionTokens(tc suite.TestCase) map[string]struct{} {
	var sb strings.Builder
	for _, step := range tc.Steps {
		sb.WriteString(step.Action)
		sb.WriteString(" ")
	}

	set := make(map[string]struct{})
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(sb.String()), -1) {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b|. Two empty sets are identical by
// definition.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func mergePreconditions(keep *suite.TestCase, drop suite.TestCase) {
	seen := make(map[string]struct{}, len(keep.Preconditions))
	for _, p := range keep.Preconditions {
		seen[p] = struct{}{}
	}
	for _, p := range drop.Preconditions {
		if _, ok := seen[p]; !ok {
			keep.Preconditions = append(keep.Preconditions, p)
		}
	}
}
