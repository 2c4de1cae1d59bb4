package evaluation

import (
	"strings"
	"unicode"
)

// SimilarityThreshold is the Jaccard score a query must exceed to count as a match.
const SimilarityThreshold = 0.8

// Normalize lowercases and trims query, then drops all whitespace and quote characters.
func Normalize(query string) string {
	lowered := strings.ToLower(strings.TrimSpace(query))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' || r == '"' {
			return -1
		}
		return r
	}, lowered)
}

// Similarity is the Jaccard index of the whitespace-separated tokens of a and b after
// lowercasing. It is 0 when both are empty.
func Similarity(a, b string) float64 {
	left := tokenSet(a)
	right := tokenSet(b)

	intersection := 0
	for token := range left {
		if _, ok := right[token]; ok {
			intersection++
		}
	}
	union := len(left) + len(right) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Compare grades generated against expected without parsing SQL: normalized equality, or a
// token similarity strictly above SimilarityThreshold. An empty generated query never matches.
func Compare(generated, expected string) bool {
	if strings.TrimSpace(generated) == "" {
		return false
	}
	if Normalize(generated) == Normalize(expected) {
		return true
	}
	return Similarity(generated, expected) > SimilarityThreshold
}

func tokenSet(query string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	set := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		set[field] = struct{}{}
	}
	return set
}
