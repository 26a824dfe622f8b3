package match

import (
	"strings"

	"github.com/agext/levenshtein"
)

// heuristicScore scores two normalized keys for the heuristic matcher
// pass: token-overlap similarity, floored at substringFloor when one key
// contains the other.
func heuristicScore(keyA, keyB string) float64 {
	if keyA == "" || keyB == "" {
		return 0
	}
	score := tokenOverlap(keyA, keyB, 2)
	if strings.Contains(keyA, keyB) || strings.Contains(keyB, keyA) {
		if score < substringFloor {
			score = substringFloor
		}
	}
	return score
}

// tokenOverlap computes |intersection| / max(|tokensA|, |tokensB|) over
// whitespace-split tokens of at least minLen characters.
func tokenOverlap(a, b string, minLen int) float64 {
	ta := tokenSet(a, minLen)
	tb := tokenSet(b, minLen)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	common := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			common++
		}
	}
	denom := len(ta)
	if len(tb) > denom {
		denom = len(tb)
	}
	return float64(common) / float64(denom)
}

func tokenSet(s string, minLen int) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		if len(tok) >= minLen {
			out[tok] = struct{}{}
		}
	}
	return out
}

// editSimilarity is 1 - levenshtein(a,b)/max(len(a),len(b)).
func editSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.Distance(a, b, nil)
	return 1 - float64(dist)/float64(maxLen)
}

// prefixSimilarity is common-prefix length / max length.
func prefixSimilarity(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return float64(n) / float64(maxLen)
}
