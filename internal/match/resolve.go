package match

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/internal/namekey"
)

const (
	// resolveAccept accepts the top candidate outright.
	resolveAccept = 0.82

	// resolveGapAccept accepts a moderately confident top candidate when
	// it leads the runner-up by at least resolveGap.
	resolveGapAccept = 0.72
	resolveGap       = 0.08

	maxSuggestions = 5
)

// ResolveAccount matches a caller-supplied free-text account name
// against the shared-account list using a blended similarity over
// suffix-stripped normalized names. It either returns an unambiguous
// winner or an AmbiguousAccountError carrying the top-scored
// suggestions; it never silently guesses.
func ResolveAccount(requested string, accounts []model.SharedAccountMatch) (*model.SharedAccountMatch, error) {
	if len(accounts) == 0 {
		return nil, eris.Wrap(model.ErrNoSharedAccounts, "match: resolve account")
	}

	key := namekey.Normalize(requested)
	scored := make([]model.Suggestion, len(accounts))
	for i, acct := range accounts {
		scored[i] = model.Suggestion{
			DisplayName: acct.DisplayName,
			Score:       resolveScore(key, namekey.Normalize(acct.DisplayName)),
		}
	}

	order := make([]int, len(accounts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scored[order[i]].Score > scored[order[j]].Score
	})

	top := scored[order[0]]
	accepted := top.Score >= resolveAccept
	if !accepted && top.Score >= resolveGapAccept {
		if len(order) == 1 || top.Score-scored[order[1]].Score >= resolveGap {
			accepted = true
		}
	}
	if accepted {
		winner := accounts[order[0]]
		return &winner, nil
	}

	n := len(order)
	if n > maxSuggestions {
		n = maxSuggestions
	}
	suggestions := make([]model.Suggestion, n)
	for i := 0; i < n; i++ {
		suggestions[i] = scored[order[i]]
	}
	return nil, &model.AmbiguousAccountError{Requested: requested, Suggestions: suggestions}
}

// resolveScore blends token overlap, edit similarity, and prefix
// similarity over normalized (legal-suffix-stripped) names.
func resolveScore(a, b string) float64 {
	score := tokenOverlap(a, b, 2)
	if s := editSimilarity(a, b); s > score {
		score = s
	}
	if s := prefixSimilarity(a, b); s > score {
		score = s
	}
	return score
}
