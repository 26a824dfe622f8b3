package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Input errors: caller-fixable, surfaced verbatim, never retried.
var (
	ErrNoCalls          = eris.New("no calls found for the requested account in any source")
	ErrAllDuplicates    = eris.New("all calls were eliminated as duplicates")
	ErrNoSharedAccounts = eris.New("no accounts are present in both sources")
	ErrMissingCreds     = eris.New("missing provider credentials")
)

// Suggestion is one scored candidate offered when account resolution
// cannot pick a winner.
type Suggestion struct {
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// AmbiguousAccountError reports that a requested account name matched no
// shared account confidently, along with the closest candidates so the
// caller can retry with an exact choice.
type AmbiguousAccountError struct {
	Requested   string
	Suggestions []Suggestion
}

func (e *AmbiguousAccountError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("no shared account matches %q", e.Requested)
	}
	names := make([]string, len(e.Suggestions))
	for i, s := range e.Suggestions {
		names[i] = fmt.Sprintf("%s (%.2f)", s.DisplayName, s.Score)
	}
	return fmt.Sprintf("no confident match for account %q; closest: %s",
		e.Requested, strings.Join(names, ", "))
}
