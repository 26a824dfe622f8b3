// Package match reconciles account lists discovered from two providers
// into one-to-one shared-account pairs, and resolves free-text account
// names against the matched set.
package match

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/callbrief-cli/internal/model"
)

const (
	// heuristicThreshold is the minimum similarity for the heuristic
	// pass to accept a pairing. Tunable, defaulted for compatibility.
	heuristicThreshold = 0.82

	// substringFloor is the minimum score assigned when one normalized
	// key contains the other.
	substringFloor = 0.88

	// assistedThreshold is the minimum confidence accepted from the
	// assisted resolver.
	assistedThreshold = 0.75

	// assistedCap bounds how many unmatched accounts per side are
	// submitted to the assisted resolver in one request.
	assistedCap = 120
)

// Candidate is one unmatched account submitted to an assisted resolver.
type Candidate struct {
	NormalizedKey string `json:"normalized_key"`
	RawName       string `json:"raw_name"`
	CallCount     int    `json:"call_count"`
}

// AssistedMatch is one pairing proposed by an assisted resolver.
type AssistedMatch struct {
	KeyA          string  `json:"key_a"`
	KeyB          string  `json:"key_b"`
	CanonicalName string  `json:"canonical_name,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// AssistedResolver pairs account names that exact and heuristic passes
// could not. Implementations may call out to a semantic matching
// service; failures must be tolerable (the caller fails open).
type AssistedResolver interface {
	Resolve(ctx context.Context, sourceA, sourceB []Candidate) ([]AssistedMatch, error)
}

// Matcher pairs discovered accounts across two sources.
type Matcher struct {
	resolver     AssistedResolver // may be nil
	heuristicMin float64
	assistedMin  float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithAssistedResolver enables the assisted third pass.
func WithAssistedResolver(r AssistedResolver) Option {
	return func(m *Matcher) { m.resolver = r }
}

// WithThresholds overrides the heuristic and assisted acceptance
// thresholds. Zero values keep the defaults.
func WithThresholds(heuristic, assisted float64) Option {
	return func(m *Matcher) {
		if heuristic > 0 {
			m.heuristicMin = heuristic
		}
		if assisted > 0 {
			m.assistedMin = assisted
		}
	}
}

// New creates a Matcher.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		heuristicMin: heuristicThreshold,
		assistedMin:  assistedThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match reconciles two discovered-account lists into shared-account
// pairs via three passes (exact key, heuristic similarity, assisted),
// each consuming only records unmatched by prior passes. Accounts
// present in only one source are dropped: shared accounts only.
func (m *Matcher) Match(ctx context.Context, sourceA, sourceB []model.DiscoveredAccount) ([]model.SharedAccountMatch, error) {
	usedA := make(map[string]bool, len(sourceA))
	usedB := make(map[string]bool, len(sourceB))
	var matches []model.SharedAccountMatch

	// Pass 1: exact normalized-key equality.
	byKeyB := make(map[string]model.DiscoveredAccount, len(sourceB))
	for _, b := range sourceB {
		if _, dup := byKeyB[b.NormalizedKey]; !dup {
			byKeyB[b.NormalizedKey] = b
		}
	}
	for _, a := range sourceA {
		if usedA[a.NormalizedKey] {
			continue
		}
		b, ok := byKeyB[a.NormalizedKey]
		if !ok || usedB[b.NormalizedKey] {
			continue
		}
		matches = append(matches, newPairMatch(a, b, 1.0, model.MatchExact, ""))
		usedA[a.NormalizedKey] = true
		usedB[b.NormalizedKey] = true
	}

	// Pass 2: greedy per-record best heuristic score. This is an
	// accepted approximation of optimal bipartite assignment.
	for _, a := range sourceA {
		if usedA[a.NormalizedKey] {
			continue
		}
		var best model.DiscoveredAccount
		bestScore := 0.0
		for _, b := range sourceB {
			if usedB[b.NormalizedKey] {
				continue
			}
			score := heuristicScore(a.NormalizedKey, b.NormalizedKey)
			if score > bestScore {
				best, bestScore = b, score
			}
		}
		if bestScore >= m.heuristicMin {
			matches = append(matches, newPairMatch(a, best, bestScore, model.MatchHeuristic, ""))
			usedA[a.NormalizedKey] = true
			usedB[best.NormalizedKey] = true
		}
	}

	// Pass 3: assisted resolution of the remainder. Fails open: any
	// resolver error contributes zero matches rather than aborting.
	if m.resolver != nil {
		matches = append(matches, m.assistedPass(ctx, sourceA, sourceB, usedA, usedB)...)
	}

	sort.Slice(matches, func(i, j int) bool {
		ti, tj := matches[i].TotalCalls(), matches[j].TotalCalls()
		if ti != tj {
			return ti > tj
		}
		return matches[i].DisplayName < matches[j].DisplayName
	})
	for i := range matches {
		matches[i].ID = fmt.Sprintf("acct-%d", i+1)
	}
	return matches, nil
}

func (m *Matcher) assistedPass(ctx context.Context, sourceA, sourceB []model.DiscoveredAccount, usedA, usedB map[string]bool) []model.SharedAccountMatch {
	remA := remaining(sourceA, usedA)
	remB := remaining(sourceB, usedB)
	if len(remA) == 0 || len(remB) == 0 {
		return nil
	}
	if len(remA) > assistedCap {
		remA = remA[:assistedCap]
	}
	if len(remB) > assistedCap {
		remB = remB[:assistedCap]
	}

	proposed, err := m.resolver.Resolve(ctx, candidates(remA), candidates(remB))
	if err != nil {
		zap.L().Warn("assisted account matching unavailable, continuing without it",
			zap.Error(err))
		return nil
	}

	byKeyA := indexByKey(remA)
	byKeyB := indexByKey(remB)

	var matches []model.SharedAccountMatch
	for _, p := range proposed {
		if p.Confidence < m.assistedMin {
			continue
		}
		a, okA := byKeyA[p.KeyA]
		b, okB := byKeyB[p.KeyB]
		if !okA || !okB || usedA[a.NormalizedKey] || usedB[b.NormalizedKey] {
			continue
		}
		matches = append(matches, newPairMatch(a, b, p.Confidence, model.MatchAssisted, p.CanonicalName))
		usedA[a.NormalizedKey] = true
		usedB[b.NormalizedKey] = true
	}
	return matches
}

// newPairMatch builds a SharedAccountMatch. The display name prefers the
// resolver-supplied canonical name (assisted pass), else the longer of
// the two raw names, ties broken lexicographically.
func newPairMatch(a, b model.DiscoveredAccount, confidence float64, reason model.MatchReason, canonical string) model.SharedAccountMatch {
	display := canonical
	if display == "" {
		display = preferName(a.Name, b.Name)
	}
	return model.SharedAccountMatch{
		DisplayName:       display,
		NameBySource:      map[string]string{a.Source: a.Name, b.Source: b.Name},
		CallCountBySource: map[string]int{a.Source: a.CallCount, b.Source: b.CallCount},
		Confidence:        confidence,
		Reason:            reason,
	}
}

func preferName(x, y string) string {
	if len(x) != len(y) {
		if len(x) > len(y) {
			return x
		}
		return y
	}
	if x < y {
		return x
	}
	return y
}

func remaining(accounts []model.DiscoveredAccount, used map[string]bool) []model.DiscoveredAccount {
	var out []model.DiscoveredAccount
	for _, a := range accounts {
		if !used[a.NormalizedKey] {
			out = append(out, a)
		}
	}
	return out
}

func candidates(accounts []model.DiscoveredAccount) []Candidate {
	out := make([]Candidate, len(accounts))
	for i, a := range accounts {
		out[i] = Candidate{
			NormalizedKey: a.NormalizedKey,
			RawName:       a.Name,
			CallCount:     a.CallCount,
		}
	}
	return out
}

func indexByKey(accounts []model.DiscoveredAccount) map[string]model.DiscoveredAccount {
	out := make(map[string]model.DiscoveredAccount, len(accounts))
	for _, a := range accounts {
		if _, dup := out[a.NormalizedKey]; !dup {
			out[a.NormalizedKey] = a
		}
	}
	return out
}
