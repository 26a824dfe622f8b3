package model

// DiscoveredAccount is one organization surfaced by a single provider,
// with its call volume. Recomputed on every discovery request.
type DiscoveredAccount struct {
	Name          string `json:"name"`
	NormalizedKey string `json:"normalized_key"`
	Source        string `json:"source"`
	CallCount     int    `json:"call_count"`
}

// MatchReason identifies which matcher pass paired two accounts.
type MatchReason string

const (
	MatchExact     MatchReason = "exact"
	MatchHeuristic MatchReason = "heuristic"
	MatchAssisted  MatchReason = "assisted"
)

// SharedAccountMatch pairs the same real-world organization across both
// providers. Each raw name from either source appears in at most one
// match; accounts present in only one source are not surfaced.
type SharedAccountMatch struct {
	ID                string            `json:"id"`
	DisplayName       string            `json:"display_name"`
	NameBySource      map[string]string `json:"name_by_source"`
	CallCountBySource map[string]int    `json:"call_count_by_source"`
	Confidence        float64           `json:"confidence"`
	Reason            MatchReason       `json:"reason"`
}

// TotalCalls sums the call volume across all sources.
func (m SharedAccountMatch) TotalCalls() int {
	total := 0
	for _, n := range m.CallCountBySource {
		total += n
	}
	return total
}
