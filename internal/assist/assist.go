// Package assist implements semantic account-name matching on top of
// the Anthropic API. It is the optional third matcher pass; callers
// treat any failure here as "no matches", never as a pipeline error.
package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/callbrief-cli/internal/match"
	"github.com/sells-group/callbrief-cli/pkg/anthropic"
)

const systemText = "You match company names that refer to the same real-world organization. " +
	"Only pair names you are confident refer to the same company. Return valid JSON."

const promptTemplate = `Two call-recording providers discovered these account names independently.
Pair up entries from list A and list B that refer to the same organization.

List A:
%s
List B:
%s

Return a JSON object:
{"matches": [{"key_a": "<normalized_key from A>", "key_b": "<normalized_key from B>", "canonical_name": "<best display name>", "confidence": <0.0-1.0>}]}

Only include pairs you are confident about. An entry may appear in at most one pair.`

// Resolver implements match.AssistedResolver via the reasoning service.
type Resolver struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewResolver creates a Resolver using the given model.
func NewResolver(client anthropic.Client, model string) *Resolver {
	return &Resolver{client: client, model: model, maxTokens: 2048}
}

type payload struct {
	Matches []struct {
		KeyA          string  `json:"key_a"`
		KeyB          string  `json:"key_b"`
		CanonicalName string  `json:"canonical_name"`
		Confidence    float64 `json:"confidence"`
	} `json:"matches"`
}

// Resolve submits both unmatched lists in one request and returns the
// proposed pairs. Errors (network, malformed output) bubble up; the
// matcher fails open on them.
func (r *Resolver) Resolve(ctx context.Context, sourceA, sourceB []match.Candidate) ([]match.AssistedMatch, error) {
	prompt := fmt.Sprintf(promptTemplate, renderList(sourceA), renderList(sourceB))

	resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		System:    systemText,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "assist: resolve account names")
	}
	resp.Usage.LogCost(r.model, "assisted_matching")

	var out payload
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text)), &out); err != nil {
		return nil, eris.Wrap(err, "assist: parse resolver response")
	}

	matches := make([]match.AssistedMatch, 0, len(out.Matches))
	for _, m := range out.Matches {
		matches = append(matches, match.AssistedMatch{
			KeyA:          m.KeyA,
			KeyB:          m.KeyB,
			CanonicalName: m.CanonicalName,
			Confidence:    m.Confidence,
		})
	}
	return matches, nil
}

func renderList(candidates []match.Candidate) string {
	var b strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&b, "- normalized_key=%q raw_name=%q calls=%d\n", c.NormalizedKey, c.RawName, c.CallCount)
	}
	return b.String()
}
