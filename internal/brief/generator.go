// Package brief renders evidence-grounded account narratives from
// deduplicated calls and validated quotes and claims.
package brief

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/pkg/anthropic"
)

const generateSystemText = "You are a sales analyst writing an account brief. " +
	"Ground every statement in the supplied evidence; cite quotes by call title and date. " +
	"Never state a figure that does not appear in the evidence. Write markdown."

const generatePrompt = `Write an account brief for %s based on %d consolidated calls.

## Validated quotes
%s

## Validated quantitative claims
%s

## Call log
%s

Structure: Summary, Relationship timeline, Key metrics, Risks & open threads.
Every metric must come from the quantitative claims above, with its citation.`

// Generator renders the narrative via the reasoning service. It only
// ever sees validated evidence; admissibility is enforced upstream.
type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewGenerator creates a Generator using the given model.
func NewGenerator(client anthropic.Client, model string) *Generator {
	return &Generator{client: client, model: model, maxTokens: 8192}
}

// Input carries the validated artifacts the narrative is grounded on.
type Input struct {
	Account    model.SharedAccountMatch
	Calls      []model.CanonicalCall
	Quotes     []model.QuoteEvidence
	Claims     []model.QuantClaim
	Duplicates []model.DuplicateResolution
}

// Generate renders the markdown brief.
func (g *Generator) Generate(ctx context.Context, in Input) (*model.BriefResult, error) {
	prompt := fmt.Sprintf(generatePrompt,
		in.Account.DisplayName,
		len(in.Calls),
		renderQuotes(in.Quotes),
		renderClaims(in.Claims),
		renderCallLog(in.Calls),
	)

	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    generateSystemText,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "brief: generate for %s", in.Account.DisplayName)
	}
	resp.Usage.LogCost(g.model, "brief_generation")

	return &model.BriefResult{
		Account:     in.Account,
		Markdown:    strings.TrimSpace(resp.Text),
		CallCount:   len(in.Calls),
		Duplicates:  in.Duplicates,
		Quotes:      in.Quotes,
		Claims:      in.Claims,
		Model:       resp.Model,
		CostUSD:     resp.Usage.EstimateCost(g.model),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func renderQuotes(quotes []model.QuoteEvidence) string {
	if len(quotes) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, q := range quotes {
		fmt.Fprintf(&b, "- %q — %s, %q (%s)\n",
			q.Text, speakerOrUnknown(q.Speaker), q.SourceCallTitle,
			q.SourceCallDate.Format("2006-01-02"))
	}
	return b.String()
}

func renderClaims(claims []model.QuantClaim) string {
	if len(claims) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, c := range claims {
		fmt.Fprintf(&b, "- %s [value: %s] — evidence: %q (%q, %s)\n",
			c.Claim, c.Value, c.Quote, c.SourceCallTitle,
			c.SourceCallDate.Format("2006-01-02"))
	}
	return b.String()
}

func renderCallLog(calls []model.CanonicalCall) string {
	var b strings.Builder
	for _, c := range calls {
		fmt.Fprintf(&b, "- %s — %q (%s, %d min)\n",
			c.OccurredAt.Format("2006-01-02"), c.Title, c.Provider,
			c.DurationSeconds/60)
	}
	return b.String()
}

// MergedTranscript renders the full call set chronologically with
// per-call headers, for consumers that want the raw consolidated text.
func MergedTranscript(calls []model.CanonicalCall) string {
	var b strings.Builder
	for i, c := range calls {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== %s — %s (%s) ===\n",
			c.OccurredAt.Format("2006-01-02 15:04"), c.Title, c.Provider)
		b.WriteString(c.TranscriptText)
	}
	return b.String()
}

func speakerOrUnknown(s string) string {
	if s == "" {
		return "unattributed"
	}
	return s
}
