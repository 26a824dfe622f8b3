package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/pkg/anthropic"
)

const extractSystemText = "You are an analyst extracting evidence from sales call transcripts. " +
	"Quote only text that appears verbatim in the transcript. Return valid JSON matching the requested schema."

const extractPrompt = `Extract evidentiary material from this call transcript.

Call: %s
Date: %s
Account: %s

Transcript:
%s

Return a JSON object:
{
  "quotes": [{"text": "<verbatim quote>", "speaker": "<name or null>", "timestamp_ms": <int or null>, "topic": "<short label>", "confidence": <0.0-1.0>}],
  "claims": [{"claim": "<one-line quantitative statement>", "value": "<the figure, e.g. $200k or 40%%>", "quote": "<verbatim supporting quote>", "confidence": <0.0-1.0>}]
}

Rules:
- Quotes must be copied verbatim from the transcript, at least one full sentence.
- Claims must be quantitative: money, percentages, or counted things.
- Omit anything you cannot support with a verbatim quote.`

// Extractor pulls candidate quotes and quantitative claims out of one
// call at a time via the reasoning service. Candidates are validated by
// the caller's Validator before they are trusted.
type Extractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewExtractor creates an Extractor using the given model.
func NewExtractor(client anthropic.Client, model string) *Extractor {
	return &Extractor{client: client, model: model, maxTokens: 4096}
}

// Model returns the model ID the extractor calls.
func (e *Extractor) Model() string { return e.model }

type rawQuote struct {
	Text        string  `json:"text"`
	Speaker     string  `json:"speaker"`
	TimestampMs *int64  `json:"timestamp_ms"`
	Topic       string  `json:"topic"`
	Confidence  float64 `json:"confidence"`
}

type rawClaim struct {
	Claim      string  `json:"claim"`
	Value      string  `json:"value"`
	Quote      string  `json:"quote"`
	Confidence float64 `json:"confidence"`
}

type extractPayload struct {
	Quotes []rawQuote `json:"quotes"`
	Claims []rawClaim `json:"claims"`
}

// Extract requests candidate evidence for a single call. One call per
// request keeps external volume bounded and error attribution
// unambiguous.
func (e *Extractor) Extract(ctx context.Context, call model.CanonicalCall) ([]model.QuoteEvidence, []model.QuantClaim, anthropic.TokenUsage, error) {
	prompt := fmt.Sprintf(extractPrompt,
		call.Title,
		call.OccurredAt.Format("2006-01-02"),
		call.AccountName,
		transcriptForPrompt(call),
	)

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System:    extractSystemText,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, nil, anthropic.TokenUsage{}, eris.Wrapf(err, "evidence: extract call %s", call.Key())
	}

	var payload extractPayload
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text)), &payload); err != nil {
		return nil, nil, resp.Usage, eris.Wrapf(err, "evidence: parse extraction for call %s", call.Key())
	}

	attr := model.Attribution{
		SourceCallID:    call.ProviderCallID,
		SourceCallTitle: call.Title,
		SourceCallDate:  call.OccurredAt,
	}

	quotes := make([]model.QuoteEvidence, 0, len(payload.Quotes))
	for _, q := range payload.Quotes {
		a := attr
		a.Speaker = q.Speaker
		a.SourceTimestampMs = q.TimestampMs
		quotes = append(quotes, model.QuoteEvidence{
			Text:        q.Text,
			Topic:       q.Topic,
			Confidence:  clamp01(q.Confidence),
			Attribution: a,
		})
	}

	claims := make([]model.QuantClaim, 0, len(payload.Claims))
	for _, c := range payload.Claims {
		claims = append(claims, model.QuantClaim{
			Claim:       c.Claim,
			Value:       c.Value,
			Quote:       c.Quote,
			Confidence:  clamp01(c.Confidence),
			Attribution: attr,
		})
	}

	zap.L().Debug("extracted candidate evidence",
		zap.String("call", call.Key()),
		zap.Int("quotes", len(quotes)),
		zap.Int("claims", len(claims)),
	)
	return quotes, claims, resp.Usage, nil
}

// transcriptForPrompt renders segments speaker-prefixed when present,
// falling back to the flat transcript text.
func transcriptForPrompt(call model.CanonicalCall) string {
	if len(call.Segments) == 0 {
		return call.TranscriptText
	}
	var b strings.Builder
	for _, seg := range call.Segments {
		if seg.Speaker != "" {
			b.WriteString(seg.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(seg.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
