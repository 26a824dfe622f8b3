// Package evidence extracts and validates attributable evidentiary
// snippets from call transcripts. Nothing that fails verbatim-substring
// validation against its source transcript may reach the narrative
// generator.
package evidence

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/callbrief-cli/internal/model"
)

// minQuoteLen is the minimum normalized quote length admitted.
const minQuoteLen = 16

// numericSignal matches currency amounts, percentages, or a bare number
// followed by a unit word. At least one of a claim's text, value, or
// evidence quote must match it.
var numericSignal = regexp.MustCompile(
	`(?i)([$€£]\s?\d[\d,.]*[kmb]?)|(\d+(\.\d+)?\s?%)|(\d[\d,.]*[km]?\s+` +
		`(hours?|days?|weeks?|months?|years?|minutes?|users?|seats?|tickets?|agents?|` +
		`calls?|reps?|people|employees|customers|clients|licenses?|deals?|dollars|percent))`)

// Validator admits quotes and claims against the transcripts of a fixed
// call set, backfills missing attribution from segments, and suppresses
// near-identical repeats.
type Validator struct {
	calls      map[string]model.CanonicalCall // keyed by provider call ID
	seenQuotes map[string]bool
	seenClaims map[string]bool
}

// NewValidator builds a Validator over the deduplicated call set.
func NewValidator(calls []model.CanonicalCall) *Validator {
	byID := make(map[string]model.CanonicalCall, len(calls))
	for _, c := range calls {
		byID[c.ProviderCallID] = c
	}
	return &Validator{
		calls:      byID,
		seenQuotes: make(map[string]bool),
		seenClaims: make(map[string]bool),
	}
}

// AdmitQuote returns the quote (with attribution backfilled) and true if
// it is verbatim-traceable to its source call's transcript, long enough,
// and not a repeat. Rejections are silent by design: they are the
// evidence-integrity guarantee, not failures.
func (v *Validator) AdmitQuote(q model.QuoteEvidence) (model.QuoteEvidence, bool) {
	call, ok := v.calls[q.SourceCallID]
	if !ok {
		return q, false
	}
	norm := normalizeForMatch(q.Text)
	if len(norm) < minQuoteLen {
		return q, false
	}
	if !strings.Contains(normalizeForMatch(call.TranscriptText), norm) {
		zap.L().Debug("rejected unverifiable quote",
			zap.String("call", q.SourceCallID),
			zap.Int("len", len(norm)),
		)
		return q, false
	}

	key := q.SourceCallID + "|" + norm
	if v.seenQuotes[key] {
		return q, false
	}
	v.seenQuotes[key] = true

	q.Attribution = v.backfill(call, q.Attribution, norm)
	return q, true
}

// AdmitClaim admits a quantitative claim when its evidence quote passes
// the same substring test and at least one of claim text, value, or
// quote carries a numeric signal.
func (v *Validator) AdmitClaim(c model.QuantClaim) (model.QuantClaim, bool) {
	call, ok := v.calls[c.SourceCallID]
	if !ok {
		return c, false
	}
	norm := normalizeForMatch(c.Quote)
	if len(norm) < minQuoteLen || !strings.Contains(normalizeForMatch(call.TranscriptText), norm) {
		return c, false
	}
	if !numericSignal.MatchString(c.Claim) &&
		!numericSignal.MatchString(c.Value) &&
		!numericSignal.MatchString(c.Quote) {
		return c, false
	}

	key := c.SourceCallID + "|" + strings.ToLower(c.Claim) + "|" + strings.ToLower(c.Value)
	if v.seenClaims[key] {
		return c, false
	}
	v.seenClaims[key] = true

	c.Attribution = v.backfill(call, c.Attribution, norm)
	return c, true
}

// backfill fills call identity always, and speaker/timestamp from the
// first segment whose text contains (or is contained by) the normalized
// quote, when the extractor did not supply a timestamp.
func (v *Validator) backfill(call model.CanonicalCall, attr model.Attribution, normQuote string) model.Attribution {
	attr.SourceCallID = call.ProviderCallID
	attr.SourceCallTitle = call.Title
	attr.SourceCallDate = call.OccurredAt

	if attr.SourceTimestampMs != nil {
		return attr
	}
	for _, seg := range call.Segments {
		segNorm := normalizeForMatch(seg.Text)
		if segNorm == "" {
			continue
		}
		if strings.Contains(segNorm, normQuote) || strings.Contains(normQuote, segNorm) {
			if attr.Speaker == "" {
				attr.Speaker = seg.Speaker
			}
			attr.SourceTimestampMs = seg.StartMs
			return attr
		}
	}
	return attr
}

// normalizeForMatch lower-cases and collapses whitespace for the
// substring admissibility test.
func normalizeForMatch(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
