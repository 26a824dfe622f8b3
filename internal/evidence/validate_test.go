package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callbrief-cli/internal/model"
)

var callDate = time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

func testCall() model.CanonicalCall {
	ms := func(v int64) *int64 { return &v }
	return model.CanonicalCall{
		Provider:       "gong",
		ProviderCallID: "call-1",
		Title:          "Acme QBR",
		OccurredAt:     callDate,
		TranscriptText: "Jane: We saved two hundred thousand dollars last quarter. Bob: Support tickets dropped 40% after rollout.",
		Segments: []model.Segment{
			{Speaker: "Jane", Text: "We saved two hundred thousand dollars last quarter.", StartMs: ms(12000)},
			{Speaker: "Bob", Text: "Support tickets dropped 40% after rollout.", StartMs: ms(95000)},
		},
	}
}

func quote(text string) model.QuoteEvidence {
	return model.QuoteEvidence{
		Text:       text,
		Confidence: 0.9,
		Attribution: model.Attribution{
			SourceCallID: "call-1",
		},
	}
}

func TestAdmitQuoteVerbatim(t *testing.T) {
	v := NewValidator([]model.CanonicalCall{testCall()})

	got, ok := v.AdmitQuote(quote("We saved two hundred thousand dollars last quarter."))
	require.True(t, ok)
	assert.Equal(t, "Acme QBR", got.SourceCallTitle)
	assert.Equal(t, callDate, got.SourceCallDate)
	// Timestamp and speaker backfilled from the matching segment.
	require.NotNil(t, got.SourceTimestampMs)
	assert.Equal(t, int64(12000), *got.SourceTimestampMs)
	assert.Equal(t, "Jane", got.Speaker)
}

func TestAdmitQuoteCaseAndWhitespaceInsensitive(t *testing.T) {
	v := NewValidator([]model.CanonicalCall{testCall()})

	_, ok := v.AdmitQuote(quote("we saved   TWO hundred thousand dollars last quarter."))
	assert.True(t, ok)
}

func TestRejectQuoteNotInTranscript(t *testing.T) {
	v := NewValidator([]model.CanonicalCall{testCall()})

	_, ok := v.AdmitQuote(quote("This sentence was never actually spoken on the call."))
	assert.False(t, ok)
}

func TestRejectQuoteTooShort(t *testing.T) {
	v := NewValidator([]model.CanonicalCall{testCall()})

	_, ok := v.AdmitQuote(quote("We saved"))
	assert.False(t, ok)
}

func TestRejectQuoteUnknownCall(t *testing.T) {
	v := NewValidator([]model.CanonicalCall{testCall()})

	q := quote("We saved two hundred thousand dollars last quarter.")
	q.SourceCallID = "missing"
	_, ok := v.AdmitQuote(q)
	assert.False(t, ok)
}

func TestAdmitQuoteDeduplicates(t *testing.T) {
	v := NewValidator([]model.CanonicalCall{testCall()})

	_, ok := v.AdmitQuote(quote("We saved two hundred thousand dollars last quarter."))
	require.True(t, ok)
	// Same normalized text again: suppressed.
	_, ok = v.AdmitQuote(quote("WE SAVED TWO HUNDRED THOUSAND DOLLARS LAST QUARTER."))
	assert.False(t, ok)
}

func claim(text, value, q string) model.QuantClaim {
	return model.QuantClaim{
		Claim:      text,
		Value:      value,
		Quote:      q,
		Confidence: 0.8,
		Attribution: model.Attribution{
			SourceCallID: "call-1",
		},
	}
}

func TestAdmitClaimWithNumericSignal(t *testing.T) {
	v := NewValidator([]model.CanonicalCall{testCall()})

	got, ok := v.AdmitClaim(claim(
		"Support ticket volume dropped 40% post-rollout",
		"40%",
		"Support tickets dropped 40% after rollout.",
	))
	require.True(t, ok)
	assert.Equal(t, "Bob", got.Speaker)
	require.NotNil(t, got.SourceTimestampMs)
	assert.Equal(t, int64(95000), *got.SourceTimestampMs)
}

func TestRejectClaimWithoutNumericSignal(t *testing.T) {
	v := NewValidator([]model.CanonicalCall{model.CanonicalCall{
		ProviderCallID: "call-1",
		TranscriptText: "The team felt really good about the direction we are heading.",
	}})

	_, ok := v.AdmitClaim(claim(
		"The team felt good about direction",
		"positive",
		"The team felt really good about the direction we are heading.",
	))
	assert.False(t, ok)
}

func TestRejectClaimUnverifiableQuote(t *testing.T) {
	v := NewValidator([]model.CanonicalCall{testCall()})

	_, ok := v.AdmitClaim(claim(
		"Revenue grew 50%",
		"50%",
		"Revenue grew fifty percent year over year somehow.",
	))
	assert.False(t, ok)
}

func TestNumericSignalPatterns(t *testing.T) {
	positives := []string{
		"$200k", "we spent $ 1,200", "€45", "12.5%", "40 %",
		"300 tickets", "15 hours", "2,000 users", "18 months",
	}
	for _, s := range positives {
		assert.True(t, numericSignal.MatchString(s), s)
	}
	negatives := []string{"great quarter", "positive feedback", "many users"}
	for _, s := range negatives {
		assert.False(t, numericSignal.MatchString(s), s)
	}
}
