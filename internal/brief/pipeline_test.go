package brief

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callbrief-cli/internal/evidence"
	"github.com/sells-group/callbrief-cli/internal/match"
	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/internal/namekey"
	"github.com/sells-group/callbrief-cli/internal/provider"
	"github.com/sells-group/callbrief-cli/pkg/anthropic"
)

var callTime = time.Date(2026, 3, 12, 15, 0, 0, 0, time.UTC)

// stubProvider serves canned accounts and calls.
type stubProvider struct {
	name     string
	accounts []model.DiscoveredAccount
	calls    []model.CanonicalCall
	err      error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) DiscoverAccounts(context.Context, provider.Filter) ([]model.DiscoveredAccount, error) {
	return s.accounts, s.err
}

func (s *stubProvider) FetchCalls(context.Context, provider.Filter) ([]model.CanonicalCall, error) {
	return s.calls, s.err
}

// stubLLM answers every CreateMessage with the same text.
type stubLLM struct {
	text     string
	requests []anthropic.MessageRequest
}

func (s *stubLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.requests = append(s.requests, req)
	return &anthropic.MessageResponse{Text: s.text, Model: "stub-model"}, nil
}

func discovered(source, name string, count int) model.DiscoveredAccount {
	return model.DiscoveredAccount{
		Name:          name,
		NormalizedKey: namekey.Normalize(name),
		Source:        source,
		CallCount:     count,
	}
}

func testProviders() (*stubProvider, *stubProvider) {
	gongCall := model.CanonicalCall{
		Provider:       "gong",
		ProviderCallID: "g1",
		Title:          "Acme QBR",
		OccurredAt:     callTime,
		TranscriptText: "Jane: We saved two hundred thousand dollars last quarter.",
		Segments: []model.Segment{
			{Speaker: "Jane", Text: "We saved two hundred thousand dollars last quarter."},
		},
	}
	firefliesCall := model.CanonicalCall{
		Provider:       "fireflies",
		ProviderCallID: "f1",
		Title:          "Acme QBR",
		OccurredAt:     callTime.Add(2 * time.Minute),
		TranscriptText: "Jane: We saved two hundred thousand dollars last quarter.",
	}
	a := &stubProvider{
		name:     "gong",
		accounts: []model.DiscoveredAccount{discovered("gong", "Acme Inc", 1)},
		calls:    []model.CanonicalCall{gongCall},
	}
	b := &stubProvider{
		name:     "fireflies",
		accounts: []model.DiscoveredAccount{discovered("fireflies", "Acme", 1)},
		calls:    []model.CanonicalCall{firefliesCall},
	}
	return a, b
}

func TestDiscoverSharedAccounts(t *testing.T) {
	a, b := testProviders()
	p := NewPipeline(a, b, match.New(), nil, nil)

	shared, err := p.DiscoverSharedAccounts(context.Background(), provider.Filter{})
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, "Acme Inc", shared[0].DisplayName)
	assert.Equal(t, model.MatchExact, shared[0].Reason)
}

func TestFetchCallSetDedupes(t *testing.T) {
	a, b := testProviders()
	p := NewPipeline(a, b, match.New(), nil, nil)

	set, err := p.FetchCallSet(context.Background(), "Acme", provider.Filter{})
	require.NoError(t, err)

	// Identical transcript, two providers: collapses to one call.
	require.Len(t, set.Calls, 1)
	require.Len(t, set.Duplicates, 1)
	assert.Equal(t, model.DupSameTranscriptHash, set.Duplicates[0].Reason)

	// Resolved account identity stamped onto the kept call.
	assert.Equal(t, "Acme Inc", set.Calls[0].AccountName)
	assert.Equal(t, namekey.DeriveID("Acme Inc"), set.Calls[0].AccountID)
}

func TestFetchCallSetNoCalls(t *testing.T) {
	a, b := testProviders()
	a.calls = nil
	b.calls = nil
	p := NewPipeline(a, b, match.New(), nil, nil)

	_, err := p.FetchCallSet(context.Background(), "Acme", provider.Filter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNoCalls)
}

func TestFetchCallSetAmbiguousName(t *testing.T) {
	a, b := testProviders()
	p := NewPipeline(a, b, match.New(), nil, nil)

	_, err := p.FetchCallSet(context.Background(), "completely different org", provider.Filter{})
	require.Error(t, err)
	var ambErr *model.AmbiguousAccountError
	assert.ErrorAs(t, err, &ambErr)
}

func TestRunProducesGroundedBrief(t *testing.T) {
	a, b := testProviders()

	llm := &stubLLM{text: `{"quotes": [{"text": "We saved two hundred thousand dollars last quarter.", "speaker": "Jane", "confidence": 0.9}], "claims": []}`}
	extractor := evidence.NewExtractor(llm, "claude-haiku-4-5-20251001")

	genLLM := &stubLLM{text: "# Acme Inc brief\n\nGrounded narrative."}
	generator := NewGenerator(genLLM, "claude-sonnet-4-5-20250929")

	p := NewPipeline(a, b, match.New(), extractor, generator)
	result, err := p.Run(context.Background(), "Acme", provider.Filter{})
	require.NoError(t, err)

	assert.Equal(t, "# Acme Inc brief\n\nGrounded narrative.", result.Markdown)
	assert.Equal(t, 1, result.CallCount)
	require.Len(t, result.Quotes, 1)
	assert.Equal(t, "Jane", result.Quotes[0].Speaker)

	// The generator prompt contains the admitted quote.
	require.Len(t, genLLM.requests, 1)
	assert.Contains(t, genLLM.requests[0].Messages[0].Content,
		"We saved two hundred thousand dollars last quarter.")
}

func TestRunRejectsFabricatedEvidence(t *testing.T) {
	a, b := testProviders()

	llm := &stubLLM{text: `{"quotes": [{"text": "This quote was never spoken on any call.", "confidence": 0.9}], "claims": []}`}
	extractor := evidence.NewExtractor(llm, "claude-haiku-4-5-20251001")
	genLLM := &stubLLM{text: "brief"}
	generator := NewGenerator(genLLM, "claude-sonnet-4-5-20250929")

	p := NewPipeline(a, b, match.New(), extractor, generator)
	result, err := p.Run(context.Background(), "Acme", provider.Filter{})
	require.NoError(t, err)

	assert.Empty(t, result.Quotes)
	require.Len(t, genLLM.requests, 1)
	assert.NotContains(t, genLLM.requests[0].Messages[0].Content,
		"This quote was never spoken")
}

func TestMergedTranscript(t *testing.T) {
	a, _ := testProviders()
	text := MergedTranscript(a.calls)
	assert.Contains(t, text, "Acme QBR")
	assert.Contains(t, text, "We saved two hundred thousand dollars")
}
