package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callbrief-cli/internal/model"
)

var baseTime = time.Date(2026, 3, 12, 15, 0, 0, 0, time.UTC)

func call(provider, id string, opts ...func(*model.CanonicalCall)) model.CanonicalCall {
	c := model.CanonicalCall{
		Provider:       provider,
		ProviderCallID: id,
		Title:          "Quarterly sync with Acme",
		OccurredAt:     baseTime,
		TranscriptText: "We discussed the renewal and the support backlog.",
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func withTranscript(text string) func(*model.CanonicalCall) {
	return func(c *model.CanonicalCall) { c.TranscriptText = text }
}

func withTitle(title string) func(*model.CanonicalCall) {
	return func(c *model.CanonicalCall) { c.Title = title }
}

func withTime(ts time.Time) func(*model.CanonicalCall) {
	return func(c *model.CanonicalCall) { c.OccurredAt = ts }
}

func withRecordingURL(url string) func(*model.CanonicalCall) {
	return func(c *model.CanonicalCall) {
		c.Metadata = map[string]any{"recordingUrl": url}
	}
}

func withSegments(segs ...model.Segment) func(*model.CanonicalCall) {
	return func(c *model.CanonicalCall) { c.Segments = segs }
}

func TestDedupeSameTranscriptHash(t *testing.T) {
	a := call("gong", "1", withTranscript("We saved $200k"))
	b := call("fireflies", "2", withTranscript("We saved $200k"))

	res := Dedupe([]model.CanonicalCall{a, b})
	require.Len(t, res.Calls, 1)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, model.DupSameTranscriptHash, res.Duplicates[0].Reason)
}

func TestDedupeRecordingURLTrailingSlash(t *testing.T) {
	a := call("gong", "1", withRecordingURL("https://x/c/abc"), withTranscript("alpha"))
	b := call("fireflies", "2", withRecordingURL("https://x/c/abc/"), withTranscript("beta"))

	res := Dedupe([]model.CanonicalCall{a, b})
	require.Len(t, res.Calls, 1)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, model.DupSameRecordingURL, res.Duplicates[0].Reason)
}

func TestDedupeTimeAndTitle(t *testing.T) {
	a := call("gong", "1",
		withTitle("Acme renewal discussion"),
		withTranscript("long transcript recorded by gong with plenty of words"))
	b := call("fireflies", "2",
		withTitle("Acme renewal discussion"),
		withTime(baseTime.Add(5*time.Minute)),
		withTranscript("a different shorter rendering of the meeting"))

	res := Dedupe([]model.CanonicalCall{a, b})
	require.Len(t, res.Calls, 1)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, model.DupMatchingTimeAndTitle, res.Duplicates[0].Reason)
}

func TestDedupeTimeAndTitleOutsideWindow(t *testing.T) {
	a := call("gong", "1", withTranscript("alpha words entirely"))
	b := call("fireflies", "2",
		withTime(baseTime.Add(20*time.Minute)),
		withTranscript("beta words wholly distinct"))

	res := Dedupe([]model.CanonicalCall{a, b})
	assert.Len(t, res.Calls, 2)
	assert.Empty(t, res.Duplicates)
}

func TestDedupeConservation(t *testing.T) {
	calls := []model.CanonicalCall{
		call("gong", "1", withTranscript("same text both sides")),
		call("fireflies", "2", withTranscript("same text both sides")),
		call("gong", "3", withTranscript("unrelated follow up conversation"), withTime(baseTime.Add(48*time.Hour))),
	}
	res := Dedupe(calls)
	assert.Equal(t, len(calls), len(res.Calls)+len(res.Duplicates))
}

func TestDedupeIdempotent(t *testing.T) {
	calls := []model.CanonicalCall{
		call("gong", "1", withTranscript("same text both sides")),
		call("fireflies", "2", withTranscript("same text both sides")),
		call("gong", "3", withTranscript("unrelated follow up conversation"), withTime(baseTime.Add(48*time.Hour))),
	}
	first := Dedupe(calls)
	second := Dedupe(first.Calls)
	assert.Equal(t, len(first.Calls), len(second.Calls))
	assert.Empty(t, second.Duplicates)
}

func TestDedupePrefersRicherTranscript(t *testing.T) {
	ms := func(v int64) *int64 { return &v }
	rich := call("fireflies", "2",
		withTranscript("We saved $200k"),
		withSegments(
			model.Segment{Speaker: "Jane", Text: "We saved $200k", StartMs: ms(1000)},
			model.Segment{Speaker: "Bob", Text: "Great outcome", StartMs: ms(5000)},
		))
	flat := call("gong", "1", withTranscript("We saved $200k"))

	res := Dedupe([]model.CanonicalCall{flat, rich})
	require.Len(t, res.Calls, 1)
	kept := res.Calls[0]
	assert.Equal(t, "fireflies", kept.Provider)

	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, "fireflies", res.Duplicates[0].KeptProvider)
	assert.Equal(t, "gong", res.Duplicates[0].DroppedProvider)

	sources, ok := kept.Metadata["dedupSources"].([]model.DedupSource)
	require.True(t, ok)
	require.Len(t, sources, 1)
	assert.Equal(t, "gong", sources[0].Provider)
	assert.Equal(t, "1", sources[0].ProviderCallID)
}

func TestDedupeDoesNotMutateInput(t *testing.T) {
	a := call("gong", "1", withTranscript("We saved $200k"))
	b := call("fireflies", "2", withTranscript("We saved $200k"))
	in := []model.CanonicalCall{a, b}

	_ = Dedupe(in)
	assert.Nil(t, a.Metadata)
	assert.Nil(t, b.Metadata)
}

func TestDedupeDeterministicTieBreak(t *testing.T) {
	// Identical quality: kept record decided by provider:callID order.
	a := call("gong", "b-call", withTranscript("We saved $200k"))
	b := call("fireflies", "a-call", withTranscript("We saved $200k"))

	res := Dedupe([]model.CanonicalCall{a, b})
	require.Len(t, res.Calls, 1)
	assert.Equal(t, "fireflies", res.Calls[0].Provider)
}

func TestDedupeEmptyTranscriptsNeverHashMatch(t *testing.T) {
	a := call("gong", "1", withTranscript(""), withTitle("standup alpha"))
	b := call("fireflies", "2", withTranscript(""), withTitle("different subject entirely"))

	res := Dedupe([]model.CanonicalCall{a, b})
	assert.Len(t, res.Calls, 2)
}
