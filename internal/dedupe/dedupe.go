// Package dedupe collapses calls recorded by both providers into a
// single canonical record per real-world event, keeping an audit trail
// of every absorbed duplicate.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/callbrief-cli/internal/model"
)

const (
	maxTimeDeltaTitle      = 7 * time.Minute
	maxDurationDeltaTitle  = 180 // seconds
	minTitleSimilarity     = 0.72
	maxTimeDeltaTranscript = 45 * time.Minute
	maxDurationDeltaTx     = 420 // seconds
	minTranscriptSim       = 0.86
)

// dedupSourcesKey is the metadata key under which absorbed duplicates
// are recorded on the kept call.
const dedupSourcesKey = "dedupSources"

// recordingURLKey is the metadata key adapters use for a call's
// recording URL, when the provider supplies one.
const recordingURLKey = "recordingUrl"

// Result carries the surviving calls and the audit trail. The
// conservation invariant holds: len(Calls) + len(Duplicates) equals the
// input length.
type Result struct {
	Calls      []model.CanonicalCall
	Duplicates []model.DuplicateResolution
}

// Dedupe identifies calls that are the same real event recorded by both
// providers and collapses each pair, preferring the structurally richer
// record. Deterministic for a given input set: calls are processed in
// occurredAt order (ties broken by provider:callID), and each incoming
// call is compared against every already-kept call.
func Dedupe(calls []model.CanonicalCall) Result {
	ordered := make([]model.CanonicalCall, len(calls))
	copy(ordered, calls)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].OccurredAt.Equal(ordered[j].OccurredAt) {
			return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
		}
		return ordered[i].Key() < ordered[j].Key()
	})

	kept := make([]model.CanonicalCall, 0, len(ordered))
	var duplicates []model.DuplicateResolution

	for _, call := range ordered {
		bestIdx := -1
		var bestReason model.DuplicateReason
		bestScore := 0.0
		for i, k := range kept {
			reason, score, ok := duplicateOf(k, call)
			if ok && score > bestScore {
				bestIdx, bestReason, bestScore = i, reason, score
			}
		}

		if bestIdx < 0 {
			kept = append(kept, call)
			continue
		}

		winner, loser := preferCall(kept[bestIdx], call)
		kept[bestIdx] = absorb(winner, loser)
		duplicates = append(duplicates, model.DuplicateResolution{
			KeptCallID:      winner.ProviderCallID,
			KeptProvider:    winner.Provider,
			DroppedCallID:   loser.ProviderCallID,
			DroppedProvider: loser.Provider,
			Reason:          bestReason,
			Score:           bestScore,
		})
		zap.L().Debug("collapsed duplicate call",
			zap.String("kept", winner.Key()),
			zap.String("dropped", loser.Key()),
			zap.String("reason", string(bestReason)),
			zap.Float64("score", bestScore),
		)
	}

	return Result{Calls: kept, Duplicates: duplicates}
}

// duplicateOf applies the pairwise rules in confidence order; the first
// matching rule decides.
func duplicateOf(a, b model.CanonicalCall) (model.DuplicateReason, float64, bool) {
	if a.Provider == b.Provider && a.ProviderCallID == b.ProviderCallID {
		return model.DupSameProviderCallID, 1.0, true
	}

	if urlA, urlB := recordingURL(a), recordingURL(b); urlA != "" && urlA == urlB {
		return model.DupSameRecordingURL, 0.99, true
	}

	hashA, hashB := transcriptHash(a.TranscriptText), transcriptHash(b.TranscriptText)
	if hashA != "" && hashA == hashB {
		return model.DupSameTranscriptHash, 0.97, true
	}

	timeDelta := a.OccurredAt.Sub(b.OccurredAt).Abs()
	durationOK := func(maxDelta int) bool {
		// Unknown durations cannot disqualify a pair.
		if a.DurationSeconds == 0 || b.DurationSeconds == 0 {
			return true
		}
		delta := a.DurationSeconds - b.DurationSeconds
		if delta < 0 {
			delta = -delta
		}
		return delta <= maxDelta
	}

	if timeDelta <= maxTimeDeltaTitle && durationOK(maxDurationDeltaTitle) &&
		tokenOverlap(normalizeText(a.Title), normalizeText(b.Title)) >= minTitleSimilarity {
		return model.DupMatchingTimeAndTitle, 0.94, true
	}

	if timeDelta <= maxTimeDeltaTranscript && durationOK(maxDurationDeltaTx) &&
		tokenOverlap(normalizeText(a.TranscriptText), normalizeText(b.TranscriptText)) >= minTranscriptSim {
		return model.DupTranscriptSimilarity, 0.90, true
	}

	return "", 0, false
}

// preferCall picks which of a duplicate pair to keep by a quality score
// rewarding granular, attributed, timestamped transcripts over raw
// length. Equal scores fall back to provider:callID order so the
// outcome is reproducible.
func preferCall(a, b model.CanonicalCall) (winner, loser model.CanonicalCall) {
	qa, qb := qualityScore(a), qualityScore(b)
	if qa > qb {
		return a, b
	}
	if qb > qa {
		return b, a
	}
	if a.Key() <= b.Key() {
		return a, b
	}
	return b, a
}

func qualityScore(c model.CanonicalCall) float64 {
	withSpeaker, withTimestamp := 0, 0
	for _, seg := range c.Segments {
		if seg.Speaker != "" {
			withSpeaker++
		}
		if seg.StartMs != nil {
			withTimestamp++
		}
	}
	lengthBonus := float64(len(c.TranscriptText)) / 400
	if lengthBonus > 50 {
		lengthBonus = 50
	}
	return 0.6*float64(len(c.Segments)) + 1.2*float64(withSpeaker) + 1.2*float64(withTimestamp) + lengthBonus
}

// absorb returns a copy of winner whose metadata records the loser under
// dedupSources. The winner is not mutated in place: duplicate merges
// construct a new record to avoid aliasing the input slice's maps.
func absorb(winner, loser model.CanonicalCall) model.CanonicalCall {
	merged := winner
	meta := make(map[string]any, len(winner.Metadata)+1)
	for k, v := range winner.Metadata {
		meta[k] = v
	}

	var sources []model.DedupSource
	if prev, ok := meta[dedupSourcesKey].([]model.DedupSource); ok {
		sources = append(sources, prev...)
	}
	sources = append(sources, model.DedupSource{
		Provider:        loser.Provider,
		ProviderCallID:  loser.ProviderCallID,
		Title:           loser.Title,
		OccurredAt:      loser.OccurredAt,
		DurationSeconds: loser.DurationSeconds,
	})
	// Carry forward anything the loser had already absorbed.
	if prev, ok := loser.Metadata[dedupSourcesKey].([]model.DedupSource); ok {
		sources = append(sources, prev...)
	}
	meta[dedupSourcesKey] = sources
	merged.Metadata = meta
	return merged
}

func recordingURL(c model.CanonicalCall) string {
	raw, _ := c.Metadata[recordingURLKey].(string)
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), "/")
}

// transcriptHash hashes the normalized transcript text; empty
// transcripts hash to "" so they never match each other.
func transcriptHash(text string) string {
	norm := normalizeText(text)
	if norm == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// normalizeText lower-cases, strips non-alphanumerics, and collapses
// whitespace, for hashing and overlap scoring.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// tokenOverlap computes |intersection| / max(|tokensA|, |tokensB|) over
// tokens of at least three characters.
func tokenOverlap(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	common := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			common++
		}
	}
	denom := len(ta)
	if len(tb) > denom {
		denom = len(tb)
	}
	return float64(common) / float64(denom)
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		if len(tok) >= 3 {
			out[tok] = struct{}{}
		}
	}
	return out
}
