package model

import "time"

// Participant is one attendee on a call.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Title string `json:"title,omitempty"`
}

// Segment is one attributed slice of a transcript. Speaker is empty when
// the provider did not attribute the line; StartMs/EndMs are nil when the
// provider did not timestamp it.
type Segment struct {
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
	StartMs *int64 `json:"start_ms,omitempty"`
	EndMs   *int64 `json:"end_ms,omitempty"`
}

// CanonicalCall is the provider-agnostic representation of one recorded
// conversation. Adapters construct it once per fetched call; after that it
// is treated as immutable except for the dedupe merge step, which builds a
// new record rather than mutating in place.
type CanonicalCall struct {
	Provider        string         `json:"provider"`
	ProviderCallID  string         `json:"provider_call_id"`
	AccountID       string         `json:"account_id,omitempty"`
	AccountName     string         `json:"account_name,omitempty"`
	Title           string         `json:"title"`
	OccurredAt      time.Time      `json:"occurred_at"`
	DurationSeconds int            `json:"duration_seconds,omitempty"` // 0 = unknown
	Participants    []Participant  `json:"participants,omitempty"`
	TranscriptText  string         `json:"transcript_text"`
	Segments        []Segment      `json:"segments,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Key returns the globally unique call identifier "provider:callID".
func (c CanonicalCall) Key() string {
	return c.Provider + ":" + c.ProviderCallID
}

// DedupSource records the identity of an absorbed duplicate under the
// kept call's metadata, so provenance survives the collapse.
type DedupSource struct {
	Provider        string    `json:"provider"`
	ProviderCallID  string    `json:"provider_call_id"`
	Title           string    `json:"title"`
	OccurredAt      time.Time `json:"occurred_at"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
}

// DuplicateReason identifies which rule collapsed a pair of calls.
type DuplicateReason string

const (
	DupSameProviderCallID   DuplicateReason = "same_provider_call_id"
	DupSameRecordingURL     DuplicateReason = "same_recording_url"
	DupSameTranscriptHash   DuplicateReason = "same_transcript_hash"
	DupMatchingTimeAndTitle DuplicateReason = "matching_time_and_title"
	DupTranscriptSimilarity DuplicateReason = "high_transcript_similarity"
)

// DuplicateResolution is one entry in the append-only dedupe audit trail.
type DuplicateResolution struct {
	KeptCallID      string          `json:"kept_call_id"`
	KeptProvider    string          `json:"kept_provider"`
	DroppedCallID   string          `json:"dropped_call_id"`
	DroppedProvider string          `json:"dropped_provider"`
	Reason          DuplicateReason `json:"reason"`
	Score           float64         `json:"score"`
}
