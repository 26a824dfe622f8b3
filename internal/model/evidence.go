package model

import "time"

// Attribution is the (speaker, source call, timestamp) tuple proving
// where a fact originated. Every evidentiary record carries one.
type Attribution struct {
	SourceCallID      string    `json:"source_call_id"`
	SourceCallTitle   string    `json:"source_call_title"`
	SourceCallDate    time.Time `json:"source_call_date"`
	SourceTimestampMs *int64    `json:"source_timestamp_ms,omitempty"`
	Speaker           string    `json:"speaker,omitempty"`
}

// QuoteEvidence is a verbatim snippet lifted from a transcript. Admitted
// instances are guaranteed to be substring-traceable (after whitespace
// and case normalization) to their source call's transcript.
type QuoteEvidence struct {
	Text        string  `json:"text"`
	Topic       string  `json:"topic,omitempty"`
	Confidence  float64 `json:"confidence"`
	Attribution `json:"attribution"`
}

// QuantClaim is a quantitative statement backed by a verbatim quote.
type QuantClaim struct {
	Claim       string  `json:"claim"`
	Value       string  `json:"value"`
	Quote       string  `json:"quote"`
	Confidence  float64 `json:"confidence"`
	Attribution `json:"attribution"`
}
