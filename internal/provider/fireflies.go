package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/internal/namekey"
)

const firefliesDefaultBaseURL = "https://api.fireflies.ai/graphql"

// FirefliesConfig configures the Fireflies adapter.
type FirefliesConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// Fireflies adapts the Fireflies GraphQL API.
type Fireflies struct {
	cfg     FirefliesConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewFireflies creates a Fireflies adapter.
func NewFireflies(cfg FirefliesConfig) (*Fireflies, error) {
	if cfg.APIKey == "" {
		return nil, eris.Wrap(model.ErrMissingCreds, "fireflies")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = firefliesDefaultBaseURL
	}
	return &Fireflies{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(2, 2),
	}, nil
}

func (f *Fireflies) Name() string { return "fireflies" }

const firefliesTranscriptsQuery = `query Transcripts($fromDate: DateTime, $limit: Int, $skip: Int) {
  transcripts(fromDate: $fromDate, limit: $limit, skip: $skip) {
    id
    title
    date
    duration
    transcript_url
    host_email
    participants
    sentences {
      text
      speaker_name
      start_time
      end_time
    }
  }
}`

// firefliesPageSize is the API's maximum transcripts per query.
const firefliesPageSize = 50

type firefliesSentence struct {
	Text        string  `json:"text"`
	SpeakerName string  `json:"speaker_name"`
	StartTime   float64 `json:"start_time"` // seconds
	EndTime     float64 `json:"end_time"`
}

type firefliesTranscript struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Date          int64               `json:"date"`     // epoch ms
	Duration      float64             `json:"duration"` // minutes
	TranscriptURL string              `json:"transcript_url"`
	HostEmail     string              `json:"host_email"`
	Participants  []string            `json:"participants"` // emails
	Sentences     []firefliesSentence `json:"sentences"`
}

type firefliesResponse struct {
	Data struct {
		Transcripts []firefliesTranscript `json:"transcripts"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (f *Fireflies) query(ctx context.Context, since time.Time, skip int) ([]firefliesTranscript, error) {
	var out firefliesResponse
	err := httpJSON(ctx, f.client, f.limiter, "fireflies", func(ctx context.Context) (*http.Request, error) {
		body, err := json.Marshal(map[string]any{
			"query": firefliesTranscriptsQuery,
			"variables": map[string]any{
				"fromDate": since.Format(time.RFC3339),
				"limit":    firefliesPageSize,
				"skip":     skip,
			},
		})
		if err != nil {
			return nil, eris.Wrap(err, "fireflies: marshal query")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.BaseURL, bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "fireflies: build request")
		}
		req.Header.Set("Authorization", "Bearer "+f.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Errors) > 0 {
		return nil, eris.New("fireflies: graphql error: " + out.Errors[0].Message)
	}
	return out.Data.Transcripts, nil
}

func (f *Fireflies) listTranscripts(ctx context.Context, since time.Time) ([]firefliesTranscript, error) {
	var all []firefliesTranscript
	for skip := 0; ; skip += firefliesPageSize {
		page, err := f.query(ctx, since, skip)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < firefliesPageSize {
			return all, nil
		}
	}
}

// accountNameForTranscript infers the account from the first external
// participant whose email domain is not free-mail and differs from the
// host's domain. Fireflies has no CRM account field, so email-domain
// inference is the only name source.
func accountNameForTranscript(t firefliesTranscript) string {
	hostDomain := emailDomain(t.HostEmail)
	for _, p := range t.Participants {
		if hostDomain != "" && emailDomain(p) == hostDomain {
			continue
		}
		if name := namekey.FromEmail(p); name != "" {
			return name
		}
	}
	return ""
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// DiscoverAccounts lists transcripts in the window and counts them per
// inferred account name.
func (f *Fireflies) DiscoverAccounts(ctx context.Context, filter Filter) ([]model.DiscoveredAccount, error) {
	transcripts, err := f.listTranscripts(ctx, sinceOrDefault(filter))
	if err != nil {
		return nil, err
	}
	return countAccounts("fireflies", func(yield func(string)) {
		for _, t := range transcripts {
			yield(accountNameForTranscript(t))
		}
	}), nil
}

// FetchCalls maps transcripts (optionally restricted to one account) to
// canonical form.
func (f *Fireflies) FetchCalls(ctx context.Context, filter Filter) ([]model.CanonicalCall, error) {
	transcripts, err := f.listTranscripts(ctx, sinceOrDefault(filter))
	if err != nil {
		return nil, err
	}

	wantKey := namekey.Normalize(filter.AccountName)
	out := make([]model.CanonicalCall, 0, len(transcripts))
	for _, t := range transcripts {
		accountName := accountNameForTranscript(t)
		if filter.AccountName != "" && namekey.Normalize(accountName) != wantKey {
			continue
		}

		segs := make([]model.Segment, 0, len(t.Sentences))
		for _, s := range t.Sentences {
			start := int64(s.StartTime * 1000)
			end := int64(s.EndTime * 1000)
			segs = append(segs, model.Segment{
				Speaker: s.SpeakerName,
				Text:    s.Text,
				StartMs: &start,
				EndMs:   &end,
			})
		}

		call := model.CanonicalCall{
			Provider:        "fireflies",
			ProviderCallID:  t.ID,
			AccountName:     accountName,
			Title:           t.Title,
			OccurredAt:      time.UnixMilli(t.Date).UTC(),
			DurationSeconds: int(t.Duration * 60),
			Participants:    participantsFromEmails(t.Participants),
			TranscriptText:  joinSegments(segs),
			Segments:        segs,
		}
		if t.TranscriptURL != "" {
			call.Metadata = map[string]any{"recordingUrl": t.TranscriptURL}
		}
		out = append(out, call)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	zap.L().Debug("fireflies calls fetched", zap.Int("count", len(out)))
	return out, nil
}

func participantsFromEmails(emails []string) []model.Participant {
	out := make([]model.Participant, len(emails))
	for i, e := range emails {
		out[i] = model.Participant{Email: e}
	}
	return out
}
