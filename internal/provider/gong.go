package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/internal/namekey"
)

const gongDefaultBaseURL = "https://api.gong.io"

// GongConfig configures the Gong adapter.
type GongConfig struct {
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	Secret    string `yaml:"secret" mapstructure:"secret"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
}

// Gong adapts the Gong REST API.
type Gong struct {
	cfg     GongConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewGong creates a Gong adapter. Gong allows 3 req/s per key.
func NewGong(cfg GongConfig) (*Gong, error) {
	if cfg.AccessKey == "" || cfg.Secret == "" {
		return nil, eris.Wrap(model.ErrMissingCreds, "gong")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = gongDefaultBaseURL
	}
	return &Gong{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(3, 3),
	}, nil
}

func (g *Gong) Name() string { return "gong" }

// gongCall is one entry from the call listing.
type gongCall struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Started     time.Time   `json:"started"`
	Duration    int         `json:"duration"` // seconds
	AccountID   string      `json:"accountId"`
	AccountName string      `json:"accountName"`
	MediaURL    string      `json:"mediaUrl"`
	Parties     []gongParty `json:"parties"`
}

type gongParty struct {
	SpeakerID    string `json:"speakerId"`
	Name         string `json:"name"`
	EmailAddress string `json:"emailAddress"`
	Title        string `json:"title"`
	Affiliation  string `json:"affiliation"` // "Internal" or "External"
}

type gongCallsPage struct {
	Records struct {
		Cursor string `json:"cursor"`
	} `json:"records"`
	Calls []gongCall `json:"calls"`
}

type gongTranscriptResponse struct {
	CallTranscripts []struct {
		CallID     string `json:"callId"`
		Transcript []struct {
			SpeakerID string `json:"speakerId"`
			Sentences []struct {
				Start int64  `json:"start"` // ms
				End   int64  `json:"end"`
				Text  string `json:"text"`
			} `json:"sentences"`
		} `json:"transcript"`
	} `json:"callTranscripts"`
}

func (g *Gong) listCalls(ctx context.Context, since time.Time) ([]gongCall, error) {
	var all []gongCall
	cursor := ""
	for {
		page := gongCallsPage{}
		err := httpJSON(ctx, g.client, g.limiter, "gong", func(ctx context.Context) (*http.Request, error) {
			q := url.Values{}
			q.Set("fromDateTime", since.Format(time.RFC3339))
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/v2/calls?"+q.Encode(), nil)
			if err != nil {
				return nil, eris.Wrap(err, "gong: build list request")
			}
			req.SetBasicAuth(g.cfg.AccessKey, g.cfg.Secret)
			return req, nil
		}, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Calls...)
		if page.Records.Cursor == "" {
			break
		}
		cursor = page.Records.Cursor
	}
	return all, nil
}

// accountNameFor resolves a call's account name: the CRM-linked account
// when Gong surfaces one, else inferred from an external participant's
// email domain.
func accountNameFor(c gongCall) string {
	if c.AccountName != "" {
		return c.AccountName
	}
	for _, p := range c.Parties {
		if strings.EqualFold(p.Affiliation, "internal") {
			continue
		}
		if name := namekey.FromEmail(p.EmailAddress); name != "" {
			return name
		}
	}
	return ""
}

// DiscoverAccounts lists calls in the window and counts them per
// normalized account name.
func (g *Gong) DiscoverAccounts(ctx context.Context, f Filter) ([]model.DiscoveredAccount, error) {
	calls, err := g.listCalls(ctx, sinceOrDefault(f))
	if err != nil {
		return nil, err
	}
	return countAccounts("gong", func(yield func(string)) {
		for _, c := range calls {
			yield(accountNameFor(c))
		}
	}), nil
}

// FetchCalls fetches calls (optionally restricted to one account) and
// their transcripts, mapped to canonical form.
func (g *Gong) FetchCalls(ctx context.Context, f Filter) ([]model.CanonicalCall, error) {
	listed, err := g.listCalls(ctx, sinceOrDefault(f))
	if err != nil {
		return nil, err
	}

	wantKey := namekey.Normalize(f.AccountName)
	var selected []gongCall
	for _, c := range listed {
		if f.AccountName != "" && namekey.Normalize(accountNameFor(c)) != wantKey {
			continue
		}
		selected = append(selected, c)
		if f.Limit > 0 && len(selected) >= f.Limit {
			break
		}
	}
	if len(selected) == 0 {
		return nil, nil
	}

	ids := make([]string, len(selected))
	for i, c := range selected {
		ids[i] = c.ID
	}

	var tr gongTranscriptResponse
	err = httpJSON(ctx, g.client, g.limiter, "gong", func(ctx context.Context) (*http.Request, error) {
		body, err := json.Marshal(map[string]any{
			"filter": map[string]any{"callIds": ids},
		})
		if err != nil {
			return nil, eris.Wrap(err, "gong: marshal transcript filter")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v2/calls/transcript", bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "gong: build transcript request")
		}
		req.SetBasicAuth(g.cfg.AccessKey, g.cfg.Secret)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &tr)
	if err != nil {
		return nil, err
	}

	byCallID := make(map[string][]model.Segment, len(tr.CallTranscripts))
	for _, ct := range tr.CallTranscripts {
		var segs []model.Segment
		speakerName := speakerIndex(selected, ct.CallID)
		for _, mono := range ct.Transcript {
			for _, s := range mono.Sentences {
				start, end := s.Start, s.End
				segs = append(segs, model.Segment{
					Speaker: speakerName[mono.SpeakerID],
					Text:    s.Text,
					StartMs: &start,
					EndMs:   &end,
				})
			}
		}
		byCallID[ct.CallID] = segs
	}

	out := make([]model.CanonicalCall, 0, len(selected))
	for _, c := range selected {
		segs := byCallID[c.ID]
		call := model.CanonicalCall{
			Provider:        "gong",
			ProviderCallID:  c.ID,
			AccountID:       c.AccountID,
			AccountName:     accountNameFor(c),
			Title:           c.Title,
			OccurredAt:      c.Started.UTC(),
			DurationSeconds: c.Duration,
			Participants:    toParticipants(c.Parties),
			TranscriptText:  joinSegments(segs),
			Segments:        segs,
		}
		if c.MediaURL != "" {
			call.Metadata = map[string]any{"recordingUrl": c.MediaURL}
		}
		out = append(out, call)
	}
	zap.L().Debug("gong calls fetched", zap.Int("count", len(out)))
	return out, nil
}

func speakerIndex(calls []gongCall, callID string) map[string]string {
	for _, c := range calls {
		if c.ID != callID {
			continue
		}
		idx := make(map[string]string, len(c.Parties))
		for _, p := range c.Parties {
			idx[p.SpeakerID] = p.Name
		}
		return idx
	}
	return nil
}

func toParticipants(parties []gongParty) []model.Participant {
	out := make([]model.Participant, len(parties))
	for i, p := range parties {
		out[i] = model.Participant{Name: p.Name, Email: p.EmailAddress, Title: p.Title}
	}
	return out
}

// joinSegments renders segments speaker-prefixed so the concatenation
// reconstructs the transcript text.
func joinSegments(segs []model.Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			b.WriteString("\n")
		}
		if s.Speaker != "" {
			b.WriteString(s.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// countAccounts tallies call volume per normalized account name for one
// source. Unattributable calls (no account, no inferable domain) are
// skipped.
func countAccounts(source string, each func(yield func(string))) []model.DiscoveredAccount {
	type entry struct {
		name  string
		count int
	}
	byKey := map[string]*entry{}
	var order []string
	each(func(name string) {
		if name == "" {
			return
		}
		key := namekey.Normalize(name)
		if key == "" {
			return
		}
		e, ok := byKey[key]
		if !ok {
			e = &entry{name: name}
			byKey[key] = e
			order = append(order, key)
		}
		e.count++
	})

	out := make([]model.DiscoveredAccount, 0, len(order))
	for _, key := range order {
		e := byKey[key]
		out = append(out, model.DiscoveredAccount{
			Name:          e.name,
			NormalizedKey: key,
			Source:        source,
			CallCount:     e.count,
		})
	}
	return out
}
