package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callbrief-cli/internal/model"
)

func gongServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v2/calls", func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key", user)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"records": map[string]any{"cursor": ""},
			"calls": []map[string]any{
				{
					"id":          "g1",
					"title":       "Acme kickoff",
					"started":     "2026-03-12T15:00:00Z",
					"duration":    1800,
					"accountId":   "0015000000abcde",
					"accountName": "Acme Inc",
					"mediaUrl":    "https://gong.example/rec/g1",
					"parties": []map[string]any{
						{"speakerId": "s1", "name": "Jane Doe", "emailAddress": "jane@acme.com", "affiliation": "External"},
						{"speakerId": "s2", "name": "Rep One", "emailAddress": "rep@sells.group", "affiliation": "Internal"},
					},
				},
				{
					"id":       "g2",
					"title":    "Unknown org call",
					"started":  "2026-03-13T10:00:00Z",
					"duration": 900,
					"parties": []map[string]any{
						{"speakerId": "s1", "name": "Pat", "emailAddress": "pat@bluewidgets.io", "affiliation": "External"},
					},
				},
			},
		})
	})

	mux.HandleFunc("POST /v2/calls/transcript", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"callTranscripts": []map[string]any{
				{
					"callId": "g1",
					"transcript": []map[string]any{
						{
							"speakerId": "s1",
							"sentences": []map[string]any{
								{"start": 1000, "end": 4000, "text": "We saved two hundred thousand dollars."},
							},
						},
					},
				},
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGong(t *testing.T, baseURL string) *Gong {
	t.Helper()
	g, err := NewGong(GongConfig{AccessKey: "key", Secret: "secret", BaseURL: baseURL})
	require.NoError(t, err)
	return g
}

func TestGongRequiresCredentials(t *testing.T) {
	_, err := NewGong(GongConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMissingCreds)
}

func TestGongDiscoverAccounts(t *testing.T) {
	srv := gongServer(t)
	g := newTestGong(t, srv.URL)

	accounts, err := g.DiscoverAccounts(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	assert.Equal(t, "Acme Inc", accounts[0].Name)
	assert.Equal(t, "acme", accounts[0].NormalizedKey)
	assert.Equal(t, "gong", accounts[0].Source)
	assert.Equal(t, 1, accounts[0].CallCount)

	// Second call had no CRM account: inferred from the external
	// participant's email domain.
	assert.Equal(t, "Bluewidgets", accounts[1].Name)
}

func TestGongFetchCalls(t *testing.T) {
	srv := gongServer(t)
	g := newTestGong(t, srv.URL)

	calls, err := g.FetchCalls(context.Background(), Filter{AccountName: "Acme"})
	require.NoError(t, err)
	require.Len(t, calls, 1)

	c := calls[0]
	assert.Equal(t, "gong", c.Provider)
	assert.Equal(t, "g1", c.ProviderCallID)
	assert.Equal(t, "Acme Inc", c.AccountName)
	assert.Equal(t, 1800, c.DurationSeconds)
	assert.Equal(t, "https://gong.example/rec/g1", c.Metadata["recordingUrl"])

	require.Len(t, c.Segments, 1)
	assert.Equal(t, "Jane Doe", c.Segments[0].Speaker)
	require.NotNil(t, c.Segments[0].StartMs)
	assert.Equal(t, int64(1000), *c.Segments[0].StartMs)

	// Speaker-prefixed segments reconstruct the transcript text.
	assert.Equal(t, "Jane Doe: We saved two hundred thousand dollars.", c.TranscriptText)
}

func TestGongMalformedResponseFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>")) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	g := newTestGong(t, srv.URL)

	_, err := g.DiscoverAccounts(context.Background(), Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gong")
}

func TestGongAuthFailureNotRetried(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	g := newTestGong(t, srv.URL)

	_, err := g.DiscoverAccounts(context.Background(), Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1, hits)
}
