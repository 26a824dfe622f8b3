package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callbrief-cli/internal/brief"
	"github.com/sells-group/callbrief-cli/internal/match"
	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/internal/namekey"
	"github.com/sells-group/callbrief-cli/internal/provider"
	"github.com/sells-group/callbrief-cli/internal/store"
)

type fakeProvider struct {
	name     string
	accounts []model.DiscoveredAccount
	calls    []model.CanonicalCall
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) DiscoverAccounts(context.Context, provider.Filter) ([]model.DiscoveredAccount, error) {
	return f.accounts, nil
}

func (f *fakeProvider) FetchCalls(context.Context, provider.Filter) ([]model.CanonicalCall, error) {
	return f.calls, nil
}

func testEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	call := model.CanonicalCall{
		Provider:       "gong",
		ProviderCallID: "g1",
		Title:          "Acme QBR",
		OccurredAt:     time.Date(2026, 3, 12, 15, 0, 0, 0, time.UTC),
		TranscriptText: "Jane: Hello from the quarterly review.",
	}
	a := &fakeProvider{
		name: "gong",
		accounts: []model.DiscoveredAccount{{
			Name: "Acme Inc", NormalizedKey: namekey.Normalize("Acme Inc"), Source: "gong", CallCount: 1,
		}},
		calls: []model.CanonicalCall{call},
	}
	b := &fakeProvider{
		name: "fireflies",
		accounts: []model.DiscoveredAccount{{
			Name: "Acme", NormalizedKey: namekey.Normalize("Acme"), Source: "fireflies", CallCount: 1,
		}},
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: brief.NewPipeline(a, b, match.New(), nil, nil),
	}
}

func TestServeHealth(t *testing.T) {
	srv := httptest.NewServer(apiRouter(testEnv(t)))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeAccounts(t *testing.T) {
	srv := httptest.NewServer(apiRouter(testEnv(t)))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/accounts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var shared []model.SharedAccountMatch
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&shared))
	require.Len(t, shared, 1)
	assert.Equal(t, "Acme Inc", shared[0].DisplayName)
}

func TestServeAccountCalls(t *testing.T) {
	srv := httptest.NewServer(apiRouter(testEnv(t)))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/accounts/Acme/calls")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var set brief.CallSet
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&set))
	require.Len(t, set.Calls, 1)
	assert.Equal(t, "Acme QBR", set.Calls[0].Title)
}

func TestServeAccountCallsAmbiguous(t *testing.T) {
	srv := httptest.NewServer(apiRouter(testEnv(t)))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/accounts/unrelated-name/calls")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServeBriefValidation(t *testing.T) {
	srv := httptest.NewServer(apiRouter(testEnv(t)))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/briefs", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeRunNotFound(t *testing.T) {
	srv := httptest.NewServer(apiRouter(testEnv(t)))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/runs/no-such-run")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
