// Package provider adapts external call-recording services to the
// canonical call and discovered-account shapes the reconciliation
// pipeline consumes. Adapters own pagination, auth, rate limiting, and
// retries; the core sees only clean records.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/internal/resilience"
)

// Filter narrows discovery and fetch requests.
type Filter struct {
	// AccountName, when set, restricts FetchCalls to calls whose
	// resolved account matches it under normalized-key equality.
	AccountName string

	// Since bounds the window of calls considered. Zero means the
	// provider default (90 days).
	Since time.Time

	// Limit caps the number of calls returned. Zero means no cap.
	Limit int
}

// Provider exposes one call-recording service.
type Provider interface {
	Name() string
	DiscoverAccounts(ctx context.Context, f Filter) ([]model.DiscoveredAccount, error)
	FetchCalls(ctx context.Context, f Filter) ([]model.CanonicalCall, error)
}

// defaultWindow is used when Filter.Since is zero.
const defaultWindow = 90 * 24 * time.Hour

func sinceOrDefault(f Filter) time.Time {
	if f.Since.IsZero() {
		return time.Now().UTC().Add(-defaultWindow)
	}
	return f.Since
}

// httpJSON performs one rate-limited, retried HTTP request and decodes
// the JSON response into out. Transient statuses are retried; anything
// else fails fast with the provider name and status so shape and auth
// problems are immediately attributable.
func httpJSON(ctx context.Context, client *http.Client, limiter *rate.Limiter, provider string, build func(ctx context.Context) (*http.Request, error), out any) error {
	_, err := resilience.Do(ctx, resilience.DefaultRetryConfig(), provider+" request",
		func(ctx context.Context) (struct{}, error) {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return struct{}{}, err
				}
			}
			req, err := build(ctx)
			if err != nil {
				return struct{}{}, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return struct{}{}, eris.Wrapf(err, "%s: request %s", provider, req.URL.Path)
			}
			defer resp.Body.Close() //nolint:errcheck

			body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
			if err != nil {
				return struct{}{}, eris.Wrapf(err, "%s: read response", provider)
			}
			if resp.StatusCode != http.StatusOK {
				err := eris.New(fmt.Sprintf("%s: unexpected status %d from %s", provider, resp.StatusCode, req.URL.Path))
				if resilience.IsTransientHTTPStatus(resp.StatusCode) {
					return struct{}{}, resilience.NewTransientError(err, resp.StatusCode)
				}
				return struct{}{}, err
			}
			if err := json.Unmarshal(body, out); err != nil {
				return struct{}{}, eris.Wrapf(err, "%s: malformed response shape (status %d)", provider, resp.StatusCode)
			}
			return struct{}{}, nil
		})
	return err
}
