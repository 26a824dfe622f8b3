package brief

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/callbrief-cli/internal/dedupe"
	"github.com/sells-group/callbrief-cli/internal/evidence"
	"github.com/sells-group/callbrief-cli/internal/match"
	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/internal/namekey"
	"github.com/sells-group/callbrief-cli/internal/provider"
)

// Pipeline wires discovery, matching, fetch, dedupe, evidence
// extraction, and narrative generation for exactly two providers.
type Pipeline struct {
	providerA provider.Provider
	providerB provider.Provider
	matcher   *match.Matcher
	extractor *evidence.Extractor
	generator *Generator
}

// NewPipeline assembles the pipeline. Extractor and generator may be
// nil for call-listing use (accounts/calls commands).
func NewPipeline(a, b provider.Provider, matcher *match.Matcher, extractor *evidence.Extractor, generator *Generator) *Pipeline {
	return &Pipeline{
		providerA: a,
		providerB: b,
		matcher:   matcher,
		extractor: extractor,
		generator: generator,
	}
}

// DiscoverSharedAccounts fans discovery out to both providers (join-all:
// the first failure aborts the pair) and reconciles the results.
func (p *Pipeline) DiscoverSharedAccounts(ctx context.Context, f provider.Filter) ([]model.SharedAccountMatch, error) {
	var accountsA, accountsB []model.DiscoveredAccount

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accountsA, err = p.providerA.DiscoverAccounts(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		accountsB, err = p.providerB.DiscoverAccounts(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("accounts discovered",
		zap.String("provider_a", p.providerA.Name()),
		zap.Int("count_a", len(accountsA)),
		zap.String("provider_b", p.providerB.Name()),
		zap.Int("count_b", len(accountsB)),
	)
	return p.matcher.Match(ctx, accountsA, accountsB)
}

// CallSet is the consolidated call set for one resolved account.
type CallSet struct {
	Account    model.SharedAccountMatch
	Calls      []model.CanonicalCall
	Duplicates []model.DuplicateResolution
}

// FetchCallSet resolves the requested account name against the shared
// list, fans the call fetch out to both providers, stamps the resolved
// account identity onto every call, and dedupes.
func (p *Pipeline) FetchCallSet(ctx context.Context, accountName string, f provider.Filter) (*CallSet, error) {
	shared, err := p.DiscoverSharedAccounts(ctx, f)
	if err != nil {
		return nil, err
	}
	account, err := match.ResolveAccount(accountName, shared)
	if err != nil {
		return nil, err
	}

	accountID := namekey.DeriveID(account.DisplayName)
	var callsA, callsB []model.CanonicalCall

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fa := f
		fa.AccountName = account.NameBySource[p.providerA.Name()]
		callsA, err = p.providerA.FetchCalls(gctx, fa)
		return err
	})
	g.Go(func() error {
		var err error
		fb := f
		fb.AccountName = account.NameBySource[p.providerB.Name()]
		callsB, err = p.providerB.FetchCalls(gctx, fb)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	union := make([]model.CanonicalCall, 0, len(callsA)+len(callsB))
	for _, c := range append(callsA, callsB...) {
		c.AccountID = accountID
		c.AccountName = account.DisplayName
		union = append(union, c)
	}
	if len(union) == 0 {
		return nil, eris.Wrapf(model.ErrNoCalls, "account %s", account.DisplayName)
	}

	res := dedupe.Dedupe(union)
	if len(res.Calls) == 0 {
		return nil, eris.Wrapf(model.ErrAllDuplicates, "account %s", account.DisplayName)
	}
	zap.L().Info("call set consolidated",
		zap.String("account", account.DisplayName),
		zap.Int("fetched", len(union)),
		zap.Int("kept", len(res.Calls)),
		zap.Int("duplicates", len(res.Duplicates)),
	)

	return &CallSet{Account: *account, Calls: res.Calls, Duplicates: res.Duplicates}, nil
}

// Run executes the full pipeline for one account and returns the
// rendered brief. Evidence extraction is sequential, one call at a
// time, to bound external request volume and keep per-call error
// attribution unambiguous.
func (p *Pipeline) Run(ctx context.Context, accountName string, f provider.Filter) (*model.BriefResult, error) {
	set, err := p.FetchCallSet(ctx, accountName, f)
	if err != nil {
		return nil, err
	}

	validator := evidence.NewValidator(set.Calls)
	var quotes []model.QuoteEvidence
	var claims []model.QuantClaim

	for _, call := range set.Calls {
		rawQuotes, rawClaims, usage, err := p.extractor.Extract(ctx, call)
		if err != nil {
			return nil, err
		}
		usage.LogCost(p.extractor.Model(), "evidence_extraction")

		admittedQ, admittedC := 0, 0
		for _, q := range rawQuotes {
			if admitted, ok := validator.AdmitQuote(q); ok {
				quotes = append(quotes, admitted)
				admittedQ++
			}
		}
		for _, c := range rawClaims {
			if admitted, ok := validator.AdmitClaim(c); ok {
				claims = append(claims, admitted)
				admittedC++
			}
		}
		zap.L().Debug("evidence validated",
			zap.String("call", call.Key()),
			zap.Int("quotes_admitted", admittedQ),
			zap.Int("quotes_rejected", len(rawQuotes)-admittedQ),
			zap.Int("claims_admitted", admittedC),
			zap.Int("claims_rejected", len(rawClaims)-admittedC),
		)
	}

	return p.generator.Generate(ctx, Input{
		Account:    set.Account,
		Calls:      set.Calls,
		Quotes:     quotes,
		Claims:     claims,
		Duplicates: set.Duplicates,
	})
}
