package main

import (
	"context"
	"os"

	sfinit "github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/callbrief-cli/internal/assist"
	"github.com/sells-group/callbrief-cli/internal/brief"
	"github.com/sells-group/callbrief-cli/internal/evidence"
	"github.com/sells-group/callbrief-cli/internal/match"
	"github.com/sells-group/callbrief-cli/internal/provider"
	"github.com/sells-group/callbrief-cli/internal/store"
	anthropicpkg "github.com/sells-group/callbrief-cli/pkg/anthropic"
	notionpkg "github.com/sells-group/callbrief-cli/pkg/notion"
	sfpkg "github.com/sells-group/callbrief-cli/pkg/salesforce"
)

// pipelineEnv holds the initialized providers, matcher, and pipeline
// needed by the accounts/calls/brief/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *brief.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "callbrief.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initProviders builds both call providers from config.
func initProviders() (*provider.Gong, *provider.Fireflies, error) {
	gong, err := provider.NewGong(provider.GongConfig{
		AccessKey: cfg.Gong.AccessKey,
		Secret:    cfg.Gong.Secret,
		BaseURL:   cfg.Gong.BaseURL,
	})
	if err != nil {
		return nil, nil, err
	}
	fireflies, err := provider.NewFireflies(provider.FirefliesConfig{
		APIKey:  cfg.Fireflies.APIKey,
		BaseURL: cfg.Fireflies.BaseURL,
	})
	if err != nil {
		return nil, nil, err
	}
	return gong, fireflies, nil
}

// initMatcher builds the account matcher, with the assisted pass wired
// in when an Anthropic key is configured and assisted matching is on.
func initMatcher() *match.Matcher {
	opts := []match.Option{
		match.WithThresholds(cfg.Match.HeuristicThreshold, cfg.Match.AssistedThreshold),
	}
	if cfg.Anthropic.AssistedEnable && cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		opts = append(opts, match.WithAssistedResolver(assist.NewResolver(client, cfg.Anthropic.AssistedModel)))
	} else {
		zap.L().Debug("assisted matching disabled")
	}
	return match.New(opts...)
}

// initPipeline sets up the store, providers, matcher, extractor, and
// generator. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	gong, fireflies, err := initProviders()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var extractor *evidence.Extractor
	var generator *brief.Generator
	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		extractor = evidence.NewExtractor(client, cfg.Anthropic.ExtractModel)
		generator = brief.NewGenerator(client, cfg.Anthropic.BriefModel)
	}

	p := brief.NewPipeline(gong, fireflies, initMatcher(), extractor, generator)

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}

// initNotion builds the Notion client for brief publishing.
func initNotion() (notionpkg.Client, error) {
	if cfg.Notion.Token == "" {
		return nil, eris.New("notion token is required (CALLBRIEF_NOTION_TOKEN)")
	}
	return notionpkg.NewClient(cfg.Notion.Token), nil
}

// initSalesforce builds the JWT-authenticated Salesforce client.
func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (CALLBRIEF_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := sfinit.Init(sfinit.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(5)), nil
}
