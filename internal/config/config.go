package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Gong       GongConfig       `yaml:"gong" mapstructure:"gong"`
	Fireflies  FirefliesConfig  `yaml:"fireflies" mapstructure:"fireflies"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// GongConfig holds Gong API credentials.
type GongConfig struct {
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	Secret    string `yaml:"secret" mapstructure:"secret"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
}

// FirefliesConfig holds Fireflies API credentials.
type FirefliesConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	ExtractModel   string `yaml:"extract_model" mapstructure:"extract_model"`
	BriefModel     string `yaml:"brief_model" mapstructure:"brief_model"`
	AssistedModel  string `yaml:"assisted_model" mapstructure:"assisted_model"`
	AssistedEnable bool   `yaml:"assisted_enable" mapstructure:"assisted_enable"`
}

// MatchConfig tunes account matching acceptance thresholds.
type MatchConfig struct {
	HeuristicThreshold float64 `yaml:"heuristic_threshold" mapstructure:"heuristic_threshold"`
	AssistedThreshold  float64 `yaml:"assisted_threshold" mapstructure:"assisted_threshold"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// NotionConfig holds Notion API credentials and the briefs database ID.
type NotionConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BriefDB string `yaml:"brief_db" mapstructure:"brief_db"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CALLBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "callbrief.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("gong.base_url", "https://api.gong.io")
	v.SetDefault("fireflies.base_url", "https://api.fireflies.ai/graphql")
	v.SetDefault("anthropic.extract_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.brief_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.assisted_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.assisted_enable", true)
	v.SetDefault("match.heuristic_threshold", 0.82)
	v.SetDefault("match.assisted_threshold", 0.75)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for the given mode.
// Modes: "brief" (full pipeline), "list" (discovery/fetch only),
// "serve" (HTTP API).
func (c *Config) Validate(mode string) error {
	var problems []string

	requireProviders := func() {
		if c.Gong.AccessKey == "" || c.Gong.Secret == "" {
			problems = append(problems, "gong.access_key and gong.secret are required")
		}
		if c.Fireflies.APIKey == "" {
			problems = append(problems, "fireflies.api_key is required")
		}
	}

	switch mode {
	case "brief":
		requireProviders()
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "list":
		requireProviders()
	case "serve":
		requireProviders()
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Match.HeuristicThreshold < 0 || c.Match.HeuristicThreshold > 1 {
		problems = append(problems, "match.heuristic_threshold must be between 0 and 1")
	}
	if c.Match.AssistedThreshold < 0 || c.Match.AssistedThreshold > 1 {
		problems = append(problems, "match.assisted_threshold must be between 0 and 1")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
