package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Providers ProvidersConfig `yaml:"providers" json:"providers" jsonschema:"description=Upstream news providers"`

	Refresh RefreshConfig `yaml:"refresh" json:"refresh" jsonschema:"description=Refresh cadence and single-flight settings"`
}

// ProvidersConfig groups the three upstream providers
type ProvidersConfig struct {
	UserAgent    string             `yaml:"user_agent" json:"user_agent" jsonschema:"default=market-news-stream/1.0,description=User agent for upstream requests"`
	AlphaVantage AlphaVantageConfig `yaml:"alphavantage" json:"alphavantage" jsonschema:"description=Alpha Vantage news sentiment, feeds the sentiment feed"`
	Finnhub      FinnhubConfig      `yaml:"finnhub" json:"finnhub" jsonschema:"description=Finnhub market news, feeds the general feed"`
	NewsData     NewsDataConfig     `yaml:"newsdata" json:"newsdata" jsonschema:"description=NewsData.io latest news, feeds the regional feed"`
}

// ProviderConfig holds settings common to all providers
type ProviderConfig struct {
	APIKey    string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	BaseURL   string        `yaml:"base_url" json:"base_url" jsonschema:"description=API root URL override"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=25s,description=Hard deadline of one upstream request"`
	RateLimit int           `yaml:"rate_limit" json:"rate_limit" jsonschema:"default=0,minimum=0,description=Client-side budget in requests per minute (0 disables)"`
}

// AlphaVantageConfig holds Alpha Vantage settings
type AlphaVantageConfig struct {
	ProviderConfig `yaml:",inline"`
	Sort           string `yaml:"sort" json:"sort" jsonschema:"description=Result ordering: LATEST or EARLIEST or RELEVANCE (provider default if empty)"`
	Limit          int    `yaml:"limit" json:"limit" jsonschema:"minimum=0,maximum=1000,description=Maximum number of articles (0 for provider default)"`
}

// FinnhubConfig holds Finnhub settings
type FinnhubConfig struct {
	ProviderConfig `yaml:",inline"`
	Category       string `yaml:"category" json:"category" jsonschema:"default=general,enum=general,enum=forex,enum=crypto,enum=merger,description=News category"`
}

// NewsDataConfig holds NewsData.io settings
type NewsDataConfig struct {
	ProviderConfig `yaml:",inline"`
	Country        string `yaml:"country" json:"country" jsonschema:"default=us,description=Country code"`
	Category       string `yaml:"category" json:"category" jsonschema:"default=technology,description=News category"`
	Language       string `yaml:"language" json:"language" jsonschema:"default=en,description=Language code"`
}

// RefreshConfig holds per-feed cadence settings
type RefreshConfig struct {
	AutoRefresh         *bool         `yaml:"auto_refresh" json:"auto_refresh" jsonschema:"default=true,description=Refresh feeds periodically"`
	SentimentInterval   time.Duration `yaml:"sentiment_interval" json:"sentiment_interval" jsonschema:"default=60s,description=Sentiment feed refresh interval"`
	RateLimitedInterval time.Duration `yaml:"rate_limited_interval" json:"rate_limited_interval" jsonschema:"default=5m,description=Sentiment feed interval after a rate-limit response"`
	GeneralInterval     time.Duration `yaml:"general_interval" json:"general_interval" jsonschema:"default=5m,description=General feed refresh interval"`
	RegionalInterval    time.Duration `yaml:"regional_interval" json:"regional_interval" jsonschema:"default=5m,description=Regional feed refresh interval"`
	MinInterval         time.Duration `yaml:"min_interval" json:"min_interval" jsonschema:"default=10s,description=Timer ticks within this window after a fetch are skipped"`
}

// AutoRefreshEnabled returns auto-refresh setting, on unless explicitly disabled
func (r RefreshConfig) AutoRefreshEnabled() bool {
	return r.AutoRefresh == nil || *r.AutoRefresh
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse makes configuration from YAML data, ${VAR} references are expanded from environment
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		lgr.Printf("[WARN] schema validation failed: %v", err)
	}

	return &cfg, nil
}

// Default returns configuration with all defaults, credentials taken from the environment
func Default() *Config {
	cfg := Config{}
	cfg.Providers.AlphaVantage.APIKey = os.Getenv("ALPHA_VANTAGE_API_KEY")
	cfg.Providers.Finnhub.APIKey = os.Getenv("FINNHUB_API_KEY")
	cfg.Providers.NewsData.APIKey = os.Getenv("NEWSDATA_API_KEY")
	setDefaults(&cfg)
	return &cfg
}

func setDefaults(cfg *Config) {
	// server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// providers
	if cfg.Providers.UserAgent == "" {
		cfg.Providers.UserAgent = "market-news-stream/1.0"
	}
	for _, p := range []*ProviderConfig{
		&cfg.Providers.AlphaVantage.ProviderConfig,
		&cfg.Providers.Finnhub.ProviderConfig,
		&cfg.Providers.NewsData.ProviderConfig,
	} {
		if p.Timeout == 0 {
			p.Timeout = 25 * time.Second
		}
	}
	if cfg.Providers.Finnhub.Category == "" {
		cfg.Providers.Finnhub.Category = "general"
	}
	if cfg.Providers.NewsData.Country == "" {
		cfg.Providers.NewsData.Country = "us"
	}
	if cfg.Providers.NewsData.Category == "" {
		cfg.Providers.NewsData.Category = "technology"
	}
	if cfg.Providers.NewsData.Language == "" {
		cfg.Providers.NewsData.Language = "en"
	}

	// refresh
	if cfg.Refresh.SentimentInterval == 0 {
		cfg.Refresh.SentimentInterval = 60 * time.Second
	}
	if cfg.Refresh.RateLimitedInterval == 0 {
		cfg.Refresh.RateLimitedInterval = 5 * time.Minute
	}
	if cfg.Refresh.GeneralInterval == 0 {
		cfg.Refresh.GeneralInterval = 5 * time.Minute
	}
	if cfg.Refresh.RegionalInterval == 0 {
		cfg.Refresh.RegionalInterval = 5 * time.Minute
	}
	if cfg.Refresh.MinInterval == 0 {
		cfg.Refresh.MinInterval = 10 * time.Second
	}
}

// validate checks configuration for correctness, missing api keys are reported on first fetch instead
func validate(cfg *Config) error {
	// validate server config
	if cfg.Server.Timeout < time.Second {
		return errors.New("server timeout must be at least 1 second")
	}

	// validate providers
	providers := map[string]ProviderConfig{
		"alphavantage": cfg.Providers.AlphaVantage.ProviderConfig,
		"finnhub":      cfg.Providers.Finnhub.ProviderConfig,
		"newsdata":     cfg.Providers.NewsData.ProviderConfig,
	}
	for name, p := range providers {
		if p.Timeout < time.Second || p.Timeout > 2*time.Minute {
			return fmt.Errorf("providers.%s.timeout must be between 1s and 2m", name)
		}
		if p.RateLimit < 0 {
			return fmt.Errorf("providers.%s.rate_limit must be non-negative", name)
		}
	}
	switch cfg.Providers.AlphaVantage.Sort {
	case "", "LATEST", "EARLIEST", "RELEVANCE":
	default:
		return fmt.Errorf("providers.alphavantage.sort must be LATEST, EARLIEST or RELEVANCE, got %q", cfg.Providers.AlphaVantage.Sort)
	}
	if cfg.Providers.AlphaVantage.Limit < 0 || cfg.Providers.AlphaVantage.Limit > 1000 {
		return errors.New("providers.alphavantage.limit must be between 0 and 1000")
	}
	switch cfg.Providers.Finnhub.Category {
	case "general", "forex", "crypto", "merger":
	default:
		return fmt.Errorf("providers.finnhub.category %q is not supported", cfg.Providers.Finnhub.Category)
	}

	// validate refresh config
	intervals := map[string]time.Duration{
		"sentiment_interval":    cfg.Refresh.SentimentInterval,
		"rate_limited_interval": cfg.Refresh.RateLimitedInterval,
		"general_interval":      cfg.Refresh.GeneralInterval,
		"regional_interval":     cfg.Refresh.RegionalInterval,
	}
	for name, v := range intervals {
		if v < time.Second {
			return fmt.Errorf("refresh.%s must be at least 1 second", name)
		}
	}
	if cfg.Refresh.MinInterval < 0 {
		return errors.New("refresh.min_interval must be non-negative")
	}
	if cfg.Refresh.RateLimitedInterval < cfg.Refresh.SentimentInterval {
		return errors.New("refresh.rate_limited_interval must not be shorter than refresh.sentiment_interval")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}
