package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		t.Setenv("TEST_AV_KEY", "av-secret")
		t.Setenv("TEST_FH_KEY", "fh-secret")
		configContent := `
server:
  listen: ":9090"
  timeout: 45s

providers:
  user_agent: test-agent/2.0
  alphavantage:
    api_key: ${TEST_AV_KEY}
    base_url: http://localhost:1234
    timeout: 10s
    rate_limit: 5
    sort: LATEST
    limit: 50
  finnhub:
    api_key: ${TEST_FH_KEY}
    category: crypto
  newsdata:
    api_key: ${TEST_ND_KEY_NOT_SET}
    country: gb
    language: fr

refresh:
  auto_refresh: false
  sentiment_interval: 2m
  rate_limited_interval: 10m
  general_interval: 3m
  regional_interval: 4m
  min_interval: 30s
`
		configPath := filepath.Join(t.TempDir(), "test-config.yml")
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))

		cfg, err := Load(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, ":9090", cfg.Server.Listen)
		assert.Equal(t, 45*time.Second, cfg.Server.Timeout)

		av := cfg.Providers.AlphaVantage
		assert.Equal(t, "av-secret", av.APIKey)
		assert.Equal(t, "http://localhost:1234", av.BaseURL)
		assert.Equal(t, 10*time.Second, av.Timeout)
		assert.Equal(t, 5, av.RateLimit)
		assert.Equal(t, "LATEST", av.Sort)
		assert.Equal(t, 50, av.Limit)
		assert.Equal(t, "test-agent/2.0", cfg.Providers.UserAgent)

		assert.Equal(t, "fh-secret", cfg.Providers.Finnhub.APIKey)
		assert.Equal(t, "crypto", cfg.Providers.Finnhub.Category)
		assert.Equal(t, 25*time.Second, cfg.Providers.Finnhub.Timeout, "default timeout")

		nd := cfg.Providers.NewsData
		assert.Empty(t, nd.APIKey, "unset variable expands to empty, not an error")
		assert.Equal(t, "gb", nd.Country)
		assert.Equal(t, "technology", nd.Category)
		assert.Equal(t, "fr", nd.Language)

		assert.False(t, cfg.Refresh.AutoRefreshEnabled())
		assert.Equal(t, 2*time.Minute, cfg.Refresh.SentimentInterval)
		assert.Equal(t, 10*time.Minute, cfg.Refresh.RateLimitedInterval)
		assert.Equal(t, 3*time.Minute, cfg.Refresh.GeneralInterval)
		assert.Equal(t, 4*time.Minute, cfg.Refresh.RegionalInterval)
		assert.Equal(t, 30*time.Second, cfg.Refresh.MinInterval)
	})

	t.Run("defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "test-config.yml")
		require.NoError(t, os.WriteFile(configPath, []byte("server:\n  listen: \":8081\"\n"), 0o600))

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, ":8081", cfg.Server.Listen)
		assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
		assert.Equal(t, "market-news-stream/1.0", cfg.Providers.UserAgent)
		assert.Equal(t, 25*time.Second, cfg.Providers.AlphaVantage.Timeout)
		assert.Equal(t, 25*time.Second, cfg.Providers.NewsData.Timeout)
		assert.Equal(t, "general", cfg.Providers.Finnhub.Category)
		assert.Equal(t, "us", cfg.Providers.NewsData.Country)
		assert.Equal(t, "en", cfg.Providers.NewsData.Language)
		assert.True(t, cfg.Refresh.AutoRefreshEnabled())
		assert.Equal(t, 60*time.Second, cfg.Refresh.SentimentInterval)
		assert.Equal(t, 5*time.Minute, cfg.Refresh.RateLimitedInterval)
		assert.Equal(t, 5*time.Minute, cfg.Refresh.GeneralInterval)
		assert.Equal(t, 5*time.Minute, cfg.Refresh.RegionalInterval)
		assert.Equal(t, 10*time.Second, cfg.Refresh.MinInterval)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/nonexistent/config.yml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yml")
		require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0o600))
		_, err := Load(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{"server timeout too short", "server:\n  timeout: 500ms\n", "server timeout must be at least 1 second"},
		{"provider timeout too long", "providers:\n  finnhub:\n    timeout: 5m\n", "providers.finnhub.timeout must be between 1s and 2m"},
		{"negative rate limit", "providers:\n  newsdata:\n    rate_limit: -1\n", "providers.newsdata.rate_limit must be non-negative"},
		{"bad sort", "providers:\n  alphavantage:\n    sort: RANDOM\n", "providers.alphavantage.sort"},
		{"limit too big", "providers:\n  alphavantage:\n    limit: 5000\n", "providers.alphavantage.limit must be between 0 and 1000"},
		{"bad finnhub category", "providers:\n  finnhub:\n    category: sports\n", "providers.finnhub.category"},
		{"interval too short", "refresh:\n  general_interval: 100ms\n", "refresh.general_interval must be at least 1 second"},
		{"negative min interval", "refresh:\n  min_interval: -1s\n", "refresh.min_interval must be non-negative"},
		{"rate limited shorter than sentiment", "refresh:\n  sentiment_interval: 10m\n  rate_limited_interval: 5m\n", "rate_limited_interval must not be shorter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("ALPHA_VANTAGE_API_KEY", "av")
	t.Setenv("FINNHUB_API_KEY", "fh")
	t.Setenv("NEWSDATA_API_KEY", "")

	cfg := Default()
	assert.Equal(t, "av", cfg.Providers.AlphaVantage.APIKey)
	assert.Equal(t, "fh", cfg.Providers.Finnhub.APIKey)
	assert.Empty(t, cfg.Providers.NewsData.APIKey)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	require.NoError(t, validate(cfg))

	listen, timeout := cfg.GetServerConfig()
	assert.Equal(t, ":8080", listen)
	assert.Equal(t, 30*time.Second, timeout)
}
