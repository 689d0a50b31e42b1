package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/mihailescuandrei/market-news-stream/pkg/aggregator"
	"github.com/mihailescuandrei/market-news-stream/pkg/config"
	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
	"github.com/mihailescuandrei/market-news-stream/pkg/metrics"
	"github.com/mihailescuandrei/market-news-stream/pkg/provider"
	"github.com/mihailescuandrei/market-news-stream/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" description:"path to config file, defaults used if empty"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`

	AlphaVantageKey string `long:"alphavantage-key" env:"ALPHA_VANTAGE_API_KEY" description:"alpha vantage api key, overrides config"`
	FinnhubKey      string `long:"finnhub-key" env:"FINNHUB_API_KEY" description:"finnhub api key, overrides config"`
	NewsDataKey     string `long:"newsdata-key" env:"NEWSDATA_API_KEY" description:"newsdata.io api key, overrides config"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	// optional .env with api keys, real environment wins
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "can't load .env: %v\n", err)
	}

	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug, opts.NoColor, opts.AlphaVantageKey, opts.FinnhubKey, opts.NewsDataKey)

	log.Printf("[INFO] starting market-news-stream version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts)
	cancel()

	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

// run loads configuration, starts all feeds and serves http until ctx is canceled
func run(ctx context.Context, opts Opts) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	metrics.Init()

	agg, err := aggregator.New(aggregator.Params{Feeds: makeFeeds(cfg)})
	if err != nil {
		return fmt.Errorf("failed to create aggregator: %w", err)
	}
	if err := agg.Start(ctx); err != nil {
		return fmt.Errorf("failed to start aggregator: %w", err)
	}
	defer agg.Stop()

	srv := server.New(cfg, agg, revision, opts.Debug)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// loadConfig reads config file if set, then applies cli overrides
func loadConfig(opts Opts) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}
	if opts.AlphaVantageKey != "" {
		cfg.Providers.AlphaVantage.APIKey = opts.AlphaVantageKey
	}
	if opts.FinnhubKey != "" {
		cfg.Providers.Finnhub.APIKey = opts.FinnhubKey
	}
	if opts.NewsDataKey != "" {
		cfg.Providers.NewsData.APIKey = opts.NewsDataKey
	}
	return cfg, nil
}

// makeFeeds wires one adapter per feed
func makeFeeds(cfg *config.Config) []aggregator.FeedConfig {
	p, r := cfg.Providers, cfg.Refresh
	options := func(pc config.ProviderConfig) provider.Options {
		return provider.Options{
			APIKey:    pc.APIKey,
			BaseURL:   pc.BaseURL,
			Timeout:   pc.Timeout,
			RateLimit: pc.RateLimit,
			UserAgent: p.UserAgent,
		}
	}

	return []aggregator.FeedConfig{
		{
			Feed: domain.FeedSentiment,
			Fetcher: provider.NewAlphaVantage(provider.AlphaVantageParams{
				Options: options(p.AlphaVantage.ProviderConfig),
				Sort:    p.AlphaVantage.Sort,
				Limit:   p.AlphaVantage.Limit,
			}),
			Interval:            r.SentimentInterval,
			RateLimitedInterval: r.RateLimitedInterval,
			MinInterval:         r.MinInterval,
			Timeout:             p.AlphaVantage.Timeout,
			AutoRefresh:         r.AutoRefreshEnabled(),
		},
		{
			Feed: domain.FeedGeneral,
			Fetcher: provider.NewFinnhub(provider.FinnhubParams{
				Options:  options(p.Finnhub.ProviderConfig),
				Category: p.Finnhub.Category,
			}),
			Interval:    r.GeneralInterval,
			MinInterval: r.MinInterval,
			Timeout:     p.Finnhub.Timeout,
			AutoRefresh: r.AutoRefreshEnabled(),
		},
		{
			Feed: domain.FeedRegional,
			Fetcher: provider.NewNewsData(provider.NewsDataParams{
				Options:  options(p.NewsData.ProviderConfig),
				Country:  p.NewsData.Country,
				Category: p.NewsData.Category,
				Language: p.NewsData.Language,
			}),
			Interval:    r.RegionalInterval,
			MinInterval: r.MinInterval,
			Timeout:     p.NewsData.Timeout,
			AutoRefresh: r.AutoRefreshEnabled(),
		},
	}
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	var secrets []string
	for _, s := range secs {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
