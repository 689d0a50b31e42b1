// Package provider implements the upstream news adapters. Each adapter makes exactly one bounded
// http request per Fetch call and reports the outcome as a domain.FetchResult, never as a panic
// or a bare error. Retries are the caller's business.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/time/rate"

	"github.com/mihailescuandrei/market-news-stream/pkg/classify"
	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
	"github.com/mihailescuandrei/market-news-stream/pkg/metrics"
)

// DefaultTimeout is the hard deadline of one upstream call
const DefaultTimeout = 25 * time.Second

const (
	defaultUserAgent = "market-news-stream/1.0"
	maxBodySize      = 10 * 1024 * 1024
)

// Adapter fetches one provider's feed
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, params domain.FetchParams) domain.FetchResult
}

// Options are common to all adapters
type Options struct {
	APIKey    string
	BaseURL   string        // provider endpoint root, the public one if empty
	Timeout   time.Duration // used when FetchParams.Timeout is not set, DefaultTimeout if zero
	RateLimit int           // client-side budget in requests per minute, 0 disables
	UserAgent string
	Client    *http.Client // optional, for tests and custom transports
}

// errBudgetExhausted is returned when the request budget can't be satisfied before the deadline
var errBudgetExhausted = errors.New("request budget exhausted")

// caller is the shared bounded http GET used by all adapters
type caller struct {
	name      string
	apiKey    string
	baseURL   string
	timeout   time.Duration
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

type response struct {
	status int
	body   []byte
}

func newCaller(name, defaultBaseURL string, opts Options) caller {
	c := caller{
		name:      name,
		apiKey:    strings.TrimSpace(opts.APIKey),
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		client:    opts.Client,
		limiter:   newLimiter(opts.RateLimit),
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.client == nil {
		c.client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return c
}

// newLimiter makes a token bucket for requestsPerMinute with a burst of 10% of it, nil if disabled
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
}

// deadline returns the effective timeout for a call
func (c caller) deadline(params domain.FetchParams) time.Duration {
	if params.Timeout > 0 {
		return params.Timeout
	}
	return c.timeout
}

// get performs one GET within ctx. Non-2xx responses are returned with their body, not as errors.
func (c caller) get(ctx context.Context, path string, query url.Values) (response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return response{}, fmt.Errorf("wait for request budget: %w", ctx.Err())
			}
			return response{}, fmt.Errorf("%w: %v", errBudgetExhausted, err)
		}
	}

	endpoint := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	lgr.Printf("[DEBUG] %s request %s", c.name, c.redact(endpoint))
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordUpstream(c.name, 0, time.Since(start))
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = c.redact(urlErr.URL) // error text ends up in snapshots
		}
		return response{}, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	metrics.RecordUpstream(c.name, resp.StatusCode, time.Since(start))
	if err != nil {
		return response{status: resp.StatusCode}, fmt.Errorf("read body: %w", err)
	}
	return response{status: resp.StatusCode, body: body}, nil
}

// redact hides the credential in logged urls
func (c caller) redact(s string) string {
	if c.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, url.QueryEscape(c.apiKey), "****")
}

// missingKey reports the unconfigured credential without touching the network
func (c caller) missingKey() domain.FetchResult {
	return c.fail(classify.Input{MissingKey: true})
}

// transportFailure classifies an error returned by get
func (c caller) transportFailure(err error) domain.FetchResult {
	if errors.Is(err, errBudgetExhausted) {
		return c.fail(classify.Input{RateLimited: true, Sentinel: fmt.Sprintf("%s %v", c.name, err)})
	}
	return c.fail(classify.Input{Err: err})
}

func (c caller) fail(in classify.Input) domain.FetchResult {
	in.Provider = c.name
	f := classify.Classify(in)
	lgr.Printf("[WARN] %s fetch failed, %s: %s", c.name, f.Kind, f.Message)
	return f
}

func (c caller) success(articles []domain.Article) domain.FetchResult {
	lgr.Printf("[DEBUG] %s fetched %d articles", c.name, len(articles))
	return domain.Success{Articles: articles, FetchedAt: time.Now()}
}

func is2xx(status int) bool {
	return status >= 200 && status <= 299
}
