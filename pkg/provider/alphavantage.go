package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"

	"github.com/go-pkgz/lgr"

	"github.com/mihailescuandrei/market-news-stream/pkg/classify"
	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
	"github.com/mihailescuandrei/market-news-stream/pkg/normalize"
)

// AlphaVantageURL is the public api root
const AlphaVantageURL = "https://www.alphavantage.co"

// AlphaVantageParams configures the sentiment adapter
type AlphaVantageParams struct {
	Options
	Sort  string // LATEST, EARLIEST or RELEVANCE, provider default if empty
	Limit int    // max entries, provider default if zero
}

// AlphaVantage fetches the NEWS_SENTIMENT feed, optionally filtered by ticker
type AlphaVantage struct {
	caller
	sort  string
	limit int
}

// NewAlphaVantage makes the sentiment adapter
func NewAlphaVantage(params AlphaVantageParams) *AlphaVantage {
	return &AlphaVantage{
		caller: newCaller("alphavantage", AlphaVantageURL, params.Options),
		sort:   params.Sort,
		limit:  params.Limit,
	}
}

// Name returns provider name
func (a *AlphaVantage) Name() string { return a.name }

// Fetch makes one NEWS_SENTIMENT request
func (a *AlphaVantage) Fetch(ctx context.Context, params domain.FetchParams) domain.FetchResult {
	if a.apiKey == "" {
		return a.missingKey()
	}

	ctx, cancel := context.WithTimeout(ctx, a.deadline(params))
	defer cancel()

	query := url.Values{}
	query.Set("function", "NEWS_SENTIMENT")
	if params.Ticker != "" {
		query.Set("tickers", params.Ticker)
	}
	if a.sort != "" {
		query.Set("sort", a.sort)
	}
	if a.limit > 0 {
		query.Set("limit", strconv.Itoa(a.limit))
	}
	query.Set("apikey", a.apiKey)

	resp, err := a.get(ctx, "/query", query)
	if err != nil {
		return a.transportFailure(err)
	}

	var payload normalize.AlphaVantagePayload
	decodeErr := json.Unmarshal(resp.body, &payload)
	sentinel := payload.Sentinel()

	if !is2xx(resp.status) {
		return a.fail(classify.Input{StatusCode: resp.status, Sentinel: sentinel})
	}
	if decodeErr != nil {
		return a.fail(classify.Input{StatusCode: resp.status, Malformed: decodeErr})
	}

	if sentinel != "" {
		if payload.Len() > 0 {
			// notice next to real data, the data wins
			lgr.Printf("[WARN] alphavantage notice with %d articles, treating as success: %s", payload.Len(), sentinel)
			return a.success(normalize.Normalize(payload))
		}
		// Note is the documented throttling notice, whatever its wording
		return a.fail(classify.Input{StatusCode: resp.status, Sentinel: sentinel, RateLimited: payload.Note != ""})
	}

	if payload.Feed == nil {
		return a.fail(classify.Input{StatusCode: resp.status, Malformed: errors.New("feed field missing")})
	}
	return a.success(normalize.Normalize(payload))
}
