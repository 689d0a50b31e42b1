package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/mihailescuandrei/market-news-stream/pkg/classify"
	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
	"github.com/mihailescuandrei/market-news-stream/pkg/normalize"
)

// FinnhubURL is the public api root
const FinnhubURL = "https://finnhub.io"

// FinnhubParams configures the general news adapter
type FinnhubParams struct {
	Options
	Category string // general, forex, crypto or merger; general if empty
}

// Finnhub fetches the market news list
type Finnhub struct {
	caller
	category string
}

// finnhubError is the object returned instead of the news array on failures
type finnhubError struct {
	Error string `json:"error"`
}

// NewFinnhub makes the general news adapter
func NewFinnhub(params FinnhubParams) *Finnhub {
	category := params.Category
	if category == "" {
		category = "general"
	}
	return &Finnhub{caller: newCaller("finnhub", FinnhubURL, params.Options), category: category}
}

// Name returns provider name
func (f *Finnhub) Name() string { return f.name }

// Fetch makes one market news request, ticker filter is not supported and ignored
func (f *Finnhub) Fetch(ctx context.Context, params domain.FetchParams) domain.FetchResult {
	if f.apiKey == "" {
		return f.missingKey()
	}

	ctx, cancel := context.WithTimeout(ctx, f.deadline(params))
	defer cancel()

	query := url.Values{}
	query.Set("category", f.category)
	query.Set("token", f.apiKey)

	resp, err := f.get(ctx, "/api/v1/news", query)
	if err != nil {
		return f.transportFailure(err)
	}

	body := bytes.TrimSpace(resp.body)
	if len(body) > 0 && body[0] == '{' {
		// an object in place of the array is always an error report
		var e finnhubError
		if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
			return f.fail(classify.Input{StatusCode: resp.status, Malformed: errors.New("expected news array, got object")})
		}
		return f.fail(classify.Input{StatusCode: resp.status, Sentinel: e.Error})
	}

	if !is2xx(resp.status) {
		return f.fail(classify.Input{StatusCode: resp.status})
	}

	var items []normalize.FinnhubItem
	if err := json.Unmarshal(body, &items); err != nil {
		return f.fail(classify.Input{StatusCode: resp.status, Malformed: err})
	}
	if items == nil {
		return f.fail(classify.Input{StatusCode: resp.status, Malformed: errors.New("expected news array, got null")})
	}
	return f.success(normalize.Normalize(normalize.FinnhubPayload{Items: items, Category: f.category}))
}
