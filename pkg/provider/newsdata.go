package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mihailescuandrei/market-news-stream/pkg/classify"
	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
	"github.com/mihailescuandrei/market-news-stream/pkg/normalize"
)

// NewsDataURL is the public api root
const NewsDataURL = "https://newsdata.io"

// NewsDataParams configures the regional news adapter
type NewsDataParams struct {
	Options
	Country  string // us if empty
	Category string // technology if empty
	Language string // en if empty
}

// NewsData fetches latest regional news
type NewsData struct {
	caller
	country  string
	category string
	language string
}

// newsDataEnvelope keeps results raw, they are an array on success and an object on error
type newsDataEnvelope struct {
	Status       string          `json:"status"`
	TotalResults int             `json:"totalResults"`
	Results      json.RawMessage `json:"results"`
	NextPage     string          `json:"nextPage"`
}

type newsDataError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// NewNewsData makes the regional news adapter
func NewNewsData(params NewsDataParams) *NewsData {
	res := &NewsData{
		caller:   newCaller("newsdata", NewsDataURL, params.Options),
		country:  params.Country,
		category: params.Category,
		language: params.Language,
	}
	if res.country == "" {
		res.country = "us"
	}
	if res.category == "" {
		res.category = "technology"
	}
	if res.language == "" {
		res.language = "en"
	}
	return res
}

// Name returns provider name
func (n *NewsData) Name() string { return n.name }

// Fetch makes one latest news request, ticker filter is not supported and ignored
func (n *NewsData) Fetch(ctx context.Context, params domain.FetchParams) domain.FetchResult {
	if n.apiKey == "" {
		return n.missingKey()
	}

	ctx, cancel := context.WithTimeout(ctx, n.deadline(params))
	defer cancel()

	query := url.Values{}
	query.Set("apikey", n.apiKey)
	query.Set("country", n.country)
	query.Set("category", n.category)
	query.Set("language", n.language)

	resp, err := n.get(ctx, "/api/1/news", query)
	if err != nil {
		return n.transportFailure(err)
	}

	var env newsDataEnvelope
	decodeErr := json.Unmarshal(resp.body, &env)

	if decodeErr == nil && env.Status == "error" {
		var e newsDataError
		_ = json.Unmarshal(env.Results, &e) // message-less errors still classify by status
		return n.fail(classify.Input{
			StatusCode:  resp.status,
			Sentinel:    strings.TrimSpace(e.Message),
			RateLimited: strings.EqualFold(e.Code, "RateLimitExceeded"),
			AuthFailed:  strings.EqualFold(e.Code, "Unauthorized"),
		})
	}
	if !is2xx(resp.status) {
		return n.fail(classify.Input{StatusCode: resp.status})
	}
	if decodeErr != nil {
		return n.fail(classify.Input{StatusCode: resp.status, Malformed: decodeErr})
	}
	if env.Status != "success" {
		return n.fail(classify.Input{StatusCode: resp.status, Malformed: fmt.Errorf("unexpected status %q", env.Status)})
	}

	payload := normalize.NewsDataPayload{Status: env.Status, TotalResults: env.TotalResults, NextPage: env.NextPage}
	raw := bytes.TrimSpace(env.Results)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if raw[0] != '[' {
			return n.fail(classify.Input{StatusCode: resp.status, Malformed: errors.New("results is not an array")})
		}
		if err := json.Unmarshal(raw, &payload.Results); err != nil {
			return n.fail(classify.Input{StatusCode: resp.status, Malformed: err})
		}
	}
	return n.success(normalize.Normalize(payload))
}
