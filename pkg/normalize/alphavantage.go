package normalize

import (
	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
)

// AlphaVantagePayload is the NEWS_SENTIMENT response. Note, Information and ErrorMessage are
// provider sentinels which may arrive with or without feed data.
type AlphaVantagePayload struct {
	Items        string             `json:"items"`
	Feed         []AlphaVantageItem `json:"feed"`
	Note         string             `json:"Note"`
	Information  string             `json:"Information"`
	ErrorMessage string             `json:"Error Message"`
}

// AlphaVantageItem is one entry of the sentiment feed
type AlphaVantageItem struct {
	Title                 string               `json:"title"`
	URL                   string               `json:"url"`
	TimePublished         string               `json:"time_published"`
	Authors               []string             `json:"authors"`
	Summary               string               `json:"summary"`
	BannerImage           string               `json:"banner_image"`
	Source                string               `json:"source"`
	SourceDomain          string               `json:"source_domain"`
	Topics                []AlphaVantageTopic  `json:"topics"`
	OverallSentimentScore float64              `json:"overall_sentiment_score"`
	OverallSentimentLabel string               `json:"overall_sentiment_label"`
	TickerSentiment       []AlphaVantageTicker `json:"ticker_sentiment"`
}

// AlphaVantageTopic is a topic tag with relevance
type AlphaVantageTopic struct {
	Topic          string `json:"topic"`
	RelevanceScore string `json:"relevance_score"`
}

// AlphaVantageTicker is per-ticker sentiment, scores are strings upstream
type AlphaVantageTicker struct {
	Ticker               string `json:"ticker"`
	RelevanceScore       string `json:"relevance_score"`
	TickerSentimentScore string `json:"ticker_sentiment_score"`
	TickerSentimentLabel string `json:"ticker_sentiment_label"`
}

// Len returns number of feed entries
func (p AlphaVantagePayload) Len() int { return len(p.Feed) }

// Sentinel returns the first provider notice present in the payload, empty if none
func (p AlphaVantagePayload) Sentinel() string {
	return firstNonEmpty(p.Note, p.Information, p.ErrorMessage)
}

func (p AlphaVantagePayload) articles() []domain.Article {
	res := make([]domain.Article, 0, len(p.Feed))
	for _, item := range p.Feed {
		tickers := make([]string, 0, len(item.TickerSentiment))
		for _, ts := range item.TickerSentiment {
			tickers = append(tickers, ts.Ticker)
		}
		topics := make([]string, 0, len(item.Topics))
		for _, t := range item.Topics {
			topics = append(topics, t.Topic)
		}

		art := domain.Article{
			ID:             synthID(item.Title, item.TimePublished),
			Title:          item.Title,
			URL:            item.URL,
			SourceName:     firstNonEmpty(item.Source, item.SourceDomain),
			PublishedAt:    CompactTime(item.TimePublished),
			Summary:        plainText(item.Summary),
			ImageURL:       item.BannerImage,
			RelatedSymbols: symbols(tickers),
			Categories:     tagSet(topics),
		}
		if item.OverallSentimentLabel != "" || item.OverallSentimentScore != 0 {
			art.Sentiment = &domain.Sentiment{Score: clampScore(item.OverallSentimentScore), Label: item.OverallSentimentLabel}
		}
		res = append(res, art)
	}
	return res
}

func clampScore(v float64) float64 {
	switch {
	case v < -1:
		return -1
	case v > 1:
		return 1
	default:
		return v
	}
}
