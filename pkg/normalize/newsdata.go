package normalize

import (
	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
)

// NewsDataPayload is the successful NewsData.io latest-news response
type NewsDataPayload struct {
	Status       string         `json:"status"`
	TotalResults int            `json:"totalResults"`
	Results      []NewsDataItem `json:"results"`
	NextPage     string         `json:"nextPage"`
}

// NewsDataItem is one regional news entry, pubDate is "YYYY-MM-DD HH:MM:SS" in UTC
type NewsDataItem struct {
	ArticleID   string   `json:"article_id"`
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	PubDate     string   `json:"pubDate"`
	ImageURL    string   `json:"image_url"`
	SourceID    string   `json:"source_id"`
	SourceName  string   `json:"source_name"`
	SourceURL   string   `json:"source_url"`
	SourceIcon  string   `json:"source_icon"`
	Category    []string `json:"category"`
	Country     []string `json:"country"`
	Language    string   `json:"language"`
}

// Len returns number of result entries
func (p NewsDataPayload) Len() int { return len(p.Results) }

func (p NewsDataPayload) articles() []domain.Article {
	res := make([]domain.Article, 0, len(p.Results))
	for _, item := range p.Results {
		id := item.ArticleID
		if id == "" {
			id = synthID(item.Title, item.PubDate)
		}
		res = append(res, domain.Article{
			ID:             id,
			Title:          item.Title,
			URL:            item.Link,
			SourceName:     firstNonEmpty(item.SourceName, item.SourceID),
			PublishedAt:    ISOTime(item.PubDate),
			Summary:        plainText(item.Description),
			ImageURL:       item.ImageURL,
			RelatedSymbols: []string{},
			Categories:     tagSet(item.Category),
		})
	}
	return res
}
