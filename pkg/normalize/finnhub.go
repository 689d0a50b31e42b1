package normalize

import (
	"strconv"
	"strings"

	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
)

// FinnhubPayload is the market news array plus the category it was requested with
type FinnhubPayload struct {
	Items    []FinnhubItem
	Category string // used when an item carries no category of its own
}

// FinnhubItem is one market news entry, datetime is unix seconds
type FinnhubItem struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Image    string `json:"image"`
	Related  string `json:"related"` // comma separated tickers
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// Len returns number of news entries
func (p FinnhubPayload) Len() int { return len(p.Items) }

func (p FinnhubPayload) articles() []domain.Article {
	res := make([]domain.Article, 0, len(p.Items))
	for _, item := range p.Items {
		id := synthID(item.Headline, strconv.FormatInt(item.Datetime, 10))
		if item.ID != 0 {
			id = strconv.FormatInt(item.ID, 10)
		}
		var related []string
		if item.Related != "" {
			related = strings.Split(item.Related, ",")
		}
		res = append(res, domain.Article{
			ID:             id,
			Title:          item.Headline,
			URL:            item.URL,
			SourceName:     item.Source,
			PublishedAt:    EpochTime(item.Datetime),
			Summary:        plainText(item.Summary),
			ImageURL:       item.Image,
			RelatedSymbols: symbols(related),
			Categories:     tagSet([]string{firstNonEmpty(item.Category, p.Category)}),
		})
	}
	return res
}
