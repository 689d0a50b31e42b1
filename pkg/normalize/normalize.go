// Package normalize converts provider specific raw payloads into domain articles.
// Each provider has its own payload type with its own conversion; they meet only
// at the []domain.Article boundary. All conversions are pure and never fail,
// a malformed field degrades to an empty value or a raw timestamp fallback.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
)

// Payload is a decoded upstream response of one provider
type Payload interface {
	// Len returns the number of source entries in the payload
	Len() int
	articles() []domain.Article
}

// strict policy strips all markup, safe for concurrent use
var textPolicy = bluemonday.StrictPolicy()

// Normalize maps the payload into articles, one per source entry, preserving order.
// Returned slice is never nil; ids are made unique within the response.
func Normalize(p Payload) []domain.Article {
	if p == nil {
		return []domain.Article{}
	}
	res := p.articles()
	if res == nil {
		return []domain.Article{}
	}
	uniqueIDs(res)
	return res
}

// synthID builds a stable id from title and the raw publish value, used when provider gives none
func synthID(title, published string) string {
	sum := sha256.Sum256([]byte(title + "-" + published))
	return hex.EncodeToString(sum[:])[:16]
}

// uniqueIDs suffixes repeated ids in place, first occurrence keeps the original id
func uniqueIDs(articles []domain.Article) {
	seen := make(map[string]int, len(articles))
	for i := range articles {
		id := articles[i].ID
		n, dup := seen[id]
		seen[id] = n + 1
		if !dup {
			continue
		}
		candidate := fmt.Sprintf("%s-%d", id, n+1)
		for {
			if _, taken := seen[candidate]; !taken {
				break
			}
			n++
			candidate = fmt.Sprintf("%s-%d", id, n+1)
		}
		seen[candidate] = 1
		articles[i].ID = candidate
	}
}

// plainText strips markup and entities from provider summaries
func plainText(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// tagSet returns trimmed, non-empty values in first-seen order without repeats, never nil
func tagSet(values []string) []string {
	res := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		res = append(res, v)
	}
	return res
}

// symbols returns trimmed, non-empty tickers in provider order, never nil
func symbols(values []string) []string {
	res := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			res = append(res, v)
		}
	}
	return res
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
