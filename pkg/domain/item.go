package domain

import (
	"encoding/json"
	"time"
)

// Article represents a normalized, provider-agnostic news article
type Article struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	SourceName     string     `json:"sourceName"`
	PublishedAt    Timestamp  `json:"publishedAt"`
	Summary        string     `json:"summary"`
	ImageURL       string     `json:"imageUrl"`
	Sentiment      *Sentiment `json:"sentiment,omitempty"`
	RelatedSymbols []string   `json:"relatedSymbols"`
	Categories     []string   `json:"categories"`
}

// MarshalJSON adds the publishedAtFallback flag so consumers know publishedAt is a raw provider string
func (a Article) MarshalJSON() ([]byte, error) {
	type plain Article
	return json.Marshal(struct {
		plain
		PublishedAtFallback bool `json:"publishedAtFallback,omitempty"`
	}{plain: plain(a), PublishedAtFallback: !a.PublishedAt.Valid()})
}

// Sentiment is the overall sentiment annotation of an article
type Sentiment struct {
	Score float64 `json:"score"` // in [-1, 1]
	Label string  `json:"label"`
}

// Timestamp is a normalized publish instant. When the provider value can't be parsed,
// Time stays zero and Raw keeps the original string for display fallback.
type Timestamp struct {
	Time time.Time
	Raw  string
}

// Valid reports whether the provider value was parsed into an instant
func (t Timestamp) Valid() bool {
	return !t.Time.IsZero()
}

// String returns RFC3339 for parsed values and the raw provider string otherwise
func (t Timestamp) String() string {
	if t.Valid() {
		return t.Time.UTC().Format(time.RFC3339)
	}
	return t.Raw
}

// MarshalJSON renders the timestamp as a single JSON string
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts RFC3339 strings and keeps anything else as raw
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		*t = Timestamp{Time: parsed.UTC(), Raw: s}
		return nil
	}
	*t = Timestamp{Raw: s}
	return nil
}
