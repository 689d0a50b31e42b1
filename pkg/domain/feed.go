package domain

import (
	"fmt"
	"time"
)

// FeedID identifies one provider-backed news stream
type FeedID string

// known feeds, one per upstream provider
const (
	FeedSentiment FeedID = "sentiment" // alpha vantage NEWS_SENTIMENT
	FeedGeneral   FeedID = "general"   // finnhub market news
	FeedRegional  FeedID = "regional"  // newsdata.io, country/category filtered
)

// Feeds lists all known feeds in display order
var Feeds = []FeedID{FeedSentiment, FeedGeneral, FeedRegional}

// ParseFeedID converts a string into a known FeedID
func ParseFeedID(s string) (FeedID, error) {
	for _, f := range Feeds {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown feed %q", s)
}

// SupportsFilter reports whether the feed accepts a ticker filter
func (f FeedID) SupportsFilter() bool {
	return f == FeedSentiment
}

// Trigger is the cause of a refresh attempt
type Trigger int

// trigger causes, each one is a valid reason to leave Idle
const (
	TriggerMount Trigger = iota
	TriggerTimer
	TriggerManual
	TriggerFilter
)

func (t Trigger) String() string {
	switch t {
	case TriggerMount:
		return "mount"
	case TriggerTimer:
		return "timer"
	case TriggerManual:
		return "manual"
	case TriggerFilter:
		return "filter"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

// Periodic reports whether the trigger came from the refresh timer
func (t Trigger) Periodic() bool {
	return t == TriggerTimer
}

// FetchParams carries per-request inputs for a provider adapter
type FetchParams struct {
	Ticker  string        // optional ticker filter, sentiment feed only
	Timeout time.Duration // hard deadline for the upstream call
}
