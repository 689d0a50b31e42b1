// Package metrics defines prometheus collectors for upstream calls and refresh coordination.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UpstreamRequests counts http calls made to providers
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsagg_upstream_requests_total",
			Help: "Total number of upstream provider requests",
		},
		[]string{"provider", "code"}, // code: http status or "error"
	)

	// UpstreamLatency tracks provider response time
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsagg_upstream_latency_seconds",
			Help:    "Upstream provider request latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 25},
		},
		[]string{"provider"},
	)

	// FetchResults counts applied fetch outcomes per feed
	FetchResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsagg_fetch_results_total",
			Help: "Total number of fetch results applied to feed state",
		},
		[]string{"feed", "outcome"}, // outcome: success|<error kind>
	)

	// TriggersDropped counts triggers ignored because a fetch was in flight
	TriggersDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsagg_triggers_dropped_total",
			Help: "Total number of refresh triggers dropped by single-flight",
		},
		[]string{"feed", "cause"},
	)

	// StaleDiscarded counts responses superseded by a newer request
	StaleDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsagg_stale_responses_total",
			Help: "Total number of responses discarded as stale or unmounted",
		},
		[]string{"feed"},
	)

	// Retries counts automatic bounded retries
	Retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsagg_fetch_retries_total",
			Help: "Total number of automatic fetch retries",
		},
		[]string{"feed"},
	)

	// FeedArticles is the article count of the latest successful fetch
	FeedArticles = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "newsagg_feed_articles",
			Help: "Number of articles in the latest successful fetch",
		},
		[]string{"feed"},
	)
)

var initOnce sync.Once

// Init registers all metrics with the default prometheus registry, safe to call more than once
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(UpstreamRequests)
		prometheus.MustRegister(UpstreamLatency)
		prometheus.MustRegister(FetchResults)
		prometheus.MustRegister(TriggersDropped)
		prometheus.MustRegister(StaleDiscarded)
		prometheus.MustRegister(Retries)
		prometheus.MustRegister(FeedArticles)
	})
}

// Handler returns prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordUpstream records one provider http call, code 0 means no response
func RecordUpstream(provider string, code int, duration time.Duration) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	UpstreamRequests.WithLabelValues(provider, label).Inc()
	UpstreamLatency.WithLabelValues(provider).Observe(duration.Seconds())
}
