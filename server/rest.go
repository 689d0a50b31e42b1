package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/mihailescuandrei/market-news-stream/pkg/aggregator"
	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
)

// articlesResponse is the body of a successful articles request
type articlesResponse struct {
	Articles  []domain.Article `json:"articles"`
	FetchedAt *time.Time       `json:"fetchedAt,omitempty"`
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// listFeedsHandler returns snapshots of all feeds
func (s *Server) listFeedsHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, s.agg.Snapshots())
}

// feedHandler returns snapshot of one feed
func (s *Server) feedHandler(w http.ResponseWriter, r *http.Request) {
	feed, ok := feedFromPath(w, r)
	if !ok {
		return
	}
	snap, err := s.agg.Snapshot(feed)
	if err != nil {
		renderAggError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, snap)
}

// articlesHandler returns articles of the last fetch, or its failure mapped to a status code
func (s *Server) articlesHandler(w http.ResponseWriter, r *http.Request) {
	feed, ok := feedFromPath(w, r)
	if !ok {
		return
	}
	snap, err := s.agg.Snapshot(feed)
	if err != nil {
		renderAggError(w, r, err)
		return
	}

	switch {
	case snap.Error != nil:
		renderJSON(w, r, snap.Error.Kind.HTTPStatus(), map[string]string{
			"error": snap.Error.Message,
			"kind":  string(snap.Error.Kind),
		})
	case snap.LastFetchedAt != nil:
		renderJSON(w, r, http.StatusOK, articlesResponse{Articles: snap.Articles, FetchedAt: snap.LastFetchedAt})
	default:
		renderError(w, r, fmt.Errorf("feed %s has no result yet", feed), http.StatusServiceUnavailable)
	}
}

// refreshHandler requests a manual refresh, dispatched is false if a fetch is already running
func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	feed, ok := feedFromPath(w, r)
	if !ok {
		return
	}
	dispatched, err := s.agg.TriggerRefresh(feed, true)
	if err != nil {
		renderAggError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusAccepted, map[string]bool{"dispatched": dispatched})
}

// filterHandler sets ticker filter of the sentiment feed
func (s *Server) filterHandler(w http.ResponseWriter, r *http.Request) {
	feed, ok := feedFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		Ticker string `json:"ticker"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	dispatched, err := s.agg.SetFilter(feed, req.Ticker)
	if err != nil {
		renderAggError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]any{
		"dispatched": dispatched,
		"filter":     aggregator.NormalizeTicker(req.Ticker),
	})
}

// autoRefreshHandler toggles periodic refresh of a feed
func (s *Server) autoRefreshHandler(w http.ResponseWriter, r *http.Request) {
	feed, ok := feedFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	if req.Enabled == nil {
		renderError(w, r, errors.New("enabled is required"), http.StatusBadRequest)
		return
	}
	if err := s.agg.SetAutoRefresh(feed, *req.Enabled); err != nil {
		renderAggError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]bool{"autoRefresh": *req.Enabled})
}

// feedFromPath parses feed id from the path, renders 404 for unknown feeds
func feedFromPath(w http.ResponseWriter, r *http.Request) (domain.FeedID, bool) {
	feed, err := domain.ParseFeedID(r.PathValue("feed"))
	if err != nil {
		renderError(w, r, err, http.StatusNotFound)
		return "", false
	}
	return feed, true
}

// renderAggError maps aggregator errors to status codes
func renderAggError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, aggregator.ErrUnknownFeed):
		renderError(w, r, err, http.StatusNotFound)
	case errors.Is(err, aggregator.ErrFilterUnsupported):
		renderError(w, r, err, http.StatusBadRequest)
	default:
		log.Printf("[ERROR] aggregator request failed: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
	}
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
