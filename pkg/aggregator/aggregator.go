// Package aggregator is the facade over the per-feed refresh coordinators. It owns one coordinator
// per configured feed and exposes read-only snapshots plus the user-facing commands.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
	"github.com/mihailescuandrei/market-news-stream/pkg/refresh"
)

// errors returned by service commands
var (
	ErrUnknownFeed        = errors.New("unknown feed")
	ErrFilterUnsupported  = errors.New("feed does not support ticker filter")
	ErrServiceNotStarted  = errors.New("service not started")
	errNoFeedsConfigured  = errors.New("no feeds configured")
	errDuplicateFeedEntry = errors.New("duplicate feed")
)

// FeedConfig defines one feed and its adapter
type FeedConfig struct {
	Feed                domain.FeedID
	Fetcher             refresh.Fetcher
	Interval            time.Duration
	RateLimitedInterval time.Duration
	MinInterval         time.Duration
	Timeout             time.Duration
	AutoRefresh         bool
}

// Params for New
type Params struct {
	Feeds     []FeedConfig
	Clock     refresh.Clock                                    // system clock if nil
	RetryFunc func(ctx context.Context, op func() error) error // coordinator default if nil
}

// Snapshot is the read-only view of one feed
type Snapshot struct {
	Feed          domain.FeedID    `json:"feed"`
	Articles      []domain.Article `json:"articles"`
	Error         *SnapshotError   `json:"error,omitempty"`
	Loading       bool             `json:"loading"`    // in flight, nothing fetched yet
	Refreshing    bool             `json:"refreshing"` // in flight, showing earlier result
	LastFetchedAt *time.Time       `json:"lastFetchedAt,omitempty"`
	Filter        string           `json:"filter,omitempty"`
	AutoRefresh   bool             `json:"autoRefresh"`
	State         string           `json:"state"`
	Active        bool             `json:"active"`
}

// SnapshotError is the last failure of a feed
type SnapshotError struct {
	Kind      domain.ErrorKind `json:"kind"`
	Message   string           `json:"message"`
	Retryable bool             `json:"retryable"`
}

// HasResult reports whether any fetch has completed
func (s Snapshot) HasResult() bool {
	return s.Error != nil || s.LastFetchedAt != nil
}

// Service aggregates all feeds
type Service struct {
	feeds        []domain.FeedID
	coordinators map[domain.FeedID]*refresh.Coordinator

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	subs   []func(domain.FeedID, Snapshot)
}

// New makes the service, feeds are inactive until Start or Activate
func New(params Params) (*Service, error) {
	if len(params.Feeds) == 0 {
		return nil, errNoFeedsConfigured
	}
	s := &Service{coordinators: make(map[domain.FeedID]*refresh.Coordinator, len(params.Feeds))}
	for _, fc := range params.Feeds {
		if _, err := domain.ParseFeedID(string(fc.Feed)); err != nil {
			return nil, fmt.Errorf("feed config: %w", err)
		}
		if fc.Fetcher == nil {
			return nil, fmt.Errorf("feed %s: no fetcher", fc.Feed)
		}
		if _, ok := s.coordinators[fc.Feed]; ok {
			return nil, fmt.Errorf("%w: %s", errDuplicateFeedEntry, fc.Feed)
		}
		s.feeds = append(s.feeds, fc.Feed)
		s.coordinators[fc.Feed] = refresh.New(refresh.Config{
			Feed:                fc.Feed,
			Fetcher:             fc.Fetcher,
			Clock:               params.Clock,
			Interval:            fc.Interval,
			RateLimitedInterval: fc.RateLimitedInterval,
			MinInterval:         fc.MinInterval,
			Timeout:             fc.Timeout,
			AutoRefresh:         fc.AutoRefresh,
			RetryFunc:           params.RetryFunc,
			OnChange:            s.publish,
		})
	}
	return s, nil
}

// Feeds returns configured feed ids in configuration order
func (s *Service) Feeds() []domain.FeedID {
	res := make([]domain.FeedID, len(s.feeds))
	copy(res, s.feeds)
	return res
}

// Start activates all feeds concurrently, each feed fetches immediately
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	g := errgroup.Group{}
	for _, feed := range s.feeds {
		g.Go(func() error {
			if err := s.Activate(feed); err != nil {
				return fmt.Errorf("activate %s: %w", feed, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	lgr.Printf("[INFO] aggregator started with %d feeds", len(s.feeds))
	return nil
}

// Stop deactivates all feeds and waits for in-flight fetches to return
func (s *Service) Stop() {
	lgr.Printf("[INFO] stopping aggregator...")
	for _, feed := range s.feeds {
		s.coordinators[feed].Unmount()
	}
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	for _, feed := range s.feeds {
		s.coordinators[feed].Wait()
	}
	lgr.Printf("[INFO] aggregator stopped")
}

// Activate mounts a feed, it fetches immediately and follows its auto-refresh setting
func (s *Service) Activate(feed domain.FeedID) error {
	c, err := s.coordinator(feed)
	if err != nil {
		return err
	}
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil {
		return ErrServiceNotStarted
	}
	if ctx.Err() != nil {
		return fmt.Errorf("activate %s: %w", feed, ctx.Err())
	}
	c.Mount(ctx)
	return nil
}

// Deactivate unmounts a feed, its timer stops and pending responses are ignored
func (s *Service) Deactivate(feed domain.FeedID) error {
	c, err := s.coordinator(feed)
	if err != nil {
		return err
	}
	c.Unmount()
	return nil
}

// Snapshot returns the current view of a feed, repeated calls without triggers return equal values
func (s *Service) Snapshot(feed domain.FeedID) (Snapshot, error) {
	c, err := s.coordinator(feed)
	if err != nil {
		return Snapshot{}, err
	}
	return makeSnapshot(c.State()), nil
}

// Snapshots returns views of all feeds in configuration order
func (s *Service) Snapshots() []Snapshot {
	res := make([]Snapshot, 0, len(s.feeds))
	for _, feed := range s.feeds {
		res = append(res, makeSnapshot(s.coordinators[feed].State()))
	}
	return res
}

// TriggerRefresh requests a fetch. Manual refresh bypasses the freshness window, otherwise the
// request is treated like a timer tick. Returns false if nothing was dispatched.
func (s *Service) TriggerRefresh(feed domain.FeedID, manual bool) (bool, error) {
	c, err := s.coordinator(feed)
	if err != nil {
		return false, err
	}
	cause := domain.TriggerTimer
	if manual {
		cause = domain.TriggerManual
	}
	return c.Trigger(cause), nil
}

// SetFilter sets the ticker filter of a feed, empty clears it. Returns true if a fetch was dispatched.
func (s *Service) SetFilter(feed domain.FeedID, ticker string) (bool, error) {
	c, err := s.coordinator(feed)
	if err != nil {
		return false, err
	}
	if !feed.SupportsFilter() {
		return false, fmt.Errorf("%w: %s", ErrFilterUnsupported, feed)
	}
	return c.SetFilter(NormalizeTicker(ticker)), nil
}

// SetAutoRefresh toggles periodic refresh of a feed
func (s *Service) SetAutoRefresh(feed domain.FeedID, enabled bool) error {
	c, err := s.coordinator(feed)
	if err != nil {
		return err
	}
	c.SetAutoRefresh(enabled)
	return nil
}

// Subscribe registers fn to be called after every state change of any feed.
// fn runs on the goroutine making the change and must not block.
func (s *Service) Subscribe(fn func(domain.FeedID, Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// NormalizeTicker upper-cases and trims a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func (s *Service) coordinator(feed domain.FeedID) (*refresh.Coordinator, error) {
	c, ok := s.coordinators[feed]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeed, feed)
	}
	return c, nil
}

func (s *Service) publish(st refresh.FeedState) {
	s.mu.RLock()
	subs := make([]func(domain.FeedID, Snapshot), len(s.subs))
	copy(subs, s.subs)
	s.mu.RUnlock()

	if len(subs) == 0 {
		return
	}
	snap := makeSnapshot(st)
	for _, fn := range subs {
		fn(st.Feed, snap)
	}
}

func makeSnapshot(st refresh.FeedState) Snapshot {
	res := Snapshot{
		Feed:        st.Feed,
		Articles:    []domain.Article{},
		Loading:     st.InFlight && st.LastResult == nil,
		Refreshing:  st.InFlight && st.LastResult != nil,
		Filter:      st.Filter,
		AutoRefresh: st.AutoRefresh,
		State:       st.State.String(),
		Active:      st.Mounted,
	}
	if st.LastSuccess != nil {
		res.Articles = st.LastSuccess.Articles
		if res.Articles == nil {
			res.Articles = []domain.Article{}
		}
		fetchedAt := st.LastSuccess.FetchedAt
		res.LastFetchedAt = &fetchedAt
	}
	if f, ok := st.LastFailure(); ok {
		res.Error = &SnapshotError{Kind: f.Kind, Message: f.Message, Retryable: f.Retryable}
	}
	return res
}
