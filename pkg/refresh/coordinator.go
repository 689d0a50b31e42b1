// Package refresh decides when a feed is fetched. One Coordinator owns one feed: it keeps a single
// fetch in flight, discards responses superseded by a newer request, retries a retryable failure
// once and drives the periodic auto-refresh timer.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"

	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
	"github.com/mihailescuandrei/market-news-stream/pkg/metrics"
)

//go:generate moq -out mocks/fetcher.go -pkg mocks -skip-ensure -fmt goimports . Fetcher

// Fetcher makes one upstream call for the feed
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, params domain.FetchParams) domain.FetchResult
}

// State of a feed's fetch lifecycle
type State int

// feed states
const (
	StateIdle State = iota
	StateFetching
	StateErrorBackoff
)

// String returns state name as used on the json boundary
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateErrorBackoff:
		return "error_backoff"
	default:
		return "unknown"
	}
}

// FeedState is a point-in-time copy of the coordinator's state
type FeedState struct {
	Feed            domain.FeedID
	State           State
	InFlight        bool
	LatestSeq       uint64
	LastResult      domain.FetchResult // nil until the first fetch completes
	LastSuccess     *domain.Success    // most recent successful fetch, nil if none
	LastFetchedAt   time.Time
	LastTriggeredAt time.Time
	NextEligibleAt  time.Time // timer ticks before this are skipped
	Filter          string
	AutoRefresh     bool
	Mounted         bool
}

// LastFailure returns the last result if it was a failure
func (s FeedState) LastFailure() (domain.Failure, bool) {
	f, ok := s.LastResult.(domain.Failure)
	return f, ok
}

// Config defines coordinator behaviour for one feed
type Config struct {
	Feed                domain.FeedID
	Fetcher             Fetcher
	Clock               Clock         // SystemClock if nil
	Interval            time.Duration // auto-refresh cadence
	RateLimitedInterval time.Duration // cadence while the last result is RateLimited, Interval if zero
	MinInterval         time.Duration // freshness window, timer ticks inside it are skipped
	Timeout             time.Duration // hard deadline of one upstream call
	AutoRefresh         bool
	RetryFunc           func(ctx context.Context, op func() error) error // bounded retry, one retry if nil
	OnChange            func(FeedState)                                  // called after every state change
}

// Coordinator serializes all refresh decisions of one feed
type Coordinator struct {
	cfg Config

	mu       sync.Mutex
	state    FeedState
	ctx      context.Context // fetch context, set on mount
	timer    Timer
	timerGen uint64
	wg       sync.WaitGroup
}

// DefaultRetry makes one immediate retry, two attempts in total
func DefaultRetry(ctx context.Context, op func() error) error {
	return repeater.NewFixed(2, 0).Do(ctx, op)
}

// New makes a coordinator, the feed is not mounted yet
func New(cfg Config) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.RateLimitedInterval <= 0 {
		cfg.RateLimitedInterval = cfg.Interval
	}
	if cfg.RetryFunc == nil {
		cfg.RetryFunc = DefaultRetry
	}
	return &Coordinator{
		cfg:   cfg,
		ctx:   context.Background(),
		state: FeedState{Feed: cfg.Feed, AutoRefresh: cfg.AutoRefresh},
	}
}

// Feed returns the coordinated feed id
func (c *Coordinator) Feed() domain.FeedID { return c.cfg.Feed }

// State returns a copy of the current state
func (c *Coordinator) State() FeedState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mount activates the feed, fetches immediately and arms the timer if auto-refresh is on.
// ctx bounds all fetches until the next mount. Returns false if already mounted.
func (c *Coordinator) Mount(ctx context.Context) bool {
	c.mu.Lock()
	if c.state.Mounted {
		c.mu.Unlock()
		return false
	}
	c.state.Mounted = true
	c.ctx = ctx
	lgr.Printf("[DEBUG] feed %s mounted", c.cfg.Feed)
	c.dispatch(domain.TriggerMount)
	c.armTimer()
	st := c.state
	c.mu.Unlock()

	c.notify(st)
	return true
}

// Unmount deactivates the feed and drops its state: results, filter and auto-refresh toggle.
// The timer is cancelled and an in-flight response will be discarded, the http call itself
// runs until its own deadline.
func (c *Coordinator) Unmount() {
	c.mu.Lock()
	if !c.state.Mounted {
		c.mu.Unlock()
		return
	}
	// state starts over on the next mount, only the sequence survives so late responses stay stale
	c.state = FeedState{Feed: c.cfg.Feed, LatestSeq: c.state.LatestSeq, AutoRefresh: c.cfg.AutoRefresh}
	c.stopTimer()
	lgr.Printf("[DEBUG] feed %s unmounted", c.cfg.Feed)
	st := c.state
	c.mu.Unlock()

	c.notify(st)
}

// Trigger requests a fetch for cause, returns true if a fetch was dispatched.
// Triggers arriving while a fetch is in flight are dropped, except a filter change.
func (c *Coordinator) Trigger(cause domain.Trigger) bool {
	c.mu.Lock()
	ok := c.trigger(cause)
	st := c.state
	c.mu.Unlock()

	if ok {
		c.notify(st)
	}
	return ok
}

// SetFilter changes the ticker filter and refetches, superseding any outstanding fetch.
// Returns true if a fetch was dispatched.
func (c *Coordinator) SetFilter(ticker string) bool {
	c.mu.Lock()
	if ticker == c.state.Filter {
		c.mu.Unlock()
		return false
	}
	c.state.Filter = ticker
	dispatched := c.trigger(domain.TriggerFilter)
	st := c.state
	c.mu.Unlock()

	c.notify(st)
	return dispatched
}

// SetAutoRefresh enables or disables the periodic timer. Enabling re-arms it from now.
func (c *Coordinator) SetAutoRefresh(enabled bool) {
	c.mu.Lock()
	if c.state.AutoRefresh == enabled {
		c.mu.Unlock()
		return
	}
	c.state.AutoRefresh = enabled
	if enabled {
		c.armTimer()
	} else {
		c.stopTimer()
	}
	lgr.Printf("[DEBUG] feed %s auto-refresh %v", c.cfg.Feed, enabled)
	st := c.state
	c.mu.Unlock()

	c.notify(st)
}

// Wait blocks until all fetch goroutines are done
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// trigger applies single-flight and freshness rules, must be called under lock
func (c *Coordinator) trigger(cause domain.Trigger) bool {
	if !c.state.Mounted {
		return false
	}
	if cause.Periodic() && c.cfg.Clock.Now().Before(c.state.NextEligibleAt) {
		lgr.Printf("[DEBUG] feed %s %s trigger skipped, data still fresh", c.cfg.Feed, cause)
		return false
	}
	if c.state.InFlight && cause != domain.TriggerFilter {
		lgr.Printf("[DEBUG] feed %s %s trigger dropped, fetch in flight", c.cfg.Feed, cause)
		metrics.TriggersDropped.WithLabelValues(string(c.cfg.Feed), cause.String()).Inc()
		return false
	}
	c.dispatch(cause)
	return true
}

// dispatch starts a fetch with a new sequence number, must be called under lock
func (c *Coordinator) dispatch(cause domain.Trigger) {
	now := c.cfg.Clock.Now()
	c.state.LatestSeq++
	c.state.InFlight = true
	c.state.State = StateFetching
	c.state.LastTriggeredAt = now
	c.state.NextEligibleAt = now.Add(c.cfg.MinInterval)

	seq := c.state.LatestSeq
	params := domain.FetchParams{Ticker: c.state.Filter, Timeout: c.cfg.Timeout}
	lgr.Printf("[DEBUG] feed %s fetch #%d dispatched by %s", c.cfg.Feed, seq, cause)

	c.wg.Add(1)
	go c.run(c.ctx, seq, cause, params)
}

// run executes one fetch with the bounded retry and applies its result
func (c *Coordinator) run(ctx context.Context, seq uint64, cause domain.Trigger, params domain.FetchParams) {
	defer c.wg.Done()

	var res domain.FetchResult
	attempt := 0
	err := c.cfg.RetryFunc(ctx, func() error {
		attempt++
		if attempt > 2 {
			return nil // never more than one retry, whatever the retry func does
		}
		if attempt == 2 && !c.beginRetry(seq) {
			return nil // superseded while backing off
		}
		res = c.cfg.Fetcher.Fetch(ctx, params)
		if f, ok := res.(domain.Failure); ok && f.Retryable && !cause.Periodic() && attempt == 1 {
			c.backoff(seq, f)
			return f
		}
		return nil
	})
	if err != nil && res == nil {
		res = domain.Failure{Kind: domain.ErrUnknown, Message: err.Error()}
	}
	c.complete(seq, res)
}

// backoff marks the feed as waiting for its retry
func (c *Coordinator) backoff(seq uint64, f domain.Failure) {
	c.mu.Lock()
	if seq != c.state.LatestSeq || !c.state.Mounted {
		c.mu.Unlock()
		return
	}
	c.state.State = StateErrorBackoff
	lgr.Printf("[INFO] feed %s fetch #%d failed with %s, retrying once", c.cfg.Feed, seq, f.Kind)
	st := c.state
	c.mu.Unlock()

	c.notify(st)
}

// beginRetry moves the feed back to fetching, false if the fetch was superseded
func (c *Coordinator) beginRetry(seq uint64) bool {
	c.mu.Lock()
	if seq != c.state.LatestSeq || !c.state.Mounted {
		c.mu.Unlock()
		return false
	}
	c.state.State = StateFetching
	st := c.state
	c.mu.Unlock()

	metrics.Retries.WithLabelValues(string(c.cfg.Feed)).Inc()
	c.notify(st)
	return true
}

// complete applies a fetch result unless it is stale or the feed was unmounted
func (c *Coordinator) complete(seq uint64, res domain.FetchResult) {
	c.mu.Lock()
	if seq != c.state.LatestSeq || !c.state.Mounted {
		lgr.Printf("[DEBUG] feed %s fetch #%d discarded, latest #%d, mounted %v",
			c.cfg.Feed, seq, c.state.LatestSeq, c.state.Mounted)
		metrics.StaleDiscarded.WithLabelValues(string(c.cfg.Feed)).Inc()
		c.mu.Unlock()
		return
	}

	c.state.InFlight = false
	c.state.State = StateIdle
	switch r := res.(type) {
	case domain.Success:
		r.FetchedAt = c.cfg.Clock.Now()
		c.state.LastResult = r
		c.state.LastSuccess = &r
		c.state.LastFetchedAt = r.FetchedAt
		metrics.FetchResults.WithLabelValues(string(c.cfg.Feed), "success").Inc()
		metrics.FeedArticles.WithLabelValues(string(c.cfg.Feed)).Set(float64(len(r.Articles)))
		lgr.Printf("[INFO] feed %s fetch #%d completed, %d articles", c.cfg.Feed, seq, len(r.Articles))
	case domain.Failure:
		c.state.LastResult = r
		metrics.FetchResults.WithLabelValues(string(c.cfg.Feed), string(r.Kind)).Inc()
		lgr.Printf("[WARN] feed %s fetch #%d failed, %v", c.cfg.Feed, seq, r)
	}

	st := c.state
	c.mu.Unlock()

	c.notify(st)
}

// interval returns the cadence for the current state, must be called under lock
func (c *Coordinator) interval() time.Duration {
	if f, ok := c.state.LastFailure(); ok && f.Kind == domain.ErrRateLimited {
		return c.cfg.RateLimitedInterval
	}
	return c.cfg.Interval
}

// armTimer (re)starts the one-shot timer with the cadence of the last result, must be called under lock.
// A pending tick is never moved by a new result, the changed cadence applies from the next tick.
func (c *Coordinator) armTimer() {
	c.stopTimer()
	if !c.state.AutoRefresh || !c.state.Mounted {
		return
	}
	c.timerGen++
	gen := c.timerGen
	c.timer = c.cfg.Clock.AfterFunc(c.interval(), func() { c.tick(gen) })
}

// stopTimer cancels the timer, must be called under lock
func (c *Coordinator) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++ // a tick already on its way is ignored
}

// tick handles a timer firing, re-arms and triggers a periodic fetch
func (c *Coordinator) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.armTimer()
	dispatched := c.trigger(domain.TriggerTimer)
	st := c.state
	c.mu.Unlock()

	if dispatched {
		c.notify(st)
	}
}

func (c *Coordinator) notify(st FeedState) {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(st)
	}
}
