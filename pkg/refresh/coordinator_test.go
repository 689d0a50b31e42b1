package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
	"github.com/mihailescuandrei/market-news-stream/pkg/refresh/mocks"
)

var t0 = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func articles(titles ...string) []domain.Article {
	res := make([]domain.Article, 0, len(titles))
	for _, title := range titles {
		res = append(res, domain.Article{ID: title, Title: title})
	}
	return res
}

func successFetcher(titles ...string) *mocks.FetcherMock {
	return &mocks.FetcherMock{
		NameFunc: func() string { return "test" },
		FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
			return domain.Success{Articles: articles(titles...)}
		},
	}
}

func waitIdle(t *testing.T, c *Coordinator) {
	t.Helper()
	require.Eventually(t, func() bool { return !c.State().InFlight }, time.Second, time.Millisecond)
	c.Wait()
}

func TestCoordinator_MountFetches(t *testing.T) {
	clock := NewFakeClock(t0)
	fetcher := successFetcher("a", "b")

	var changes int32
	c := New(Config{
		Feed: domain.FeedGeneral, Fetcher: fetcher, Clock: clock, Interval: 5 * time.Minute, Timeout: 25 * time.Second,
		OnChange: func(FeedState) { atomic.AddInt32(&changes, 1) },
	})
	assert.Equal(t, domain.FeedGeneral, c.Feed())
	assert.False(t, c.Trigger(domain.TriggerManual), "not mounted")

	require.True(t, c.Mount(context.Background()))
	assert.False(t, c.Mount(context.Background()), "second mount is a no-op")
	waitIdle(t, c)

	st := c.State()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, uint64(1), st.LatestSeq)
	require.NotNil(t, st.LastSuccess)
	assert.Len(t, st.LastSuccess.Articles, 2)
	assert.Equal(t, t0, st.LastFetchedAt)
	assert.Equal(t, t0, st.LastSuccess.FetchedAt)
	_, failed := st.LastFailure()
	assert.False(t, failed)

	calls := fetcher.FetchCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, 25*time.Second, calls[0].Params.Timeout)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&changes), int32(2), "mount and completion notified")
}

func TestCoordinator_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
			atomic.AddInt32(&calls, 1)
			<-release
			return domain.Success{Articles: articles("x")}
		},
	}
	c := New(Config{Feed: domain.FeedSentiment, Fetcher: fetcher, Clock: NewFakeClock(t0), Interval: time.Minute})

	require.True(t, c.Mount(context.Background()))
	st := c.State()
	assert.True(t, st.InFlight)
	assert.Equal(t, StateFetching, st.State)

	// manual and timer triggers while in flight are dropped
	assert.False(t, c.Trigger(domain.TriggerManual))
	assert.False(t, c.Trigger(domain.TriggerManual))
	assert.False(t, c.Trigger(domain.TriggerTimer))
	assert.Equal(t, uint64(1), c.State().LatestSeq)

	close(release)
	waitIdle(t, c)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// once idle a manual trigger goes through
	assert.True(t, c.Trigger(domain.TriggerManual))
	waitIdle(t, c)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCoordinator_StaleResponseDiscarded(t *testing.T) {
	releaseFirst := make(chan struct{})
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
			if params.Ticker == "" {
				<-releaseFirst
				return domain.Success{Articles: articles("unfiltered")}
			}
			return domain.Success{Articles: articles("filtered-" + params.Ticker)}
		},
	}
	c := New(Config{Feed: domain.FeedSentiment, Fetcher: fetcher, Clock: NewFakeClock(t0), Interval: time.Minute})

	require.True(t, c.Mount(context.Background()))
	require.True(t, c.SetFilter("AAPL"), "filter change supersedes the outstanding fetch")
	assert.Equal(t, uint64(2), c.State().LatestSeq)
	assert.False(t, c.SetFilter("AAPL"), "same filter is not a change")

	require.Eventually(t, func() bool { return !c.State().InFlight }, time.Second, time.Millisecond)
	st := c.State()
	require.NotNil(t, st.LastSuccess)
	assert.Equal(t, "filtered-AAPL", st.LastSuccess.Articles[0].Title)

	// the older response arrives last and must not overwrite the newer one
	close(releaseFirst)
	c.Wait()
	st = c.State()
	assert.Equal(t, "filtered-AAPL", st.LastSuccess.Articles[0].Title)
	assert.Equal(t, "AAPL", st.Filter)
	assert.False(t, st.InFlight)
}

func TestCoordinator_FiveMinuteCadence(t *testing.T) {
	clock := NewFakeClock(t0)
	var calls int32
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
			atomic.AddInt32(&calls, 1)
			return domain.Success{Articles: articles("a")}
		},
	}
	c := New(Config{
		Feed: domain.FeedGeneral, Fetcher: fetcher, Clock: clock,
		Interval: 5 * time.Minute, MinInterval: 10 * time.Second, AutoRefresh: true,
	})

	require.True(t, c.Mount(context.Background())) // t=0
	waitIdle(t, c)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	clock.Advance(299 * time.Second) // t=299s
	c.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no fetch before the interval elapsed")

	clock.Advance(time.Second) // t=300s
	waitIdle(t, c)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, t0.Add(300*time.Second), c.State().LastFetchedAt)

	clock.Advance(5 * time.Minute) // t=600s
	waitIdle(t, c)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, clock.Pending(), "exactly one timer armed")
}

func TestCoordinator_RateLimitedNotRetried(t *testing.T) {
	clock := NewFakeClock(t0)
	var calls int32
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
			atomic.AddInt32(&calls, 1)
			return domain.Failure{Kind: domain.ErrRateLimited, Message: "API rate limit reached"}
		},
	}
	c := New(Config{
		Feed: domain.FeedSentiment, Fetcher: fetcher, Clock: clock, AutoRefresh: true,
		Interval: time.Minute, RateLimitedInterval: 5 * time.Minute, MinInterval: 10 * time.Second,
	})

	require.True(t, c.Mount(context.Background()))
	waitIdle(t, c)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "rate limited is never retried automatically")

	st := c.State()
	f, ok := st.LastFailure()
	require.True(t, ok)
	assert.Equal(t, domain.ErrRateLimited, f.Kind)
	assert.Equal(t, StateIdle, st.State)
	assert.Nil(t, st.LastSuccess)

	// the tick armed at mount keeps its place, the slower cadence starts from it
	clock.Advance(time.Minute)
	waitIdle(t, c)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	clock.Advance(5*time.Minute - time.Second)
	c.Wait()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	clock.Advance(time.Second)
	waitIdle(t, c)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCoordinator_IntervalChangeAppliesFromNextTick(t *testing.T) {
	clock := NewFakeClock(t0)
	var calls int32
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
			if atomic.AddInt32(&calls, 1) == 1 {
				return domain.Success{Articles: articles("a")}
			}
			return domain.Failure{Kind: domain.ErrRateLimited, Message: "API rate limit reached"}
		},
	}
	c := New(Config{
		Feed: domain.FeedSentiment, Fetcher: fetcher, Clock: clock, AutoRefresh: true,
		Interval: time.Minute, RateLimitedInterval: 5 * time.Minute, MinInterval: 10 * time.Second,
	})

	require.True(t, c.Mount(context.Background()))
	waitIdle(t, c)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// t=60s, tick re-arms for t=120s before the fetch comes back rate limited
	clock.Advance(time.Minute)
	waitIdle(t, c)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	f, ok := c.State().LastFailure()
	require.True(t, ok)
	assert.Equal(t, domain.ErrRateLimited, f.Kind)

	// t=120s, the already scheduled tick still fires
	clock.Advance(time.Minute)
	waitIdle(t, c)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	// from here the rate-limited cadence applies, next tick at t=420s
	clock.Advance(5*time.Minute - time.Second)
	c.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	clock.Advance(time.Second)
	waitIdle(t, c)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestCoordinator_RetryableFailureRetriedOnce(t *testing.T) {
	t.Run("both attempts fail", func(t *testing.T) {
		var calls int32
		fetcher := &mocks.FetcherMock{
			FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
				atomic.AddInt32(&calls, 1)
				return domain.Failure{Kind: domain.ErrTimeout, Message: "timed out", Retryable: true}
			},
		}
		var mu sync.Mutex
		var states []State
		c := New(Config{Feed: domain.FeedRegional, Fetcher: fetcher, Clock: NewFakeClock(t0),
			OnChange: func(st FeedState) {
				mu.Lock()
				states = append(states, st.State)
				mu.Unlock()
			}})

		require.True(t, c.Mount(context.Background()))
		waitIdle(t, c)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

		f, ok := c.State().LastFailure()
		require.True(t, ok)
		assert.Equal(t, domain.ErrTimeout, f.Kind)

		mu.Lock()
		assert.Contains(t, states, StateErrorBackoff)
		mu.Unlock()
	})

	t.Run("retry succeeds", func(t *testing.T) {
		var calls int32
		fetcher := &mocks.FetcherMock{
			FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
				if atomic.AddInt32(&calls, 1) == 1 {
					return domain.Failure{Kind: domain.ErrUpstream, Message: "503", Retryable: true}
				}
				return domain.Success{Articles: articles("ok")}
			},
		}
		c := New(Config{Feed: domain.FeedRegional, Fetcher: fetcher, Clock: NewFakeClock(t0)})

		require.True(t, c.Mount(context.Background()))
		waitIdle(t, c)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
		st := c.State()
		require.NotNil(t, st.LastSuccess)
		_, failed := st.LastFailure()
		assert.False(t, failed)
	})

	t.Run("non-retryable failure", func(t *testing.T) {
		fetcher := &mocks.FetcherMock{
			FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
				return domain.Failure{Kind: domain.ErrUnauthorized, Message: "no key"}
			},
		}
		c := New(Config{Feed: domain.FeedRegional, Fetcher: fetcher, Clock: NewFakeClock(t0)})
		require.True(t, c.Mount(context.Background()))
		waitIdle(t, c)
		assert.Len(t, fetcher.FetchCalls(), 1)
	})
}

func TestCoordinator_TimerFailureNotRetried(t *testing.T) {
	clock := NewFakeClock(t0)
	var calls int32
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
			if atomic.AddInt32(&calls, 1) == 1 {
				return domain.Success{Articles: articles("a")}
			}
			return domain.Failure{Kind: domain.ErrTimeout, Message: "timed out", Retryable: true}
		},
	}
	c := New(Config{Feed: domain.FeedGeneral, Fetcher: fetcher, Clock: clock, Interval: 5 * time.Minute, AutoRefresh: true})

	require.True(t, c.Mount(context.Background()))
	waitIdle(t, c)

	clock.Advance(5 * time.Minute)
	waitIdle(t, c)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "periodic failure waits for the next tick")

	st := c.State()
	f, ok := st.LastFailure()
	require.True(t, ok)
	assert.Equal(t, domain.ErrTimeout, f.Kind)
	require.NotNil(t, st.LastSuccess, "last good articles are kept")
	assert.Equal(t, "a", st.LastSuccess.Articles[0].Title)
}

func TestCoordinator_UnmountDiscardsInFlight(t *testing.T) {
	release := make(chan struct{})
	clock := NewFakeClock(t0)
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
			<-release
			return domain.Success{Articles: articles("late")}
		},
	}
	c := New(Config{Feed: domain.FeedGeneral, Fetcher: fetcher, Clock: clock, Interval: 5 * time.Minute, AutoRefresh: true})

	require.True(t, c.Mount(context.Background()))
	assert.Equal(t, 1, clock.Pending())

	c.Unmount()
	c.Unmount() // no-op
	assert.Equal(t, 0, clock.Pending(), "timer cancelled on unmount")
	assert.False(t, c.State().Mounted)

	close(release)
	c.Wait()
	st := c.State()
	assert.Nil(t, st.LastResult, "response after unmount is discarded")
	assert.False(t, st.InFlight)
	assert.False(t, c.Trigger(domain.TriggerManual))
}

func TestCoordinator_UnmountDropsState(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
			switch atomic.AddInt32(&calls, 1) {
			case 1:
				return domain.Success{Articles: articles("first")}
			case 2:
				<-release
				return domain.Success{Articles: articles("late")}
			default:
				return domain.Success{Articles: articles("fresh")}
			}
		},
	}
	c := New(Config{Feed: domain.FeedSentiment, Fetcher: fetcher, Clock: NewFakeClock(t0), AutoRefresh: true})

	require.True(t, c.Mount(context.Background()))
	waitIdle(t, c)
	c.SetAutoRefresh(false)
	require.True(t, c.SetFilter("AAPL"))

	c.Unmount()
	st := c.State()
	assert.Nil(t, st.LastResult)
	assert.Nil(t, st.LastSuccess)
	assert.True(t, st.LastFetchedAt.IsZero())
	assert.Empty(t, st.Filter)
	assert.True(t, st.AutoRefresh, "toggle back to configured default")
	assert.Equal(t, uint64(2), st.LatestSeq, "sequence keeps counting")

	require.True(t, c.Mount(context.Background()))
	require.Eventually(t, func() bool { return c.State().LastSuccess != nil }, time.Second, time.Millisecond)
	assert.Equal(t, "fresh", c.State().LastSuccess.Articles[0].Title)
	assert.Empty(t, fetcher.FetchCalls()[2].Params.Ticker, "filter dropped with the state")

	close(release)
	c.Wait()
	assert.Equal(t, "fresh", c.State().LastSuccess.Articles[0].Title, "response from before unmount is stale")
	c.Unmount()
}

func TestCoordinator_AutoRefreshToggle(t *testing.T) {
	clock := NewFakeClock(t0)
	var calls int32
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
			atomic.AddInt32(&calls, 1)
			return domain.Success{Articles: articles("a")}
		},
	}
	c := New(Config{Feed: domain.FeedRegional, Fetcher: fetcher, Clock: clock, Interval: 5 * time.Minute, AutoRefresh: true})

	require.True(t, c.Mount(context.Background()))
	waitIdle(t, c)

	c.SetAutoRefresh(false)
	assert.False(t, c.State().AutoRefresh)
	assert.Equal(t, 0, clock.Pending())
	clock.Advance(20 * time.Minute)
	c.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no timer fetches while disabled")

	c.SetAutoRefresh(true) // re-armed from now, t=20m
	assert.Equal(t, 1, clock.Pending())
	clock.Advance(4 * time.Minute)
	c.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	clock.Advance(time.Minute)
	waitIdle(t, c)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCoordinator_TimerSkippedWhileFresh(t *testing.T) {
	clock := NewFakeClock(t0)
	var calls int32
	fetcher := &mocks.FetcherMock{
		FetchFunc: func(ctx context.Context, params domain.FetchParams) domain.FetchResult {
			atomic.AddInt32(&calls, 1)
			return domain.Success{Articles: articles("a")}
		},
	}

	t.Run("direct triggers", func(t *testing.T) {
		c := New(Config{Feed: domain.FeedGeneral, Fetcher: fetcher, Clock: clock, Interval: 5 * time.Minute, MinInterval: 2 * time.Minute})
		require.True(t, c.Mount(context.Background()))
		waitIdle(t, c)

		assert.False(t, c.Trigger(domain.TriggerTimer), "timer inside the freshness window is skipped")
		assert.True(t, c.Trigger(domain.TriggerManual), "manual bypasses freshness")
		waitIdle(t, c)

		clock.Advance(2 * time.Minute)
		assert.True(t, c.Trigger(domain.TriggerTimer))
		waitIdle(t, c)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
		c.Unmount()
	})

	t.Run("armed timer", func(t *testing.T) {
		atomic.StoreInt32(&calls, 0)
		c := New(Config{Feed: domain.FeedGeneral, Fetcher: fetcher, Clock: clock,
			Interval: 5 * time.Minute, MinInterval: 8 * time.Minute, AutoRefresh: true})
		require.True(t, c.Mount(context.Background()))
		waitIdle(t, c)

		clock.Advance(5 * time.Minute) // tick inside the freshness window
		c.Wait()
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		assert.Equal(t, 1, clock.Pending(), "timer re-armed after a skipped tick")

		clock.Advance(5 * time.Minute) // next tick is past the window
		waitIdle(t, c)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "fetching", StateFetching.String())
	assert.Equal(t, "error_backoff", StateErrorBackoff.String())
	assert.Equal(t, "unknown", State(42).String())
}
