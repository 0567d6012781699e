package fetch

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftmind/internal/cache"
	"shiftmind/internal/domain"
)

// testClock is a manually advanced clock.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

// recordingSleeper records requested delays without blocking.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestFetcher(clock *testClock, sleeper *recordingSleeper, c cache.Cache) *Fetcher {
	opts := []Option{
		WithClock(clock.Now),
		WithSleeper(sleeper.Sleep),
		WithBackOff(func() backoff.BackOff { return backoff.NewConstantBackOff(100 * time.Millisecond) }),
		WithLogger(log.New(io.Discard, "", 0)),
	}
	if c != nil {
		opts = append(opts, WithCache(c))
	}
	return New(opts...)
}

// sequenceServer answers with the given status codes in order, then 200.
func sequenceServer(t *testing.T, calls *atomic.Int32, statuses ...int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			w.Write([]byte(`{"error":{"message":"boom"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := sequenceServer(t, &calls, http.StatusServiceUnavailable, http.StatusServiceUnavailable)
	defer server.Close()

	sleeper := &recordingSleeper{}
	f := newTestFetcher(&testClock{now: time.Unix(1700000000, 0)}, sleeper, nil)

	resp, err := f.Fetch(context.Background(), Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.False(t, resp.FromCache)
	assert.Len(t, sleeper.delays, 2)
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := sequenceServer(t, &calls, http.StatusNotFound)
	defer server.Close()

	sleeper := &recordingSleeper{}
	f := newTestFetcher(&testClock{now: time.Unix(1700000000, 0)}, sleeper, nil)

	_, err := f.Fetch(context.Background(), Request{URL: server.URL})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, sleeper.delays)

	var rejection *domain.ProviderRejection
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, http.StatusNotFound, rejection.StatusCode)
	assert.Equal(t, "boom", rejection.Message)
	assert.False(t, domain.IsTransient(err))
}

func TestFetch_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	server := sequenceServer(t, &calls, 500, 502, 503, 504)
	defer server.Close()

	f := newTestFetcher(&testClock{now: time.Unix(1700000000, 0)}, &recordingSleeper{}, nil)

	_, err := f.Fetch(context.Background(), Request{URL: server.URL})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	var netErr *domain.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, domain.NetworkUnexpected, netErr.Kind)
	assert.Equal(t, 3, netErr.Attempts)
	assert.True(t, domain.IsTransient(err))
}

func TestFetch_RateLimitedHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	sleeper := &recordingSleeper{}
	f := newTestFetcher(&testClock{now: time.Unix(1700000000, 0)}, sleeper, nil)

	_, err := f.Fetch(context.Background(), Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{7 * time.Second}, sleeper.delays)
}

func TestFetch_RateLimitedWithoutRetryAfterUsesBackoff(t *testing.T) {
	var calls atomic.Int32
	server := sequenceServer(t, &calls, http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests)
	defer server.Close()

	sleeper := &recordingSleeper{}
	f := newTestFetcher(&testClock{now: time.Unix(1700000000, 0)}, sleeper, nil)

	_, err := f.Fetch(context.Background(), Request{URL: server.URL})
	var netErr *domain.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, domain.NetworkRateLimited, netErr.Kind)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, sleeper.delays)
}

func TestFetch_FreshCacheSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	server := sequenceServer(t, &calls)
	defer server.Close()

	clock := &testClock{now: time.Unix(1700000000, 0)}
	c := cache.NewMemoryCache(cache.WithClock(clock.Now))
	f := newTestFetcher(clock, &recordingSleeper{}, c)
	ctx := context.Background()

	_, err := f.Fetch(ctx, Request{URL: server.URL})
	require.NoError(t, err)

	clock.now = clock.now.Add(29 * time.Second)
	resp, err := f.Fetch(ctx, Request{URL: server.URL})
	require.NoError(t, err)
	assert.True(t, resp.FromCache)
	assert.False(t, resp.Stale)
	assert.Equal(t, int32(1), calls.Load())

	clock.now = clock.now.Add(2 * time.Second)
	resp, err = f.Fetch(ctx, Request{URL: server.URL})
	require.NoError(t, err)
	assert.False(t, resp.FromCache)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_StaleFallback(t *testing.T) {
	var calls atomic.Int32
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"price":1}`))
	}))
	defer server.Close()

	clock := &testClock{now: time.Unix(1700000000, 0)}
	c := cache.NewMemoryCache(cache.WithClock(clock.Now))
	f := newTestFetcher(clock, &recordingSleeper{}, c)
	ctx := context.Background()

	_, err := f.Fetch(ctx, Request{URL: server.URL})
	require.NoError(t, err)

	failing.Store(true)
	clock.now = clock.now.Add(5 * time.Minute)

	resp, err := f.Fetch(ctx, Request{URL: server.URL})
	require.NoError(t, err)
	assert.True(t, resp.FromCache)
	assert.True(t, resp.Stale)
	assert.Equal(t, `{"price":1}`, string(resp.Body))
	assert.Equal(t, int32(4), calls.Load())
}

func TestFetch_PostNotCached(t *testing.T) {
	var calls atomic.Int32
	var gotBody string
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotHeader = r.Header.Get("X-Test")
		w.Write([]byte(`{"id":"abc"}`))
	}))
	defer server.Close()

	clock := &testClock{now: time.Unix(1700000000, 0)}
	c := cache.NewMemoryCache()
	f := newTestFetcher(clock, &recordingSleeper{}, c)

	header := http.Header{"X-Test": []string{"1"}}
	req := Request{Method: http.MethodPost, URL: server.URL, Header: header, Body: []byte(`{"a":1}`)}

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), req)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, `{"a":1}`, gotBody)
	assert.Equal(t, "1", gotHeader)
	// caller header untouched
	assert.Equal(t, http.Header{"X-Test": []string{"1"}}, header)
}

func TestFetch_NoCacheBypassesCache(t *testing.T) {
	var calls atomic.Int32
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"waiting"}`))
	}))
	defer server.Close()

	clock := &testClock{now: time.Unix(1700000000, 0)}
	c := cache.NewMemoryCache(cache.WithClock(clock.Now))
	f := newTestFetcher(clock, &recordingSleeper{}, c)
	ctx := context.Background()
	req := Request{URL: server.URL, NoCache: true}

	for i := 0; i < 2; i++ {
		resp, err := f.Fetch(ctx, req)
		require.NoError(t, err)
		assert.False(t, resp.FromCache)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, c.Len())

	// a cached copy from a plain GET is not used as a stale fallback either
	_, err := f.Fetch(ctx, Request{URL: server.URL})
	require.NoError(t, err)
	failing.Store(true)
	clock.now = clock.now.Add(time.Hour)

	_, err = f.Fetch(ctx, req)
	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestFetch_NoConnectivity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	f := newTestFetcher(&testClock{now: time.Unix(1700000000, 0)}, &recordingSleeper{}, nil)

	_, err := f.Fetch(context.Background(), Request{URL: url})
	var netErr *domain.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, domain.NetworkNoConnectivity, netErr.Kind)
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := New(
		WithTimeout(20*time.Millisecond),
		WithMaxAttempts(2),
		WithSleeper((&recordingSleeper{}).Sleep),
		WithLogger(log.New(io.Discard, "", 0)),
	)

	_, err := f.Fetch(context.Background(), Request{URL: server.URL})
	var netErr *domain.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, domain.NetworkTimeout, netErr.Kind)
	assert.Equal(t, 2, netErr.Attempts)
}

func TestFetch_ContextCancelledDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	server := sequenceServer(t, &calls, 503, 503, 503)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := New(
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}),
		WithLogger(log.New(io.Discard, "", 0)),
	)

	_, err := f.Fetch(ctx, Request{URL: server.URL})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDefaultBackOff_Jitter(t *testing.T) {
	b := DefaultBackOff()
	first := b.NextBackOff()
	assert.GreaterOrEqual(t, first, 250*time.Millisecond)
	assert.LessOrEqual(t, first, 750*time.Millisecond)

	for i := 0; i < 20; i++ {
		d := b.NextBackOff()
		assert.NotEqual(t, backoff.Stop, d)
		assert.LessOrEqual(t, d, 15*time.Second)
	}
}
