// Package fetch implements resilient HTTP access to upstream APIs:
// bounded retries with jittered exponential backoff, Retry-After handling,
// a short-TTL response cache and stale fallback when the upstream is down.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"shiftmind/internal/cache"
	"shiftmind/internal/domain"
	"shiftmind/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout       = 15 * time.Second
	DefaultMaxAttempts   = 3
	DefaultCacheTTL      = 30 * time.Second
	DefaultInitialDelay  = 500 * time.Millisecond
	DefaultMaxDelay      = 10 * time.Second
	DefaultJitter        = 0.5
	DefaultMaxRetryAfter = 60 * time.Second
	maxBodySize          = 8 << 20
)

// Request describes one logical HTTP call.
type Request struct {
	Method string // defaults to GET
	URL    string
	Header http.Header
	Body   []byte

	// NoCache bypasses the response cache in both directions, including
	// the stale fallback.
	NoCache bool
}

// Response is the result of a successful fetch.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FromCache  bool // served from cache without a network call
	Stale      bool // served from an expired cache entry after retries failed
}

// Doer is the interface consumed by the API clients.
type Doer interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Fetcher performs HTTP requests with retries and caching.
type Fetcher struct {
	client        *http.Client
	cache         cache.Cache
	ttl           time.Duration
	maxAttempts   int
	maxRetryAfter time.Duration
	newBackOff    func() backoff.BackOff
	limiter       *rate.Limiter
	now           func() time.Time
	sleep         Sleeper
	logger        *log.Logger
}

var _ Doer = (*Fetcher)(nil)

// Option configures Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

// WithCache sets the response cache. GET responses are cached by URL.
func WithCache(c cache.Cache) Option {
	return func(f *Fetcher) {
		f.cache = c
	}
}

// WithCacheTTL sets how long a cached response is served without a network call.
func WithCacheTTL(d time.Duration) Option {
	return func(f *Fetcher) {
		f.ttl = d
	}
}

// WithMaxAttempts sets the total number of attempts per call.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithMaxRetryAfter caps the delay honored from a Retry-After header.
func WithMaxRetryAfter(d time.Duration) Option {
	return func(f *Fetcher) {
		f.maxRetryAfter = d
	}
}

// WithBackOff sets the backoff policy factory. A fresh policy is created per call.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(f *Fetcher) {
		f.newBackOff = newBackOff
	}
}

// WithRateLimiter throttles outbound attempts.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// WithClock sets the clock used for cache freshness and Retry-After dates.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// WithSleeper sets the function used to wait between attempts.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) {
		f.sleep = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:        &http.Client{Timeout: DefaultTimeout},
		ttl:           DefaultCacheTTL,
		maxAttempts:   DefaultMaxAttempts,
		maxRetryAfter: DefaultMaxRetryAfter,
		newBackOff:    DefaultBackOff,
		now:           time.Now,
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	return f
}

// DefaultBackOff returns the jittered exponential policy used between attempts.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = DefaultInitialDelay
	b.RandomizationFactor = DefaultJitter
	b.Multiplier = 2
	b.MaxInterval = DefaultMaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Fetch performs req. Transient failures (transport errors, timeouts, 5xx,
// 429) are retried; other 4xx answers return *domain.ProviderRejection after
// a single attempt. When every attempt fails the last cached response is
// returned with Stale set, otherwise a *domain.NetworkError.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	host := hostOf(req.URL)
	cacheable := f.cache != nil && method == http.MethodGet && !req.NoCache

	if cacheable {
		if e := f.lookup(ctx, req.URL); e != nil && e.Age(f.now()) < f.ttl {
			observability.RecordCacheLookup("fresh")
			observability.RecordFetchOutcome(host, "cache")
			return responseFromEntry(e, false), nil
		}
		observability.RecordCacheLookup("miss")
	}

	bo := f.newBackOff()
	bo.Reset()

	var (
		lastErr  error
		lastKind = domain.NetworkUnexpected
	)

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		start := time.Now()
		res := f.attempt(ctx, method, req)
		observability.RecordFetchAttempt(host, res.class, time.Since(start).Seconds())

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		switch {
		case res.resp != nil:
			if cacheable {
				f.store(ctx, req.URL, res.resp)
			}
			observability.RecordFetchOutcome(host, "success")
			return res.resp, nil
		case res.rejection != nil:
			observability.RecordFetchOutcome(host, "rejected")
			return nil, res.rejection
		}

		lastErr = res.err
		lastKind = res.kind

		if attempt == f.maxAttempts {
			break
		}

		delay := res.retryAfter
		if delay <= 0 {
			delay = bo.NextBackOff()
			if delay == backoff.Stop {
				break
			}
		}

		f.logger.Printf("%s %s attempt %d/%d failed: %v (retrying in %s)",
			method, req.URL, attempt, f.maxAttempts, lastErr, delay)

		if err := f.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	if cacheable {
		if e := f.lookup(ctx, req.URL); e != nil {
			f.logger.Printf("%s %s failed, serving stale response from %s", method, req.URL, e.StoredAt.Format(time.RFC3339))
			observability.RecordCacheLookup("stale")
			observability.RecordFetchOutcome(host, "stale")
			return responseFromEntry(e, true), nil
		}
	}

	observability.RecordFetchOutcome(host, string(lastKind))
	return nil, &domain.NetworkError{
		Kind:     lastKind,
		URL:      req.URL,
		Attempts: f.maxAttempts,
		Err:      lastErr,
	}
}

// attemptResult is the classified outcome of one attempt.
// Exactly one of resp, rejection or err is set.
type attemptResult struct {
	resp       *Response
	rejection  *domain.ProviderRejection
	err        error
	kind       domain.NetworkErrorKind
	retryAfter time.Duration
	class      string
}

func (f *Fetcher) attempt(ctx context.Context, method string, req Request) attemptResult {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		// malformed request will not improve on retry
		return attemptResult{
			rejection: &domain.ProviderRejection{URL: req.URL, Message: err.Error()},
			class:     "invalid",
		}
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		kind := classifyTransportError(err)
		return attemptResult{err: fmt.Errorf("http request: %w", err), kind: kind, class: string(kind)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		kind := classifyTransportError(err)
		return attemptResult{err: fmt.Errorf("read response: %w", err), kind: kind, class: string(kind)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return attemptResult{
			resp: &Response{
				StatusCode: resp.StatusCode,
				Header:     resp.Header.Clone(),
				Body:       respBody,
			},
			class: "2xx",
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return attemptResult{
			err:        fmt.Errorf("rate limited (429)"),
			kind:       domain.NetworkRateLimited,
			retryAfter: f.retryAfter(resp.Header.Get("Retry-After")),
			class:      "429",
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return attemptResult{
			rejection: &domain.ProviderRejection{
				StatusCode: resp.StatusCode,
				URL:        req.URL,
				Message:    errorMessage(respBody),
			},
			class: "4xx",
		}
	default:
		return attemptResult{
			err:   fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
			kind:  domain.NetworkUnexpected,
			class: "5xx",
		}
	}
}

// retryAfter parses a Retry-After header (delta seconds or HTTP date).
func (f *Fetcher) retryAfter(v string) time.Duration {
	d, ok := parseRetryAfter(v, f.now())
	if !ok {
		return 0
	}
	if f.maxRetryAfter > 0 && d > f.maxRetryAfter {
		d = f.maxRetryAfter
	}
	return d
}

func (f *Fetcher) lookup(ctx context.Context, key string) *cache.Entry {
	e, err := f.cache.Get(ctx, key)
	if err != nil {
		f.logger.Printf("cache get %s: %v", key, err)
		return nil
	}
	return e
}

func (f *Fetcher) store(ctx context.Context, key string, resp *Response) {
	err := f.cache.Set(ctx, key, &cache.Entry{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		StoredAt:   f.now(),
	})
	if err != nil {
		f.logger.Printf("cache set %s: %v", key, err)
	}
}

func responseFromEntry(e *cache.Entry, stale bool) *Response {
	return &Response{
		StatusCode: e.StatusCode,
		Header:     e.Header,
		Body:       e.Body,
		FromCache:  true,
		Stale:      stale,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// isTimeout reports whether err is a timeout of any layer.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
