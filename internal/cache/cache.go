// Package cache provides response caches for the retrying fetcher.
//
// A cache only stores entries; deciding whether an entry is fresh or stale
// is up to the caller, which compares StoredAt against its own clock.
package cache

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache closed")

// Entry is a cached HTTP response body.
type Entry struct {
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"stored_at"`
}

// Age returns how old the entry is at now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := &Entry{
		StatusCode: e.StatusCode,
		Header:     e.Header.Clone(),
		StoredAt:   e.StoredAt,
	}
	if e.Body != nil {
		c.Body = append([]byte(nil), e.Body...)
	}
	return c
}

// Cache stores entries by key.
// Get returns (nil, nil) when the key is absent.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
}
