package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultRetention bounds how long entries are kept for stale fallback.
const DefaultRetention = 24 * time.Hour

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	retention time.Duration
	now       func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

// MemoryOption configures MemoryCache.
type MemoryOption func(*MemoryCache)

// WithRetention sets how long entries are kept. Zero keeps them forever.
func WithRetention(d time.Duration) MemoryOption {
	return func(c *MemoryCache) {
		c.retention = d
	}
}

// WithClock sets the clock used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries:   make(map[string]*Entry),
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the entry for key.
func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if c.retention > 0 && e.Age(c.now()) > c.retention {
		c.mu.Lock()
		// re-check, a concurrent Set may have replaced it
		if cur, ok := c.entries[key]; ok && cur == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, nil
	}

	return e.Clone(), nil
}

// Set stores a copy of entry under key.
func (c *MemoryCache) Set(_ context.Context, key string, entry *Entry) error {
	if entry == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry.Clone()
	return nil
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
