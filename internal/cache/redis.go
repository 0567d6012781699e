package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces response cache keys.
const DefaultKeyPrefix = "shiftmind:http:"

// RedisCache is a Cache shared between processes through Redis.
// Entries expire in Redis after the retention period.
type RedisCache struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(client redis.UniversalClient, retention time.Duration) *RedisCache {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisCache{
		client:    client,
		prefix:    DefaultKeyPrefix,
		retention: retention,
	}
}

// NewRedisClient creates a client for addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// Get returns the entry for key.
func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &e, nil
}

// Set stores entry under key.
func (c *RedisCache) Set(ctx context.Context, key string, entry *Entry) error {
	if entry == nil {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.retention).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
