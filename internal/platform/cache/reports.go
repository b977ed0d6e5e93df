package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss indicates the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// ReportCache stores rendered report payloads in Redis. Mutating workflows
// call Invalidate afterwards; a failed invalidation only means a stale read
// until TTL, never a correctness problem.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache constructs a ReportCache. A zero TTL defaults to 5 minutes.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ReportCache{client: client, ttl: ttl}
}

// Get unmarshals the cached payload for key into target.
func (c *ReportCache) Get(ctx context.Context, key string, target any) error {
	if c == nil || c.client == nil {
		return ErrMiss
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(data, target)
}

// Set stores value under key for the configured TTL.
func (c *ReportCache) Set(ctx context.Context, key string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate removes all keys matching pattern (e.g. "reports:*").
func (c *ReportCache) Invalidate(ctx context.Context, pattern string) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
