package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores finished analyses keyed by URL. Implementations must be
// safe for concurrent use. The service works identically without one.
type Cache interface {
	Get(ctx context.Context, url string) (*Result, bool)
	Set(ctx context.Context, url string, res *Result)
}

const cacheKeyPrefix = "productpulse:analysis:"

// RedisCache keeps analysis results in Redis with a TTL. Cache errors
// are logged and treated as misses; the pipeline never fails because
// the cache is down.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing Redis client. ttl <= 0 defaults to
// five minutes.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(url string) string {
	return cacheKeyPrefix + url
}

func (c *RedisCache) Get(ctx context.Context, url string) (*Result, bool) {
	data, err := c.client.Get(ctx, c.key(url)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Failed to GET analysis for %s: %v", url, err)
		}
		return nil, false
	}
	var res Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		log.Printf("Failed to unmarshal cached analysis for %s: %v", url, err)
		return nil, false
	}
	res.Cached = true
	return &res, true
}

func (c *RedisCache) Set(ctx context.Context, url string, res *Result) {
	data, err := json.Marshal(res)
	if err != nil {
		log.Printf("Failed to marshal analysis for %s: %v", url, err)
		return
	}
	if err := c.client.Set(ctx, c.key(url), data, c.ttl).Err(); err != nil {
		log.Printf("Failed to SET analysis for %s: %v", url, err)
	}
}

// Ping verifies the Redis connection at startup.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: redis ping failed: %w", err)
	}
	return nil
}
