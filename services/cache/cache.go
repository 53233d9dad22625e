package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a best-effort read-through cache for hot market endpoints.
// A nil *Cache is valid and means caching is disabled; Redis being
// unreachable degrades to database reads, never to errors.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a cache against the given Redis address. An empty
// address disables caching.
func New(addr string, ttl time.Duration) *Cache {
	if addr == "" {
		return nil
	}
	return &Cache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

// GetJSON loads the cached value for key into dest. Returns false on
// miss, disabled cache or any Redis/decoding problem.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if c == nil {
		return false
	}
	payload, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Cache get %s failed: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		log.Printf("Cache entry %s is corrupt, ignoring: %v", key, err)
		return false
	}
	return true
}

// SetJSON stores value under key with the configured TTL. Failures are
// logged and swallowed.
func (c *Cache) SetJSON(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		log.Printf("Cache marshal %s failed: %v", key, err)
		return
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		log.Printf("Cache set %s failed: %v", key, err)
	}
}

// Close releases the underlying Redis connection
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
