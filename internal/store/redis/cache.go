package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"stockdbv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	keyPrefix  = "indcache:"
	metaPrefix = "indcache:meta:"

	defaultMaxFailures  = 5
	defaultResetTimeout = 10 * time.Second
)

// CacheConfig configures the Redis cache tier.
type CacheConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// CacheStore is a Redis-backed payload store. Expiry is delegated to
// Redis key TTLs, and every call goes through a circuit breaker so a
// dead Redis degrades the cache instead of the whole pipeline.
type CacheStore struct {
	client *goredis.Client
	cb     *CircuitBreaker
}

var _ model.PayloadStore = (*CacheStore)(nil)

// Client returns the underlying Redis client for health checks.
func (c *CacheStore) Client() *goredis.Client { return c.client }

// Breaker exposes the circuit breaker for metrics wiring.
func (c *CacheStore) Breaker() *CircuitBreaker { return c.cb }

// NewCacheStore connects to Redis and pings the server.
func NewCacheStore(cfg CacheConfig) (*CacheStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	cb := NewCircuitBreaker(defaultMaxFailures, defaultResetTimeout)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis-cache] circuit breaker %s -> %s", from, to)
	}

	log.Printf("[redis-cache] connected to %s", cfg.Addr)
	return &CacheStore{client: client, cb: cb}, nil
}

// Get returns the payload for key, or ok=false on miss or expiry.
func (c *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	var found bool
	err := c.cb.Execute(func() error {
		data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
		if err == goredis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		payload = data
		found = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("redis cache get: %w", err)
	}
	return payload, found, nil
}

// Set stores the payload and its metadata under the entry's TTL. Entries
// already past their expiry are ignored.
func (c *CacheStore) Set(ctx context.Context, meta model.CacheMeta, payload []byte) error {
	ttl := time.Until(meta.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("redis cache marshal meta: %w", err)
	}

	err = c.cb.Execute(func() error {
		pipe := c.client.Pipeline()
		pipe.Set(ctx, keyPrefix+meta.Key, payload, ttl)
		pipe.Set(ctx, metaPrefix+meta.Key, metaJSON, ttl)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("redis cache set: %w", err)
	}
	return nil
}

// Meta returns the stored metadata for key, if present.
func (c *CacheStore) Meta(ctx context.Context, key string) (model.CacheMeta, bool, error) {
	var meta model.CacheMeta
	var found bool
	err := c.cb.Execute(func() error {
		data, err := c.client.Get(ctx, metaPrefix+key).Bytes()
		if err == goredis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return model.CacheMeta{}, false, fmt.Errorf("redis cache meta: %w", err)
	}
	return meta, found, nil
}

// Delete removes a single entry. Missing keys are not an error.
func (c *CacheStore) Delete(ctx context.Context, key string) error {
	err := c.cb.Execute(func() error {
		return c.client.Del(ctx, keyPrefix+key, metaPrefix+key).Err()
	})
	if err != nil {
		return fmt.Errorf("redis cache delete: %w", err)
	}
	return nil
}

// Purge is a no-op: Redis expires keys server-side.
func (c *CacheStore) Purge(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// Clear drops every cache entry, walking the keyspace with SCAN so large
// caches do not block the server.
func (c *CacheStore) Clear(ctx context.Context) error {
	err := c.cb.Execute(func() error {
		var cursor uint64
		for {
			keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if err := c.client.Del(ctx, keys...).Err(); err != nil {
					return err
				}
			}
			if next == 0 {
				return nil
			}
			cursor = next
		}
	})
	if err != nil {
		return fmt.Errorf("redis cache clear: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (c *CacheStore) Close() error {
	return c.client.Close()
}
