// Package countcache caches referral counts for the progress query surface.
package countcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	id "refhub/pkg/domain"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refhub_referral_count_cache_hits_total",
		Help: "Total referral count cache hits",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refhub_referral_count_cache_misses_total",
		Help: "Total referral count cache misses",
	})
)

const (
	// Redis key prefix for cached referral counts
	countKeyPrefix = "referral:count:"

	defaultTTL = 5 * time.Minute
)

// RedisCache is a Redis-backed referral count cache. Counts are invalidated on
// successful attribution, so the TTL only bounds staleness after missed
// invalidations.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Option configures a RedisCache instance.
type Option func(*RedisCache)

// WithTTL overrides the default cache entry TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewRedis constructs a Redis-backed count cache.
func NewRedis(client *redis.Client, opts ...Option) *RedisCache {
	cache := &RedisCache{client: client, ttl: defaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}
	return cache
}

// GetCount returns the cached count and whether the key was present.
func (c *RedisCache) GetCount(ctx context.Context, userID id.UserID) (int, bool, error) {
	raw, err := c.client.Get(ctx, countKeyPrefix+userID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			cacheMisses.Inc()
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get cached count: %w", err)
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		// Corrupt entry: treat as a miss so the store repopulates it.
		cacheMisses.Inc()
		return 0, false, nil
	}
	cacheHits.Inc()
	return count, true, nil
}

func (c *RedisCache) SetCount(ctx context.Context, userID id.UserID, count int) error {
	if err := c.client.Set(ctx, countKeyPrefix+userID.String(), count, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached count: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, userID id.UserID) error {
	if err := c.client.Del(ctx, countKeyPrefix+userID.String()).Err(); err != nil {
		return fmt.Errorf("invalidate cached count: %w", err)
	}
	return nil
}
