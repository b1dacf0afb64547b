package cache

import (
	"context"
	"errors"
	"time"

	"qeval/internal/config"
)

// ErrMiss is returned when a key is absent or expired
var ErrMiss = errors.New("cache: miss")

// Cache is a shared TTL cache for price-history windows. Both implementations
// round-trip values through JSON so cached data behaves identically whether it
// came from Redis or process memory.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// New creates a cache instance based on configuration: Redis when enabled,
// in-process memory otherwise
func New(cfg *config.RedisConfig) (Cache, error) {
	if cfg != nil && cfg.Enabled {
		return NewRedisCache(cfg)
	}
	return NewMemoryCache(0), nil
}
