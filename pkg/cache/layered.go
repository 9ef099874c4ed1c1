package cache

import (
	"context"
	"time"
)

// LayeredCache reads through a local memory cache (L1) in front of Redis (L2)
// and writes through to both.
type LayeredCache struct {
	local  *MemoryCache
	remote Service
	memTTL time.Duration
}

// LayeredOption configures LayeredCache.
type LayeredOption func(*layeredConfig)

type layeredConfig struct {
	memorySize int
	memoryTTL  time.Duration
}

// WithLayeredMemorySize bounds the L1 entries.
func WithLayeredMemorySize(size int) LayeredOption {
	return func(c *layeredConfig) { c.memorySize = size }
}

// WithLayeredMemoryTTL caps how long L1 serves a value without consulting L2.
func WithLayeredMemoryTTL(ttl time.Duration) LayeredOption {
	return func(c *layeredConfig) {
		if ttl > 0 {
			c.memoryTTL = ttl
		}
	}
}

// NewLayeredCache puts a memory cache in front of remote.
func NewLayeredCache(remote Service, opts ...LayeredOption) *LayeredCache {
	cfg := layeredConfig{memorySize: defaultMemorySize, memoryTTL: time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LayeredCache{
		local:  NewMemoryCache(WithMemoryMaxSize(cfg.memorySize)),
		remote: remote,
		memTTL: cfg.memoryTTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.remote.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	return lc.local.Set(ctx, key, value, lc.localTTL(expiration))
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.local.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := lc.remote.Get(ctx, key, dest); err != nil {
		return err
	}
	if s, ok := dest.(*string); ok {
		return lc.local.Set(ctx, key, *s, lc.memTTL)
	}
	return lc.local.Set(ctx, key, dest, lc.memTTL)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	if ok, _ := lc.local.Exists(ctx, keys...); ok {
		return true, nil
	}
	return lc.remote.Exists(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = lc.local.DeleteByPattern(ctx, pattern)
	return lc.remote.DeleteByPattern(ctx, pattern)
}

func (lc *LayeredCache) Close() error {
	_ = lc.local.Close()
	return lc.remote.Close()
}

func (lc *LayeredCache) localTTL(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.memTTL {
		return expiration
	}
	return lc.memTTL
}
