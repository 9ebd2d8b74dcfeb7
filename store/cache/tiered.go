package cache

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// TieredCache fronts a slow source (L2: the academic-data service) with an
// in-memory L1 cache.
//
// DEFAULT BEHAVIOR:
//   - L1 memory cache enabled (1000 items, 5min TTL)
//   - concurrent misses on one key share a single source fetch
type TieredCache struct {
	l1        *Cache
	l1Enabled bool
	group     singleflight.Group
}

// Fetcher loads the value of key from the source.
type Fetcher func(ctx context.Context, key string) (any, error)

// TieredCacheConfig holds the configuration for the tiered cache.
type TieredCacheConfig struct {
	L1MaxItems int           // Max items in L1 memory cache
	L1TTL      time.Duration // TTL for L1 cache entries
	EnableL1   bool          // Enable L1 memory cache (default: true)
}

// DefaultTieredConfig returns the default tiered cache configuration.
func DefaultTieredConfig() *TieredCacheConfig {
	return &TieredCacheConfig{
		L1MaxItems: 1000,
		L1TTL:      5 * time.Minute,
		EnableL1:   true,
	}
}

// NewTieredCache creates a new tiered cache.
func NewTieredCache(config *TieredCacheConfig) *TieredCache {
	if config == nil {
		config = DefaultTieredConfig()
	}

	tc := &TieredCache{l1Enabled: config.EnableL1}
	if config.EnableL1 {
		tc.l1 = New(Config{
			DefaultTTL:      config.L1TTL,
			CleanupInterval: 1 * time.Minute,
			MaxItems:        config.L1MaxItems,
		})
	}
	return tc
}

// Fetch retrieves a value from L1, falling back to fetcher and storing its
// result. A nil fetcher on a miss yields (nil, nil).
func (t *TieredCache) Fetch(ctx context.Context, key string, fetcher Fetcher) (any, error) {
	if t.l1Enabled && t.l1 != nil {
		if value, found := t.l1.Get(ctx, key); found {
			return value, nil
		}
	}
	if fetcher == nil {
		return nil, nil
	}

	value, err, _ := t.group.Do(key, func() (any, error) {
		value, err := fetcher(ctx, key)
		if err != nil {
			return nil, err
		}
		t.Set(ctx, key, value)
		return value, nil
	})
	return value, err
}

// Set stores a value in L1.
func (t *TieredCache) Set(ctx context.Context, key string, value any) {
	if t.l1Enabled && t.l1 != nil {
		t.l1.Set(ctx, key, value)
	}
}

// Delete removes a value from L1.
func (t *TieredCache) Delete(ctx context.Context, key string) {
	if t.l1Enabled && t.l1 != nil {
		t.l1.Delete(ctx, key)
	}
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed.
func (t *TieredCache) DeletePrefix(ctx context.Context, prefix string) int {
	if !t.l1Enabled || t.l1 == nil {
		return 0
	}
	count := 0
	t.l1.data.Range(func(key, _ any) bool {
		if k := key.(string); strings.HasPrefix(k, prefix) {
			t.l1.Delete(ctx, k)
			count++
		}
		return true
	})
	return count
}

// Clear drops every cached value.
func (t *TieredCache) Clear(ctx context.Context) {
	if t.l1Enabled && t.l1 != nil {
		t.l1.Clear(ctx)
	}
}

// Close stops the L1 cleanup loop.
func (t *TieredCache) Close() error {
	if t.l1 != nil {
		return t.l1.Close()
	}
	return nil
}
