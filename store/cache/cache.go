// Package cache holds the in-memory caches of the ledger: a generic TTL
// cache, the tiered lookup cache used by the stats collector and the
// month-keyed attendance cache.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config configures a Cache.
type Config struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
	MaxItems        int
	// OnEviction is called with the key and value of every expired or
	// evicted item.
	OnEviction func(key string, value any)
}

type item struct {
	value     any
	expiresAt time.Time
}

// Cache is a concurrency-safe key/value cache with per-item TTL.
type Cache struct {
	config Config
	data   sync.Map
	size   atomic.Int64

	stop      chan struct{}
	closeOnce sync.Once
}

// New creates a cache and starts its cleanup loop when CleanupInterval > 0.
func New(config Config) *Cache {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 1000
	}

	c := &Cache{
		config: config,
		stop:   make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.cleanupLoop(config.CleanupInterval)
	}
	return c
}

// Get returns the value of key if present and not expired.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	v, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}
	it := v.(*item)
	if time.Now().After(it.expiresAt) {
		c.remove(key, it)
		return nil, false
	}
	return it.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL stores value under key for ttl.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}
	if _, loaded := c.data.Swap(key, &item{value: value, expiresAt: time.Now().Add(ttl)}); !loaded {
		c.size.Add(1)
	}
	if c.size.Load() > int64(c.config.MaxItems) {
		c.evictOne(key)
	}
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) {
	if _, loaded := c.data.LoadAndDelete(key); loaded {
		c.size.Add(-1)
	}
}

// Clear removes every item.
func (c *Cache) Clear(_ context.Context) {
	c.data.Range(func(key, _ any) bool {
		if _, loaded := c.data.LoadAndDelete(key); loaded {
			c.size.Add(-1)
		}
		return true
	})
}

// Size returns the number of stored items, expired ones included until they
// are cleaned up.
func (c *Cache) Size() int64 {
	return c.size.Load()
}

// Close stops the cleanup loop.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) cleanupExpired() {
	now := time.Now()
	c.data.Range(func(key, value any) bool {
		if it := value.(*item); now.After(it.expiresAt) {
			c.remove(key.(string), it)
		}
		return true
	})
}

// evictOne drops the item closest to expiry, never the key just written.
func (c *Cache) evictOne(keep string) {
	var (
		victim   string
		victimAt time.Time
	)
	c.data.Range(func(key, value any) bool {
		k := key.(string)
		if k == keep {
			return true
		}
		if it := value.(*item); victim == "" || it.expiresAt.Before(victimAt) {
			victim, victimAt = k, it.expiresAt
		}
		return true
	})
	if victim == "" {
		return
	}
	if v, ok := c.data.Load(victim); ok {
		c.remove(victim, v.(*item))
	}
}

func (c *Cache) remove(key string, it *item) {
	if c.data.CompareAndDelete(key, it) {
		c.size.Add(-1)
		if c.config.OnEviction != nil {
			c.config.OnEviction(key, it.value)
		}
	}
}
