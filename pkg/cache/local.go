package cache

import (
	"context"
	"sync"
	"time"
)

// LocalCache is an in-process cache over sync.Map with TTL expiry. Used when
// no Redis address is configured.
type LocalCache struct {
	data sync.Map
	ttl  time.Duration
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewLocalCache creates a local cache with the given default TTL and starts
// its cleanup loop.
func NewLocalCache(defaultTTL time.Duration) *LocalCache {
	c := &LocalCache{ttl: defaultTTL}
	go c.cleanupLoop()
	return c
}

func (c *LocalCache) Get(_ context.Context, key string) ([]byte, bool) {
	val, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}

	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.data.Delete(key)
		return nil, false
	}
	return entry.value, true
}

func (c *LocalCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.ttl
	}
	c.data.Store(key, &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
}

func (c *LocalCache) Delete(_ context.Context, keys ...string) {
	for _, key := range keys {
		c.data.Delete(key)
	}
}

func (c *LocalCache) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.data.Range(func(key, val interface{}) bool {
			if now.After(val.(*cacheEntry).expiresAt) {
				c.data.Delete(key)
			}
			return true
		})
	}
}
