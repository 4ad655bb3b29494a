package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented read cache in front of the metadata store. It is
// best-effort: a miss or backend failure just means the caller reloads.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

// GetOrLoad reads through the cache: on a miss the loader runs and its result
// is stored under key with the given TTL. Loader errors are never cached.
func GetOrLoad(ctx context.Context, c Cache, key string, ttl time.Duration, loader func() ([]byte, error)) ([]byte, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, nil
	}
	value, err := loader()
	if err != nil {
		return nil, err
	}
	c.Set(ctx, key, value, ttl)
	return value, nil
}
