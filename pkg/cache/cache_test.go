package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCacheSetGet(t *testing.T) {
	c := NewLocalCache(time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "k", []byte("v"), 0)
	value, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	c.Delete(ctx, "k")
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestLocalCacheExpiry(t *testing.T) {
	c := NewLocalCache(time.Minute)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestGetOrLoad(t *testing.T) {
	c := NewLocalCache(time.Minute)
	ctx := context.Background()

	loads := 0
	loader := func() ([]byte, error) {
		loads++
		return []byte("loaded"), nil
	}

	value, err := GetOrLoad(ctx, c, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, []byte("loaded"), value)
	assert.Equal(t, 1, loads)

	// Second read comes from the cache
	value, err = GetOrLoad(ctx, c, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, []byte("loaded"), value)
	assert.Equal(t, 1, loads)
}

func TestGetOrLoadErrorNotCached(t *testing.T) {
	c := NewLocalCache(time.Minute)
	ctx := context.Background()

	boom := errors.New("load failed")
	_, err := GetOrLoad(ctx, c, "k", time.Minute, func() ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
