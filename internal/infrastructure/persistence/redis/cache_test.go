package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetMiss(t *testing.T) {
	cache, _ := newTestCache(t)
	var v int
	err := cache.Get(context.Background(), "missing", &v)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_EmptyKey(t *testing.T) {
	cache, _ := newTestCache(t)
	assert.ErrorIs(t, cache.Set(context.Background(), "", 1, time.Second), ErrCacheKeyEmpty)
}

func TestCache_DeleteByPattern(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	for _, k := range []string{"p:1", "p:2", "q:1"} {
		require.NoError(t, cache.Set(ctx, k, k, time.Minute))
	}

	n, err := cache.DeleteByPattern(ctx, "p:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var v string
	require.NoError(t, cache.Get(ctx, "q:1", &v))
	assert.Equal(t, "q:1", v)
}

func TestConfig_Addr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "cache"
	cfg.Port = 6380
	assert.Equal(t, "cache:6380", cfg.Addr())
}
