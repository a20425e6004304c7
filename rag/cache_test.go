package rag

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnhancementCacheLocal(t *testing.T) {
	t.Parallel()

	cache := NewEnhancementCache(time.Minute, nil, nil, zap.NewNop())
	key := cacheKey(RewriteQuery, "test-model", "hello")

	_, ok := cache.Get(context.Background(), key)
	assert.False(t, ok)

	cache.Set(context.Background(), key, "rewritten hello")

	got, ok := cache.Get(context.Background(), key)
	require.True(t, ok)
	assert.Equal(t, "rewritten hello", got)
}

func TestEnhancementCacheKeyIsolation(t *testing.T) {
	t.Parallel()

	// 不同模式与模型互不串扰
	a := cacheKey(RewriteQuery, "model-a", "hello")
	b := cacheKey(RewriteHyDE, "model-a", "hello")
	c := cacheKey(RewriteQuery, "model-b", "hello")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, b, c)
}

func TestEnhancementCacheRedisTier(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	first := NewEnhancementCache(time.Minute, rdb, nil, zap.NewNop())
	key := cacheKey(RewriteQuery, "test-model", "shared query")
	first.Set(context.Background(), key, "shared result")

	// 另一个实例通过 Redis 层命中
	second := NewEnhancementCache(time.Minute, rdb, nil, zap.NewNop())
	got, ok := second.Get(context.Background(), key)
	require.True(t, ok)
	assert.Equal(t, "shared result", got)
}

func TestEnhancementCacheRedisDown(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewEnhancementCache(time.Minute, rdb, nil, zap.NewNop())
	key := cacheKey(RewriteQuery, "test-model", "query")

	srv.Close()

	// Redis 故障静默降级:写入本地层后仍可命中
	cache.Set(context.Background(), key, "value")
	got, ok := cache.Get(context.Background(), key)
	require.True(t, ok)
	assert.Equal(t, "value", got)
}

func TestEnhancementCacheExpiry(t *testing.T) {
	t.Parallel()

	cache := NewEnhancementCache(time.Millisecond, nil, nil, zap.NewNop())
	key := cacheKey(RewriteQuery, "test-model", "expiring")
	cache.Set(context.Background(), key, "value")

	time.Sleep(5 * time.Millisecond)

	_, ok := cache.Get(context.Background(), key)
	assert.False(t, ok)
}
