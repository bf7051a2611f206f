package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MorseWayne/storefront/internal/config"
)

var testRedis = config.RedisConfig{Host: "localhost", Port: 6379, DB: 1}

// newTestRedis 需要本地 Redis，连接失败时跳过
func newTestRedis(t *testing.T) *RedisCache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis test in short mode")
	}
	c, err := NewRedisCache(testRedis, fmt.Sprintf("test-%d:", time.Now().UnixNano()))
	if err != nil {
		t.Skipf("skipping Redis test, cannot connect: %v", err)
	}
	t.Cleanup(func() {
		_, _ = c.Purge(context.Background())
		_ = c.Close()
	})
	return c
}

func TestRedisCache_Basic(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()

	type product struct {
		Title string `json:"title"`
	}
	require.NoError(t, c.Set(ctx, "product:1", product{Title: "shirt"}, time.Minute))

	var got product
	require.NoError(t, c.Get(ctx, "product:1", &got))
	assert.Equal(t, "shirt", got.Title)

	// 实际键带前缀
	n, err := c.Client().Exists(ctx, c.prefix+"product:1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var v string
	assert.ErrorIs(t, c.Get(ctx, "absent", &v), ErrCacheMiss)
}

func TestRedisCache_Purge(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), i, time.Minute))
	}
	removed, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, removed)

	bare := &RedisCache{client: c.client}
	_, err = bare.Purge(ctx)
	assert.Error(t, err)
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "storefront:", KeyPrefix(""))
	assert.Equal(t, "shop:", KeyPrefix("shop"))
}

func TestCache_Compatibility(t *testing.T) {
	caches := map[string]Cache{"memory": NewMemoryCache()}
	if !testing.Short() {
		if rc, err := NewRedisCache(testRedis, "compat:"); err == nil {
			t.Cleanup(func() {
				_, _ = rc.Purge(context.Background())
				_ = rc.Close()
			})
			caches["redis"] = rc
		}
	}

	for name, c := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := c.SetNX(ctx, "idem", "first", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = c.SetNX(ctx, "idem", "second", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			var v string
			require.NoError(t, c.Get(ctx, "idem", &v))
			assert.Equal(t, "first", v)

			require.NoError(t, c.Del(ctx, "idem"))
			exists, err := c.Exists(ctx, "idem")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))

	now = now.Add(59 * time.Second)
	ok, _ := c.Exists(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	var v int
	assert.True(t, errors.Is(c.Get(ctx, "k", &v), ErrCacheMiss))
}

func TestNullCache(t *testing.T) {
	c := NewNullCache()
	var v string
	assert.ErrorIs(t, c.Get(context.Background(), "k", &v), ErrCacheMiss)

	ok, err := c.SetNX(context.Background(), "k", "v", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
