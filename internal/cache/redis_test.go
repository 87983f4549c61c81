package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benyonsports/docstore/internal/config"
)

func newRedisCache(t *testing.T) Cache {
	t.Helper()

	mr := miniredis.RunT(t)

	c, err := NewRedis(config.RedisConfig{
		Addr:      mr.Addr(),
		KeyPrefix: "test:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestRedisCacheSetGet(t *testing.T) {
	t.Parallel()

	c := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestRedisCacheMiss(t *testing.T) {
	t.Parallel()

	c := newRedisCache(t)

	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheDelete(t *testing.T) {
	t.Parallel()

	c := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheNonPositiveTTLStoresNothing(t *testing.T) {
	t.Parallel()

	c := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestNewRedisUnreachable(t *testing.T) {
	t.Parallel()

	_, err := NewRedis(config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()

		c, err := New(config.CacheConfig{Type: config.CacheTypeMemory, MaxEntries: 10})
		require.NoError(t, err)
		defer c.Close()
		assert.NotNil(t, c)
	})

	t.Run("default type is memory", func(t *testing.T) {
		t.Parallel()

		c, err := New(config.CacheConfig{})
		require.NoError(t, err)
		defer c.Close()
		assert.NotNil(t, c)
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()

		_, err := New(config.CacheConfig{Type: "memcached"})
		assert.Error(t, err)
	})
}
