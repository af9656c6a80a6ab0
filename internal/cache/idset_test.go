package cache

import (
	"context"
	"testing"
	"time"

	"unify/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisSetCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSetCache(client, ttl), mr
}

func exerciseIDSetCache(t *testing.T, c IDSetCache) {
	ctx := context.Background()

	hydrated, err := c.Hydrated(ctx, models.ListSaved, "u1")
	require.NoError(t, err)
	assert.False(t, hydrated)

	require.NoError(t, c.Replace(ctx, models.ListSaved, "u1", []string{"p2", "p1"}))
	hydrated, err = c.Hydrated(ctx, models.ListSaved, "u1")
	require.NoError(t, err)
	assert.True(t, hydrated)

	ids, err := c.Members(ctx, models.ListSaved, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)

	require.NoError(t, c.Add(ctx, models.ListSaved, "u1", "p3"))
	require.NoError(t, c.Remove(ctx, models.ListSaved, "u1", "p1"))
	ok, err := c.Contains(ctx, models.ListSaved, "u1", "p3")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.Contains(ctx, models.ListSaved, "u1", "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	cart, err := c.Members(ctx, models.ListCart, "u1")
	require.NoError(t, err)
	assert.Empty(t, cart, "lists are independent")

	require.NoError(t, c.Replace(ctx, models.ListCart, "u2", nil))
	hydrated, err = c.Hydrated(ctx, models.ListCart, "u2")
	require.NoError(t, err)
	assert.True(t, hydrated, "an empty set can be hydrated")

	require.NoError(t, c.Invalidate(ctx, models.ListSaved, "u1"))
	hydrated, err = c.Hydrated(ctx, models.ListSaved, "u1")
	require.NoError(t, err)
	assert.False(t, hydrated)
}

func TestMemorySetCache(t *testing.T) {
	t.Parallel()
	exerciseIDSetCache(t, NewMemorySetCache())
}

func TestRedisSetCache(t *testing.T) {
	t.Parallel()
	c, _ := newRedisCache(t, 0)
	exerciseIDSetCache(t, c)
}

func TestRedisSetCache_HydrationExpires(t *testing.T) {
	t.Parallel()

	c, mr := newRedisCache(t, 10*time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Replace(ctx, models.ListCart, "u1", []string{"p1"}))
	assert.True(t, mr.Exists(SetKey(models.ListCart, "u1")))

	mr.FastForward(11 * time.Minute)
	hydrated, err := c.Hydrated(ctx, models.ListCart, "u1")
	require.NoError(t, err)
	assert.False(t, hydrated)
}

func TestRedisSetCache_SurfacesErrors(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedisSetCache(client, 0)
	mr.Close()

	_, err = c.Hydrated(context.Background(), models.ListSaved, "u1")
	assert.Error(t, err)
}

func TestInitRedis(t *testing.T) {
	InitRedis("")
	assert.Nil(t, GetClient())

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	InitRedis(mr.Addr())
	require.NotNil(t, GetClient())
	assert.NoError(t, GetClient().Ping(context.Background()).Err())

	InitRedis("redis://" + mr.Addr() + "/0")
	assert.NotNil(t, GetClient())

	InitRedis("redis://%%bad")
	assert.Nil(t, GetClient())
}
