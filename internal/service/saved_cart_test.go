package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"unify/internal/cache"
	"unify/internal/models"
	"unify/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCaches(t *testing.T) map[string]func() cache.IDSetCache {
	return map[string]func() cache.IDSetCache{
		"memory": func() cache.IDSetCache { return cache.NewMemorySetCache() },
		"redis": func() cache.IDSetCache {
			mr := miniredis.RunT(t)
			client := cache.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return cache.NewRedisSetCache(client, time.Hour)
		},
	}
}

func TestSavedCartIndex_HydratesTwelveSavedPosts(t *testing.T) {
	g := newGraph(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("p%02d", i)
		g.post(t, id, "Housing", "owner", int64(i))
		require.NoError(t, g.lists.Put(ctx, models.ListSaved, "U", id, int64(100+i)))
	}

	threads, err := g.index().Threads(ctx, models.ListSaved, "U")
	require.NoError(t, err)
	assert.Len(t, threads, 12)
	assert.Equal(t, 2, g.store.Calls(testutil.OpWhereIDIn))
}

func TestSavedCartIndex_ToggleRoundTrip(t *testing.T) {
	for name, newCache := range setCaches(t) {
		t.Run(name, func(t *testing.T) {
			g := newGraph(t)
			ctx := context.Background()
			require.NoError(t, g.lists.Put(ctx, models.ListCart, "U", "p1", 1))
			idx := NewSavedCartIndex(g.lists, g.threads, newCache())

			before, err := idx.IDs(ctx, models.ListCart, "U")
			require.NoError(t, err)
			assert.Equal(t, []string{"p1"}, before)

			added, err := idx.Toggle(ctx, models.ListCart, "U", "p2")
			require.NoError(t, err)
			assert.True(t, added)
			mid, err := idx.IDs(ctx, models.ListCart, "U")
			require.NoError(t, err)
			assert.Equal(t, []string{"p1", "p2"}, mid)

			added, err = idx.Toggle(ctx, models.ListCart, "U", "p2")
			require.NoError(t, err)
			assert.False(t, added)
			after, err := idx.IDs(ctx, models.ListCart, "U")
			require.NoError(t, err)
			assert.Equal(t, before, after)

			entries, err := g.lists.List(ctx, models.ListCart, "U")
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "p1", entries[0].PostID)
		})
	}
}

func TestSavedCartIndex_FailedWriteLeavesSetUnchanged(t *testing.T) {
	g := newGraph(t)
	ctx := context.Background()
	require.NoError(t, g.lists.Put(ctx, models.ListSaved, "U", "p1", 1))
	idx := g.index()
	require.NoError(t, idx.Hydrate(ctx, models.ListSaved, "U"))

	g.store.FailTimes(testutil.OpSet, "savedPosts", 1, nil)
	_, err := idx.Toggle(ctx, models.ListSaved, "U", "p2")
	assertCode(t, err, models.CodeBackingStore)

	g.store.FailTimes(testutil.OpDelete, "savedPosts", 1, nil)
	err = idx.Remove(ctx, models.ListSaved, "U", "p1")
	assertCode(t, err, models.CodeBackingStore)

	ids, err := idx.IDs(ctx, models.ListSaved, "U")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}

func TestSavedCartIndex_HydratesLazilyOnce(t *testing.T) {
	g := newGraph(t)
	ctx := context.Background()
	require.NoError(t, g.lists.Put(ctx, models.ListSaved, "U", "p1", 1))
	idx := g.index()

	ok, err := idx.Contains(ctx, models.ListSaved, "U", "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	lists := g.store.Calls(testutil.OpList)

	_, err = idx.IDs(ctx, models.ListSaved, "U")
	require.NoError(t, err)
	_, err = idx.IDs(ctx, models.ListCart, "U")
	require.NoError(t, err)
	assert.Equal(t, lists+1, g.store.Calls(testutil.OpList))
}

func TestSavedCartIndex_HydrationFailureSurfaces(t *testing.T) {
	g := newGraph(t)
	g.store.FailAlways(testutil.OpList, "savedPosts", nil)
	_, err := g.index().IDs(context.Background(), models.ListSaved, "U")
	assertCode(t, err, models.CodeBackingStore)
}

// flakyCache fails Add once, after the backing write already succeeded.
type flakyCache struct {
	*cache.MemorySetCache
	failAdd bool
}

func (c *flakyCache) Add(ctx context.Context, kind models.ListKind, uid, id string) error {
	if c.failAdd {
		c.failAdd = false
		return errors.New("cache down")
	}
	return c.MemorySetCache.Add(ctx, kind, uid, id)
}

func TestSavedCartIndex_CacheMissRehydrates(t *testing.T) {
	g := newGraph(t)
	ctx := context.Background()
	sets := &flakyCache{MemorySetCache: cache.NewMemorySetCache(), failAdd: true}
	idx := NewSavedCartIndex(g.lists, g.threads, sets)

	require.NoError(t, idx.Add(ctx, models.ListSaved, "U", "p9"))
	ids, err := idx.IDs(ctx, models.ListSaved, "U")
	require.NoError(t, err)
	assert.Equal(t, []string{"p9"}, ids)
}

func TestSavedCartIndex_Validation(t *testing.T) {
	idx := newGraph(t).index()
	ctx := context.Background()
	assertValidationError(t, idx.Add(ctx, models.ListKind("wish"), "U", "p1"))
	assertValidationError(t, idx.Add(ctx, models.ListSaved, " ", "p1"))
	assertValidationError(t, idx.Add(ctx, models.ListSaved, "U", ""))
}

func TestSavedCartIndex_Forget(t *testing.T) {
	g := newGraph(t)
	ctx := context.Background()
	idx := g.index()
	require.NoError(t, idx.Add(ctx, models.ListSaved, "U", "p1"))
	require.NoError(t, idx.Add(ctx, models.ListCart, "U", "p1"))

	require.NoError(t, idx.Forget(ctx, "U", "p1"))
	for _, kind := range []models.ListKind{models.ListSaved, models.ListCart} {
		ids, err := idx.IDs(ctx, kind, "U")
		require.NoError(t, err)
		assert.Empty(t, ids)
	}
}
