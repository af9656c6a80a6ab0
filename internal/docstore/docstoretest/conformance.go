// Package docstoretest holds a behaviour suite every docstore backend must pass.
package docstoretest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"unify/internal/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) docstore.Store

// Run exercises the docstore.Store contract against newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), docstore.Collection("posts").Doc("nope"))
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("set then get round trips fields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ref := docstore.Collection("posts").Doc("p1")
		require.NoError(t, s.Set(ctx, ref, docstore.Data{
			"title":     "Lease",
			"createdAt": int64(1700000000123),
			"anon":      true,
			"tags":      []any{"a", "b"},
		}))

		snap, err := s.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, "p1", snap.ID())
		assert.Equal(t, "Lease", snap.Data["title"])
		assert.True(t, docstore.Equal(snap.Data["createdAt"], int64(1700000000123)))
		assert.Equal(t, true, snap.Data["anon"])

		var decoded struct {
			CreatedAt int64    `json:"createdAt"`
			Tags      []string `json:"tags"`
		}
		require.NoError(t, snap.DataTo(&decoded))
		assert.Equal(t, int64(1700000000123), decoded.CreatedAt)
		assert.Equal(t, []string{"a", "b"}, decoded.Tags)
	})

	t.Run("long string fields round trip and stay queryable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		posts := docstore.Collection("posts")
		long := strings.Repeat("x", 6000)
		require.NoError(t, s.Set(ctx, posts.Doc("p1"), docstore.Data{"body": long, "title": "t"}))
		require.NoError(t, s.Set(ctx, posts.Doc("p2"), docstore.Data{"body": long[:5999], "title": "t"}))

		snap, err := s.Get(ctx, posts.Doc("p1"))
		require.NoError(t, err)
		assert.Equal(t, long, snap.Data["body"])

		got, err := s.Where(ctx, posts, "body", long)
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, ids(got))
	})

	t.Run("set replaces the whole document", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ref := docstore.Collection("hubs").Doc("h1")
		require.NoError(t, s.Set(ctx, ref, docstore.Data{"name": "A", "old": "x"}))
		require.NoError(t, s.Set(ctx, ref, docstore.Data{"name": "B"}))

		snap, err := s.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, "B", snap.Data["name"])
		assert.NotContains(t, snap.Data, "old")

		byOld, err := s.Where(ctx, docstore.Collection("hubs"), "old", "x")
		require.NoError(t, err)
		assert.Empty(t, byOld)
	})

	t.Run("where matches equality only within the collection", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		posts := docstore.Collection("posts")
		require.NoError(t, s.Set(ctx, posts.Doc("a"), docstore.Data{"category": "HOUSING"}))
		require.NoError(t, s.Set(ctx, posts.Doc("b"), docstore.Data{"category": "housing"}))
		require.NoError(t, s.Set(ctx, posts.Doc("c"), docstore.Data{"category": "HOUSING"}))
		require.NoError(t, s.Set(ctx, docstore.Collection("other").Doc("d"), docstore.Data{"category": "HOUSING"}))

		got, err := s.Where(ctx, posts, "category", "HOUSING")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "c"}, ids(got))

		none, err := s.Where(ctx, posts, "category", "GARDEN")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("where compares numbers across representations", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		col := docstore.Collection("nums")
		require.NoError(t, s.Set(ctx, col.Doc("x"), docstore.Data{"n": 3}))
		got, err := s.Where(ctx, col, "n", float64(3))
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, ids(got))
	})

	t.Run("where id in enforces the limit and skips missing ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		posts := docstore.Collection("posts")
		for i := 0; i < 12; i++ {
			require.NoError(t, s.Set(ctx, posts.Doc(fmt.Sprintf("p%02d", i)), docstore.Data{"i": i}))
		}

		got, err := s.WhereIDIn(ctx, posts, []string{"p00", "p05", "missing"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"p00", "p05"}, ids(got))

		all := make([]string, 0, 12)
		for i := 0; i < 12; i++ {
			all = append(all, fmt.Sprintf("p%02d", i))
		}
		_, err = s.WhereIDIn(ctx, posts, all)
		assert.ErrorIs(t, err, docstore.ErrTooManyIDs)

		empty, err := s.WhereIDIn(ctx, posts, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("subcollections are scoped and survive parent deletion", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		post := docstore.Collection("posts").Doc("p1")
		other := docstore.Collection("posts").Doc("p2")
		require.NoError(t, s.Set(ctx, post, docstore.Data{"title": "t"}))
		require.NoError(t, s.Set(ctx, post.Collection("comments").Doc("c1"), docstore.Data{"authorId": "u1"}))
		require.NoError(t, s.Set(ctx, other.Collection("comments").Doc("c2"), docstore.Data{"authorId": "u1"}))

		list, err := s.List(ctx, post.Collection("comments"))
		require.NoError(t, err)
		assert.Equal(t, []string{"c1"}, ids(list))

		require.NoError(t, s.Delete(ctx, post))
		list, err = s.List(ctx, post.Collection("comments"))
		require.NoError(t, err)
		assert.Equal(t, []string{"c1"}, ids(list))
	})

	t.Run("collection group spans parents", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		posts := docstore.Collection("posts")
		require.NoError(t, s.Set(ctx, posts.Doc("p1").Collection("comments").Doc("c1"), docstore.Data{"authorId": "u1"}))
		require.NoError(t, s.Set(ctx, posts.Doc("p2").Collection("comments").Doc("c2"), docstore.Data{"authorId": "u1"}))
		require.NoError(t, s.Set(ctx, posts.Doc("p2").Collection("comments").Doc("c3"), docstore.Data{"authorId": "u2"}))
		require.NoError(t, s.Set(ctx, docstore.Collection("users").Doc("u1").Collection("cart").Doc("c9"), docstore.Data{"authorId": "u1"}))

		got, err := s.CollectionGroup(ctx, "comments", "authorId", "u1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"c1", "c2"}, ids(got))
		for _, snap := range got {
			parent, ok := snap.Ref.Parent().Parent()
			require.True(t, ok)
			assert.Contains(t, []string{"p1", "p2"}, parent.ID())
		}
	})

	t.Run("batch commits every op", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		post := docstore.Collection("posts").Doc("p1")
		comments := post.Collection("comments")
		require.NoError(t, s.Set(ctx, post, docstore.Data{"title": "t"}))
		require.NoError(t, s.Set(ctx, comments.Doc("c1"), docstore.Data{"text": "a"}))
		require.NoError(t, s.Set(ctx, comments.Doc("c2"), docstore.Data{"text": "b"}))

		b := s.Batch()
		b.Delete(comments.Doc("c1")).Delete(comments.Doc("c2")).Delete(post)
		b.Set(docstore.Collection("audit").Doc("a1"), docstore.Data{"post": "p1"})
		assert.Equal(t, 4, b.Len())
		require.NoError(t, b.Commit(ctx))

		left, err := s.List(ctx, comments)
		require.NoError(t, err)
		assert.Empty(t, left)
		_, err = s.Get(ctx, post)
		assert.ErrorIs(t, err, docstore.ErrNotFound)
		_, err = s.Get(ctx, docstore.Collection("audit").Doc("a1"))
		assert.NoError(t, err)
	})

	t.Run("batch with an invalid ref applies nothing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ref := docstore.Collection("posts").Doc("p1")
		require.NoError(t, s.Set(ctx, ref, docstore.Data{"title": "t"}))

		err := s.Batch().Delete(ref).Delete(docstore.Collection("posts").Doc("")).Commit(ctx)
		assert.Error(t, err)

		_, err = s.Get(ctx, ref)
		assert.NoError(t, err)
	})

	t.Run("deleting a missing document is not an error", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Delete(context.Background(), docstore.Collection("posts").Doc("ghost")))
	})
}

func ids(snaps []docstore.Snapshot) []string {
	out := make([]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.ID())
	}
	return out
}
