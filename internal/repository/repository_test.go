package repository

import (
	"context"
	"fmt"
	"testing"

	"unify/internal/docstore"
	"unify/internal/models"
	"unify/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadRepository_FetchByIDsChunksAndPreservesOrder(t *testing.T) {
	store := testutil.NewFaultyStore(docstore.NewMemoryStore())
	repo := NewThreadRepository(store)

	ids := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("p%02d", i)
		ids = append(ids, id)
		testutil.PutPost(t, store, testutil.PostFixture(id, "Housing", "u1", int64(i)))
	}
	// reverse order with a duplicate and a missing id
	query := []string{"missing"}
	for i := len(ids) - 1; i >= 0; i-- {
		query = append(query, ids[i])
	}
	query = append(query, ids[3])

	threads, err := repo.FetchByIDs(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, threads, 12)
	assert.Equal(t, "p11", threads[0].ID)
	assert.Equal(t, "p00", threads[11].ID)
	assert.Equal(t, 2, store.Calls(testutil.OpWhereIDIn))
}

func TestThreadRepository_FetchByIDsEmpty(t *testing.T) {
	repo := NewThreadRepository(docstore.NewMemoryStore())
	threads, err := repo.FetchByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, threads)
	assert.Empty(t, threads)
}

func TestThreadRepository_FetchByCategoryIsCaseInsensitive(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewThreadRepository(store)
	testutil.PutPost(t, store, testutil.PostFixture("a", "Housing", "u1", 10))
	testutil.PutPost(t, store, testutil.PostFixture("b", "HOUSING", "u2", 20))
	testutil.PutPost(t, store, testutil.PostFixture("c", "Housing Market", "u2", 30))

	threads, err := repo.FetchByCategory(context.Background(), "housing")
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "b", threads[0].ID)
	assert.Equal(t, "a", threads[1].ID)

	none, err := repo.FetchByCategory(context.Background(), "hous")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestThreadRepository_FetchByAuthorProjectsAnonymous(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewThreadRepository(store)
	anon := testutil.PostFixture("a", "Housing", "u1", 10)
	anon.IsAnonymous = true
	anon.AuthorUsername = nil
	testutil.PutPost(t, store, anon)
	testutil.PutPost(t, store, testutil.PostFixture("b", "Housing", "u1", 20))
	testutil.PutPost(t, store, testutil.PostFixture("c", "Housing", "u2", 30))

	threads, err := repo.FetchByAuthor(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "b", threads[0].ID)
	assert.Equal(t, "user-u1", threads[0].AuthorName)
	assert.Equal(t, models.AnonymousDisplayName, threads[1].AuthorName)
}

func TestThreadRepository_BackingStoreFailure(t *testing.T) {
	store := testutil.NewFaultyStore(docstore.NewMemoryStore())
	store.FailAlways(testutil.OpWhere, "posts", nil)
	store.FailAlways(testutil.OpList, "posts", nil)
	repo := NewThreadRepository(store)

	_, err := repo.FetchByAuthor(context.Background(), "u1")
	assert.True(t, models.IsCode(err, models.CodeBackingStore))
	assert.ErrorIs(t, err, testutil.ErrInjected)

	_, err = repo.FetchByCategory(context.Background(), "x")
	assert.True(t, models.IsCode(err, models.CodeBackingStore))
}

func TestThreadRepository_GetPostNotFound(t *testing.T) {
	repo := NewThreadRepository(docstore.NewMemoryStore())
	_, err := repo.GetPost(context.Background(), "nope")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestThreadRepository_DeleteWithComments(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewThreadRepository(store)
	testutil.PutPost(t, store, testutil.PostFixture("a", "Housing", "u1", 10))
	testutil.PutComment(t, store, testutil.CommentFixture("c1", "a", "u2", "", 11))
	testutil.PutComment(t, store, testutil.CommentFixture("c2", "a", "u3", "c1", 12))

	require.NoError(t, repo.DeleteWithComments(context.Background(), "a", []string{"c1", "c2"}))
	assert.Equal(t, 0, testutil.CountComments(t, store, "a"))
	_, err := repo.GetPost(context.Background(), "a")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestThreadRepository_DeleteWithCommentsFailureKeepsEverything(t *testing.T) {
	store := testutil.NewFaultyStore(docstore.NewMemoryStore())
	repo := NewThreadRepository(store)
	testutil.PutPost(t, store, testutil.PostFixture("a", "Housing", "u1", 10))
	testutil.PutComment(t, store, testutil.CommentFixture("c1", "a", "u2", "", 11))
	store.FailTimes(testutil.OpCommit, "posts/a", 1, nil)

	err := repo.DeleteWithComments(context.Background(), "a", []string{"c1"})
	assert.True(t, models.IsCode(err, models.CodeBackingStore))
	assert.Equal(t, 1, testutil.CountComments(t, store, "a"))
}

func TestCommentRepository_ListByPostAndAuthor(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewCommentRepository(store)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testutil.CommentFixture("c2", "a", "u1", "", 20)))
	require.NoError(t, repo.Create(ctx, testutil.CommentFixture("c1", "a", "u2", "", 10)))
	require.NoError(t, repo.Create(ctx, testutil.CommentFixture("c3", "b", "u1", "", 5)))

	byPost, err := repo.ListByPost(ctx, "a")
	require.NoError(t, err)
	require.Len(t, byPost, 2)
	assert.Equal(t, "c1", byPost[0].ID)
	assert.Equal(t, "c2", byPost[1].ID)

	byAuthor, err := repo.ListByAuthor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, byAuthor, 2)
	assert.Equal(t, "c3", byAuthor[0].ID)
	assert.Equal(t, "b", byAuthor[0].PostID)
	assert.Equal(t, "a", byAuthor[1].PostID)
}

func TestCommentRepository_PostIDFromPath(t *testing.T) {
	store := docstore.NewMemoryStore()
	ref := docstore.Collection(PostsCollection).Doc("legacy").Collection(CommentsSubcollection).Doc("c1")
	require.NoError(t, store.Set(context.Background(), ref, docstore.Data{"text": "hi", "authorId": "u1", "createdAt": 1}))

	got, err := NewCommentRepository(store).ListByPost(context.Background(), "legacy")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "legacy", got[0].PostID)
	assert.Equal(t, "c1", got[0].ID)
	assert.True(t, got[0].IsTopLevel())
}

func TestHubRepository(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewHubRepository(store)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Hub{ID: "h1", Name: "Housing", NameLowercase: "housing", CreatorID: "u1"}))
	require.NoError(t, repo.Create(ctx, &models.Hub{ID: "h2", Name: "Books", NameLowercase: "books", CreatorID: "u2"}))

	found, err := repo.FindByKey(ctx, "housing")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "h1", found[0].ID)

	mine, err := repo.ListByCreator(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Books", mine[0].Name)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "books", all[0].NameLowercase)

	require.NoError(t, repo.Delete(ctx, "h1"))
	_, err = repo.Get(ctx, "h1")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserListRepository_TimestampFieldPerKind(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewUserListRepository(store)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, models.ListSaved, "u1", "p1", 100))
	require.NoError(t, repo.Put(ctx, models.ListCart, "u1", "p2", 200))

	snap, err := store.Get(ctx, docstore.Collection("users").Doc("u1").Collection("savedPosts").Doc("p1"))
	require.NoError(t, err)
	assert.Contains(t, snap.Data, "savedAt")

	saved, err := repo.List(ctx, models.ListSaved, "u1")
	require.NoError(t, err)
	assert.Equal(t, []models.ListEntry{{PostID: "p1", AddedAt: 100}}, saved)

	cart, err := repo.List(ctx, models.ListCart, "u1")
	require.NoError(t, err)
	assert.Equal(t, []models.ListEntry{{PostID: "p2", AddedAt: 200}}, cart)

	require.NoError(t, repo.Remove(ctx, models.ListCart, "u1", "p2"))
	cart, err = repo.List(ctx, models.ListCart, "u1")
	require.NoError(t, err)
	assert.Empty(t, cart)
}

func TestCascadeJobRepository_ListUnfinished(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewCascadeJobRepository(store)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.CascadeJob{HubID: "h1", State: models.CascadeCascading, Pending: []string{"a"}, CreatedAt: 2}))
	require.NoError(t, repo.Save(ctx, &models.CascadeJob{HubID: "h2", State: models.CascadeCompleted, CreatedAt: 1}))
	require.NoError(t, repo.Save(ctx, &models.CascadeJob{HubID: "h3", State: models.CascadeListing, CreatedAt: 1}))

	jobs, err := repo.ListUnfinished(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "h3", jobs[0].HubID)
	assert.Equal(t, []string{"a"}, jobs[1].Pending)

	got, err := repo.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, models.CascadeCascading, got.State)
}
