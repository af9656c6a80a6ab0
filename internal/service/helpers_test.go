package service

import (
	"testing"

	"unify/internal/cache"
	"unify/internal/docstore"
	"unify/internal/models"
	"unify/internal/repository"
	"unify/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graph bundles a fault-injecting in-memory store with every repository.
type graph struct {
	store    *testutil.FaultyStore
	threads  repository.ThreadRepository
	comments repository.CommentRepository
	hubs     repository.HubRepository
	lists    repository.UserListRepository
	jobs     repository.CascadeJobRepository
}

func newGraph(t *testing.T) *graph {
	t.Helper()
	store := testutil.NewFaultyStore(docstore.NewMemoryStore())
	return &graph{
		store:    store,
		threads:  repository.NewThreadRepository(store),
		comments: repository.NewCommentRepository(store),
		hubs:     repository.NewHubRepository(store),
		lists:    repository.NewUserListRepository(store),
		jobs:     repository.NewCascadeJobRepository(store),
	}
}

func (g *graph) post(t *testing.T, id, category, author string, at int64) {
	t.Helper()
	testutil.PutPost(t, g.store, testutil.PostFixture(id, category, author, at))
}

func (g *graph) comment(t *testing.T, id, postID, author, parent string, at int64) {
	t.Helper()
	testutil.PutComment(t, g.store, testutil.CommentFixture(id, postID, author, parent, at))
}

func (g *graph) index() *SavedCartIndex {
	return NewSavedCartIndex(g.lists, g.threads, cache.NewMemorySetCache())
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeValidation), "expected VALIDATION_ERROR, got %v", err)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, models.IsCode(err, code), "expected %s, got %v", code, err)
}
