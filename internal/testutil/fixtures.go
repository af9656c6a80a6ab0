package testutil

import (
	"context"
	"fmt"
	"testing"

	"unify/internal/docstore"
	"unify/internal/models"

	"github.com/stretchr/testify/require"
)

// PostFixture builds a post with sensible defaults.
func PostFixture(id, category, author string, createdAt int64) *models.Post {
	name := "user-" + author
	return &models.Post{
		ID:             id,
		Title:          "Thread " + id,
		Body:           "Body of " + id,
		Category:       category,
		AuthorID:       author,
		AuthorUsername: &name,
		CreatedAt:      createdAt,
	}
}

// CommentFixture builds a comment. An empty parent makes it top-level.
func CommentFixture(id, postID, author, parent string, createdAt int64) *models.Comment {
	c := &models.Comment{
		ID:        id,
		PostID:    postID,
		Text:      fmt.Sprintf("comment %s by %s", id, author),
		AuthorID:  author,
		CreatedAt: createdAt,
	}
	if parent != "" {
		c.ParentCommentID = &parent
	}
	return c
}

// PutPost writes p to posts/{id}.
func PutPost(t *testing.T, store docstore.Store, p *models.Post) {
	t.Helper()
	data, err := docstore.Encode(p)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), docstore.Collection("posts").Doc(p.ID), data))
}

// PutComment writes c under its post's comments subcollection.
func PutComment(t *testing.T, store docstore.Store, c *models.Comment) {
	t.Helper()
	data, err := docstore.Encode(c)
	require.NoError(t, err)
	ref := docstore.Collection("posts").Doc(c.PostID).Collection("comments").Doc(c.ID)
	require.NoError(t, store.Set(context.Background(), ref, data))
}

// PutHub writes h to hubs/{id}.
func PutHub(t *testing.T, store docstore.Store, h *models.Hub) {
	t.Helper()
	data, err := docstore.Encode(h)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), docstore.Collection("hubs").Doc(h.ID), data))
}

// CountComments returns how many comments remain under postID.
func CountComments(t *testing.T, store docstore.Store, postID string) int {
	t.Helper()
	snaps, err := store.List(context.Background(), docstore.Collection("posts").Doc(postID).Collection("comments"))
	require.NoError(t, err)
	return len(snaps)
}
