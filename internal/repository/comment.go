package repository

import (
	"context"
	"sort"

	"unify/internal/docstore"
	"unify/internal/models"
)

// CommentRepository reads and writes the comments subcollection of a post.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	Get(ctx context.Context, postID, commentID string) (*models.Comment, error)
	// ListByPost returns the post's comments oldest first.
	ListByPost(ctx context.Context, postID string) ([]models.Comment, error)
	// ListByAuthor queries every post's comments at once by authorId.
	ListByAuthor(ctx context.Context, uid string) ([]models.Comment, error)
}

type commentRepository struct {
	store docstore.Store
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(store docstore.Store) CommentRepository {
	return &commentRepository{store: store}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	data, err := docstore.Encode(comment)
	if err != nil {
		return models.NewInternalError(err)
	}
	ref := commentsOf(comment.PostID).Doc(comment.ID)
	return storeError("create comment", "Comment", comment.ID, r.store.Set(ctx, ref, data))
}

func (r *commentRepository) Get(ctx context.Context, postID, commentID string) (*models.Comment, error) {
	snap, err := r.store.Get(ctx, commentsOf(postID).Doc(commentID))
	if err != nil {
		return nil, storeError("get comment", "Comment", commentID, err)
	}
	var c models.Comment
	if err := snap.DataTo(&c); err != nil {
		return nil, models.NewBackingStoreError("decode comment", err)
	}
	c.ID = snap.ID()
	c.PostID = postID
	return &c, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	snaps, err := r.store.List(ctx, commentsOf(postID))
	if err != nil {
		return nil, storeError("list comments", "Comment", "", err)
	}
	out, err := decodeComments(snaps)
	if err != nil {
		return nil, err
	}
	SortComments(out)
	return out, nil
}

func (r *commentRepository) ListByAuthor(ctx context.Context, uid string) ([]models.Comment, error) {
	snaps, err := r.store.CollectionGroup(ctx, CommentsSubcollection, "authorId", uid)
	if err != nil {
		return nil, storeError("list comments by author", "Comment", "", err)
	}
	out, err := decodeComments(snaps)
	if err != nil {
		return nil, err
	}
	SortComments(out)
	return out, nil
}

// SortComments orders comments by creation time, then id.
func SortComments(cs []models.Comment) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].CreatedAt != cs[j].CreatedAt {
			return cs[i].CreatedAt < cs[j].CreatedAt
		}
		return cs[i].ID < cs[j].ID
	})
}

// decodeComments fills ID and PostID from the document path, so comments
// written by older clients without those fields still join correctly.
func decodeComments(snaps []docstore.Snapshot) ([]models.Comment, error) {
	out, err := decodeAll[models.Comment](snaps, "decode comment")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ID = snaps[i].ID()
		if post, ok := snaps[i].Ref.Parent().Parent(); ok {
			out[i].PostID = post.ID()
		}
	}
	return out, nil
}
