package repository

import (
	"context"
	"sort"

	"unify/internal/docstore"
	"unify/internal/models"
)

// ThreadRepository reads posts and projects them into threads. Every list
// method returns an empty slice when nothing matched and a
// BACKING_STORE_FAILURE AppError when the store failed.
type ThreadRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id string) (*models.Post, error)
	ListPosts(ctx context.Context) ([]models.Post, error)
	PostsInCategory(ctx context.Context, name string) ([]models.Post, error)
	FetchByIDs(ctx context.Context, ids []string) ([]models.Thread, error)
	FetchByAuthor(ctx context.Context, uid string) ([]models.Thread, error)
	FetchByCategory(ctx context.Context, name string) ([]models.Thread, error)
	// DeleteWithComments removes the post and the listed comments in one batch.
	DeleteWithComments(ctx context.Context, postID string, commentIDs []string) error
}

type threadRepository struct {
	store docstore.Store
}

// NewThreadRepository creates a new thread repository
func NewThreadRepository(store docstore.Store) ThreadRepository {
	return &threadRepository{store: store}
}

func (r *threadRepository) Create(ctx context.Context, post *models.Post) error {
	data, err := docstore.Encode(post)
	if err != nil {
		return models.NewInternalError(err)
	}
	return storeError("create post", "Post", post.ID, r.store.Set(ctx, posts.Doc(post.ID), data))
}

func (r *threadRepository) GetPost(ctx context.Context, id string) (*models.Post, error) {
	snap, err := r.store.Get(ctx, posts.Doc(id))
	if err != nil {
		return nil, storeError("get post", "Post", id, err)
	}
	var post models.Post
	if err := snap.DataTo(&post); err != nil {
		return nil, models.NewBackingStoreError("decode post", err)
	}
	post.ID = snap.ID()
	return &post, nil
}

func (r *threadRepository) ListPosts(ctx context.Context) ([]models.Post, error) {
	snaps, err := r.store.List(ctx, posts)
	if err != nil {
		return nil, storeError("list posts", "Post", "", err)
	}
	return decodePosts(snaps)
}

func (r *threadRepository) PostsInCategory(ctx context.Context, name string) ([]models.Post, error) {
	all, err := r.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Post, 0)
	for _, p := range all {
		if models.SameCategory(p.Category, name) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *threadRepository) FetchByIDs(ctx context.Context, ids []string) ([]models.Thread, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	byID := make(map[string]models.Post, len(unique))
	for _, chunk := range docstore.ChunkIDs(unique, docstore.MaxIDsPerQuery) {
		snaps, err := r.store.WhereIDIn(ctx, posts, chunk)
		if err != nil {
			return nil, storeError("fetch posts by id", "Post", "", err)
		}
		found, err := decodePosts(snaps)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			byID[p.ID] = p
		}
	}

	out := make([]models.Thread, 0, len(byID))
	for _, id := range unique {
		if p, ok := byID[id]; ok {
			out = append(out, models.ThreadFromPost(&p))
		}
	}
	return out, nil
}

func (r *threadRepository) FetchByAuthor(ctx context.Context, uid string) ([]models.Thread, error) {
	snaps, err := r.store.Where(ctx, posts, "authorId", uid)
	if err != nil {
		return nil, storeError("fetch posts by author", "Post", "", err)
	}
	found, err := decodePosts(snaps)
	if err != nil {
		return nil, err
	}
	return newestFirst(found), nil
}

func (r *threadRepository) FetchByCategory(ctx context.Context, name string) ([]models.Thread, error) {
	found, err := r.PostsInCategory(ctx, name)
	if err != nil {
		return nil, err
	}
	return newestFirst(found), nil
}

func (r *threadRepository) DeleteWithComments(ctx context.Context, postID string, commentIDs []string) error {
	batch := r.store.Batch()
	comments := commentsOf(postID)
	for _, id := range commentIDs {
		batch.Delete(comments.Doc(id))
	}
	batch.Delete(posts.Doc(postID))
	return storeError("delete post batch", "Post", postID, batch.Commit(ctx))
}

func decodePosts(snaps []docstore.Snapshot) ([]models.Post, error) {
	out, err := decodeAll[models.Post](snaps, "decode post")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ID = snaps[i].ID()
	}
	return out, nil
}

func newestFirst(found []models.Post) []models.Thread {
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].CreatedAt != found[j].CreatedAt {
			return found[i].CreatedAt > found[j].CreatedAt
		}
		return found[i].ID < found[j].ID
	})
	out := make([]models.Thread, 0, len(found))
	for i := range found {
		out = append(out, models.ThreadFromPost(&found[i]))
	}
	return out
}
