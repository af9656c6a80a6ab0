package repository

import (
	"context"

	"unify/internal/docstore"
	"unify/internal/models"
)

// UserListRepository persists the per-user savedPosts and cart subcollections.
type UserListRepository interface {
	Put(ctx context.Context, kind models.ListKind, uid, postID string, at int64) error
	Remove(ctx context.Context, kind models.ListKind, uid, postID string) error
	List(ctx context.Context, kind models.ListKind, uid string) ([]models.ListEntry, error)
}

type userListRepository struct {
	store docstore.Store
}

// NewUserListRepository creates a new UserListRepository
func NewUserListRepository(store docstore.Store) UserListRepository {
	return &userListRepository{store: store}
}

func listOf(kind models.ListKind, uid string) docstore.CollectionRef {
	return users.Doc(uid).Collection(kind.Subcollection())
}

func (r *userListRepository) Put(ctx context.Context, kind models.ListKind, uid, postID string, at int64) error {
	data := docstore.Data{"postId": postID, kind.TimestampField(): at}
	return storeError("add "+string(kind)+" entry", "Post", postID, r.store.Set(ctx, listOf(kind, uid).Doc(postID), data))
}

func (r *userListRepository) Remove(ctx context.Context, kind models.ListKind, uid, postID string) error {
	return storeError("remove "+string(kind)+" entry", "Post", postID, r.store.Delete(ctx, listOf(kind, uid).Doc(postID)))
}

func (r *userListRepository) List(ctx context.Context, kind models.ListKind, uid string) ([]models.ListEntry, error) {
	snaps, err := r.store.List(ctx, listOf(kind, uid))
	if err != nil {
		return nil, storeError("list "+string(kind)+" entries", "Post", "", err)
	}
	out := make([]models.ListEntry, 0, len(snaps))
	for _, s := range snaps {
		var raw struct {
			PostID  string `json:"postId"`
			SavedAt int64  `json:"savedAt"`
			AddedAt int64  `json:"addedAt"`
		}
		if err := s.DataTo(&raw); err != nil {
			return nil, models.NewBackingStoreError("decode list entry", err)
		}
		entry := models.ListEntry{PostID: raw.PostID, AddedAt: raw.AddedAt}
		if kind == models.ListSaved {
			entry.AddedAt = raw.SavedAt
		}
		if entry.PostID == "" {
			entry.PostID = s.ID()
		}
		out = append(out, entry)
	}
	return out, nil
}
