package service

import (
	"context"
	"strings"
	"time"

	"unify/internal/cache"
	"unify/internal/models"
	"unify/internal/observability"
	"unify/internal/repository"
)

// SavedCartIndex keeps each user's saved and cart id-sets consistent with
// the users/{uid}/savedPosts and users/{uid}/cart subcollections. Writes go
// to the store first; the cached set changes only after the store confirmed.
type SavedCartIndex struct {
	lists   repository.UserListRepository
	threads repository.ThreadRepository
	sets    cache.IDSetCache
	now     func() time.Time
}

// NewSavedCartIndex creates a new SavedCartIndex
func NewSavedCartIndex(lists repository.UserListRepository, threads repository.ThreadRepository, sets cache.IDSetCache) *SavedCartIndex {
	return &SavedCartIndex{lists: lists, threads: threads, sets: sets, now: time.Now}
}

func validateListArgs(kind models.ListKind, uid string) error {
	if !kind.Valid() {
		return models.NewValidationError("Unknown list")
	}
	if strings.TrimSpace(uid) == "" {
		return models.NewValidationError("User id is required")
	}
	return nil
}

// Hydrate loads the set from the store unless it is already cached.
func (x *SavedCartIndex) Hydrate(ctx context.Context, kind models.ListKind, uid string) error {
	if err := validateListArgs(kind, uid); err != nil {
		return err
	}
	ok, err := x.sets.Hydrated(ctx, kind, uid)
	if err != nil {
		return models.NewBackingStoreError("read id-set cache", err)
	}
	if ok {
		return nil
	}
	entries, err := x.lists.List(ctx, kind, uid)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.PostID)
	}
	if err := x.sets.Replace(ctx, kind, uid, ids); err != nil {
		return models.NewBackingStoreError("hydrate id-set cache", err)
	}
	return nil
}

// IDs returns the set's members in id order.
func (x *SavedCartIndex) IDs(ctx context.Context, kind models.ListKind, uid string) ([]string, error) {
	if err := x.Hydrate(ctx, kind, uid); err != nil {
		return nil, err
	}
	ids, err := x.sets.Members(ctx, kind, uid)
	if err != nil {
		return nil, models.NewBackingStoreError("read id-set cache", err)
	}
	return ids, nil
}

// Contains reports whether postID is in the set.
func (x *SavedCartIndex) Contains(ctx context.Context, kind models.ListKind, uid, postID string) (bool, error) {
	if err := x.Hydrate(ctx, kind, uid); err != nil {
		return false, err
	}
	ok, err := x.sets.Contains(ctx, kind, uid, postID)
	if err != nil {
		return false, models.NewBackingStoreError("read id-set cache", err)
	}
	return ok, nil
}

// Threads resolves every member into a thread. Ids are fetched in chunks of
// at most docstore.MaxIDsPerQuery and merged; members whose post no longer
// exists are left out.
func (x *SavedCartIndex) Threads(ctx context.Context, kind models.ListKind, uid string) ([]models.Thread, error) {
	ids, err := x.IDs(ctx, kind, uid)
	if err != nil {
		return nil, err
	}
	return x.threads.FetchByIDs(ctx, ids)
}

// Add puts postID into the set.
func (x *SavedCartIndex) Add(ctx context.Context, kind models.ListKind, uid, postID string) error {
	if err := x.Hydrate(ctx, kind, uid); err != nil {
		return err
	}
	return x.add(ctx, kind, uid, postID)
}

// Remove takes postID out of the set.
func (x *SavedCartIndex) Remove(ctx context.Context, kind models.ListKind, uid, postID string) error {
	if err := x.Hydrate(ctx, kind, uid); err != nil {
		return err
	}
	return x.remove(ctx, kind, uid, postID)
}

// Toggle adds postID when absent and removes it otherwise. It reports
// whether the id is in the set afterwards.
func (x *SavedCartIndex) Toggle(ctx context.Context, kind models.ListKind, uid, postID string) (bool, error) {
	present, err := x.Contains(ctx, kind, uid, postID)
	if err != nil {
		return false, err
	}
	if present {
		return false, x.remove(ctx, kind, uid, postID)
	}
	return true, x.add(ctx, kind, uid, postID)
}

// Forget drops postID from both of uid's lists.
func (x *SavedCartIndex) Forget(ctx context.Context, uid, postID string) error {
	for _, kind := range []models.ListKind{models.ListSaved, models.ListCart} {
		if err := x.Remove(ctx, kind, uid, postID); err != nil {
			return err
		}
	}
	return nil
}

func (x *SavedCartIndex) add(ctx context.Context, kind models.ListKind, uid, postID string) error {
	if strings.TrimSpace(postID) == "" {
		return models.NewValidationError("Post id is required")
	}
	err := x.lists.Put(ctx, kind, uid, postID, x.now().UnixMilli())
	observability.ListToggles.WithLabelValues(string(kind), "add", observability.OutcomeLabel(err)).Inc()
	if err != nil {
		return err
	}
	if err := x.sets.Add(ctx, kind, uid, postID); err != nil {
		x.resync(ctx, kind, uid, err)
	}
	return nil
}

func (x *SavedCartIndex) remove(ctx context.Context, kind models.ListKind, uid, postID string) error {
	if strings.TrimSpace(postID) == "" {
		return models.NewValidationError("Post id is required")
	}
	err := x.lists.Remove(ctx, kind, uid, postID)
	observability.ListToggles.WithLabelValues(string(kind), "remove", observability.OutcomeLabel(err)).Inc()
	if err != nil {
		return err
	}
	if err := x.sets.Remove(ctx, kind, uid, postID); err != nil {
		x.resync(ctx, kind, uid, err)
	}
	return nil
}

// resync drops a cached set that missed a confirmed write so the next
// access hydrates it again from the store.
func (x *SavedCartIndex) resync(ctx context.Context, kind models.ListKind, uid string, cause error) {
	observability.GlobalLogger.WarnContext(ctx, "id-set cache out of sync, invalidating",
		"list", string(kind),
		"user_id", uid,
		"error", cause.Error(),
	)
	if err := x.sets.Invalidate(ctx, kind, uid); err != nil {
		observability.GlobalLogger.ErrorContext(ctx, "failed to invalidate id-set cache",
			"list", string(kind),
			"user_id", uid,
			"error", err.Error(),
		)
	}
}
