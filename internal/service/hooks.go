package service

import (
	"context"

	"unify/internal/media"
	"unify/internal/models"
	"unify/internal/observability"
	"unify/internal/search"
)

// PostRemovedHook runs after a post and its comments were deleted from the
// store. A failing hook never undoes the deletion; its error is reported as
// a cleanup warning.
type PostRemovedHook func(ctx context.Context, post *models.Post) error

// MediaCleanup removes the post's stored image.
func MediaCleanup(store media.Store) PostRemovedHook {
	return func(ctx context.Context, post *models.Post) error {
		if post.ImageKey == "" {
			return nil
		}
		return store.Delete(ctx, post.ImageKey)
	}
}

// SearchCleanup removes the post from the thread index.
func SearchCleanup(idx search.Index) PostRemovedHook {
	return func(ctx context.Context, post *models.Post) error {
		return idx.DeleteThread(ctx, post.ID)
	}
}

func runHooks(ctx context.Context, hooks []PostRemovedHook, post *models.Post) []string {
	var warnings []string
	for _, hook := range hooks {
		if err := hook(ctx, post); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "post cleanup failed",
				"post_id", post.ID,
				"error", err.Error(),
			)
			warnings = append(warnings, post.ID+": "+err.Error())
		}
	}
	return warnings
}
