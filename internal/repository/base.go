// Package repository maps the content graph onto docstore collections.
package repository

import (
	"errors"

	"unify/internal/docstore"
	"unify/internal/models"
)

// Collection names and layout.
const (
	PostsCollection       = "posts"
	CommentsSubcollection = "comments"
	HubsCollection        = "hubs"
	UsersCollection       = "users"
	CascadeJobsCollection = "cascadeJobs"
)

var (
	posts       = docstore.Collection(PostsCollection)
	hubs        = docstore.Collection(HubsCollection)
	users       = docstore.Collection(UsersCollection)
	cascadeJobs = docstore.Collection(CascadeJobsCollection)
)

func commentsOf(postID string) docstore.CollectionRef {
	return posts.Doc(postID).Collection(CommentsSubcollection)
}

// storeError translates a docstore failure into the error taxonomy:
// missing documents become NOT_FOUND, everything else BACKING_STORE_FAILURE.
func storeError(op, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewBackingStoreError(op, err)
}

func decodeAll[T any](snaps []docstore.Snapshot, op string) ([]T, error) {
	out := make([]T, 0, len(snaps))
	for _, s := range snaps {
		var v T
		if err := s.DataTo(&v); err != nil {
			return nil, models.NewBackingStoreError(op, err)
		}
		out = append(out, v)
	}
	return out, nil
}
