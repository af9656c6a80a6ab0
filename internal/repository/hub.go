package repository

import (
	"context"
	"sort"

	"unify/internal/docstore"
	"unify/internal/models"
)

// HubRepository persists category records.
type HubRepository interface {
	Create(ctx context.Context, hub *models.Hub) error
	Get(ctx context.Context, id string) (*models.Hub, error)
	// FindByKey returns the hubs whose nameLowercase equals key.
	FindByKey(ctx context.Context, key string) ([]models.Hub, error)
	List(ctx context.Context) ([]models.Hub, error)
	ListByCreator(ctx context.Context, uid string) ([]models.Hub, error)
	Delete(ctx context.Context, id string) error
}

type hubRepository struct {
	store docstore.Store
}

// NewHubRepository creates a new HubRepository
func NewHubRepository(store docstore.Store) HubRepository {
	return &hubRepository{store: store}
}

func (r *hubRepository) Create(ctx context.Context, hub *models.Hub) error {
	data, err := docstore.Encode(hub)
	if err != nil {
		return models.NewInternalError(err)
	}
	return storeError("create hub", "Hub", hub.ID, r.store.Set(ctx, hubs.Doc(hub.ID), data))
}

func (r *hubRepository) Get(ctx context.Context, id string) (*models.Hub, error) {
	snap, err := r.store.Get(ctx, hubs.Doc(id))
	if err != nil {
		return nil, storeError("get hub", "Hub", id, err)
	}
	var h models.Hub
	if err := snap.DataTo(&h); err != nil {
		return nil, models.NewBackingStoreError("decode hub", err)
	}
	h.ID = snap.ID()
	return &h, nil
}

func (r *hubRepository) FindByKey(ctx context.Context, key string) ([]models.Hub, error) {
	snaps, err := r.store.Where(ctx, hubs, "nameLowercase", key)
	if err != nil {
		return nil, storeError("find hub", "Hub", key, err)
	}
	return decodeHubs(snaps)
}

func (r *hubRepository) List(ctx context.Context) ([]models.Hub, error) {
	snaps, err := r.store.List(ctx, hubs)
	if err != nil {
		return nil, storeError("list hubs", "Hub", "", err)
	}
	return decodeHubs(snaps)
}

func (r *hubRepository) ListByCreator(ctx context.Context, uid string) ([]models.Hub, error) {
	snaps, err := r.store.Where(ctx, hubs, "creatorId", uid)
	if err != nil {
		return nil, storeError("list hubs by creator", "Hub", "", err)
	}
	return decodeHubs(snaps)
}

func (r *hubRepository) Delete(ctx context.Context, id string) error {
	return storeError("delete hub", "Hub", id, r.store.Delete(ctx, hubs.Doc(id)))
}

func decodeHubs(snaps []docstore.Snapshot) ([]models.Hub, error) {
	out, err := decodeAll[models.Hub](snaps, "decode hub")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ID = snaps[i].ID()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NameLowercase != out[j].NameLowercase {
			return out[i].NameLowercase < out[j].NameLowercase
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
