package repository

import (
	"context"
	"sort"

	"unify/internal/docstore"
	"unify/internal/models"
)

// CascadeJobRepository stores hub deletion checkpoints keyed by hub id.
type CascadeJobRepository interface {
	Save(ctx context.Context, job *models.CascadeJob) error
	Get(ctx context.Context, hubID string) (*models.CascadeJob, error)
	ListUnfinished(ctx context.Context) ([]models.CascadeJob, error)
}

type cascadeJobRepository struct {
	store docstore.Store
}

// NewCascadeJobRepository creates a new CascadeJobRepository
func NewCascadeJobRepository(store docstore.Store) CascadeJobRepository {
	return &cascadeJobRepository{store: store}
}

func (r *cascadeJobRepository) Save(ctx context.Context, job *models.CascadeJob) error {
	data, err := docstore.Encode(job)
	if err != nil {
		return models.NewInternalError(err)
	}
	return storeError("checkpoint cascade", "CascadeJob", job.HubID, r.store.Set(ctx, cascadeJobs.Doc(job.HubID), data))
}

func (r *cascadeJobRepository) Get(ctx context.Context, hubID string) (*models.CascadeJob, error) {
	snap, err := r.store.Get(ctx, cascadeJobs.Doc(hubID))
	if err != nil {
		return nil, storeError("get cascade job", "CascadeJob", hubID, err)
	}
	var job models.CascadeJob
	if err := snap.DataTo(&job); err != nil {
		return nil, models.NewBackingStoreError("decode cascade job", err)
	}
	return &job, nil
}

func (r *cascadeJobRepository) ListUnfinished(ctx context.Context) ([]models.CascadeJob, error) {
	snaps, err := r.store.List(ctx, cascadeJobs)
	if err != nil {
		return nil, storeError("list cascade jobs", "CascadeJob", "", err)
	}
	all, err := decodeAll[models.CascadeJob](snaps, "decode cascade job")
	if err != nil {
		return nil, err
	}
	out := make([]models.CascadeJob, 0, len(all))
	for _, j := range all {
		if !j.State.Terminal() {
			out = append(out, j)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}
