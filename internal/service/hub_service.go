package service

import (
	"context"
	"strings"
	"time"

	"unify/internal/models"
	"unify/internal/repository"

	"github.com/google/uuid"
)

type HubService struct {
	hubRepo repository.HubRepository
	now     func() time.Time
}

func NewHubService(hubRepo repository.HubRepository) *HubService {
	return &HubService{hubRepo: hubRepo, now: time.Now}
}

// Ensure returns the hub whose key matches name, creating it for creatorID
// when none exists yet. Concurrent first posts may each create a record;
// the oldest one wins on later lookups.
func (s *HubService) Ensure(ctx context.Context, name, creatorID string) (*models.Hub, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.NewValidationError("Hub is required")
	}
	key := models.HubKey(name)
	existing, err := s.hubRepo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		oldest := existing[0]
		for _, h := range existing[1:] {
			if h.CreatedAt < oldest.CreatedAt {
				oldest = h
			}
		}
		return &oldest, nil
	}

	hub := &models.Hub{
		ID:            uuid.NewString(),
		Name:          name,
		NameLowercase: key,
		CreatorID:     creatorID,
		CreatedAt:     s.now().UnixMilli(),
	}
	if err := s.hubRepo.Create(ctx, hub); err != nil {
		return nil, err
	}
	return hub, nil
}

// Suggest lists hubs whose key starts with the lowercased prefix, in key order.
func (s *HubService) Suggest(ctx context.Context, prefix string) ([]models.Hub, error) {
	all, err := s.hubRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	prefix = models.HubKey(prefix)
	out := make([]models.Hub, 0, len(all))
	for _, h := range all {
		if strings.HasPrefix(h.NameLowercase, prefix) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *HubService) ListByCreator(ctx context.Context, uid string) ([]models.Hub, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, models.NewValidationError("User id is required")
	}
	return s.hubRepo.ListByCreator(ctx, uid)
}

func (s *HubService) Get(ctx context.Context, id string) (*models.Hub, error) {
	return s.hubRepo.Get(ctx, id)
}
