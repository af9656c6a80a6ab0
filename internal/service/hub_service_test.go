package service

import (
	"context"
	"testing"

	"unify/internal/models"
	"unify/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubService_Suggest(t *testing.T) {
	g := newGraph(t)
	for _, name := range []string{"Housing", "Hobbies", "Books"} {
		g.hub(t, name, name)
	}
	svc := NewHubService(g.hubs)

	hubs, err := svc.Suggest(context.Background(), " HO")
	require.NoError(t, err)
	require.Len(t, hubs, 2)
	assert.Equal(t, "Hobbies", hubs[0].Name)
	assert.Equal(t, "Housing", hubs[1].Name)

	all, err := svc.Suggest(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestHubService_EnsurePrefersOldest(t *testing.T) {
	g := newGraph(t)
	testutil.PutHub(t, g.store, &models.Hub{ID: "new", Name: "housing", NameLowercase: "housing", CreatedAt: 20})
	testutil.PutHub(t, g.store, &models.Hub{ID: "old", Name: "Housing", NameLowercase: "housing", CreatedAt: 10})

	hub, err := NewHubService(g.hubs).Ensure(context.Background(), "HOUSING", "U")
	require.NoError(t, err)
	assert.Equal(t, "old", hub.ID)
}

func TestHubService_ListByCreator(t *testing.T) {
	g := newGraph(t)
	svc := NewHubService(g.hubs)
	ctx := context.Background()
	_, err := svc.Ensure(ctx, "Housing", "U")
	require.NoError(t, err)
	_, err = svc.Ensure(ctx, "Books", "V")
	require.NoError(t, err)

	mine, err := svc.ListByCreator(ctx, "U")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Housing", mine[0].Name)

	_, err = svc.ListByCreator(ctx, "")
	assertValidationError(t, err)
}
