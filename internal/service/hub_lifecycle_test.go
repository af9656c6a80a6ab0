package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"unify/internal/models"
	"unify/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (g *graph) manager(hooks ...PostRemovedHook) *HubLifecycleManager {
	return NewHubLifecycleManager(g.hubs, g.threads, g.comments, g.jobs, 0, hooks...)
}

func (g *graph) hub(t *testing.T, id, name string) {
	t.Helper()
	testutil.PutHub(t, g.store, &models.Hub{ID: id, Name: name, NameLowercase: models.HubKey(name), CreatedAt: 1})
}

// assertHubGone checks that no post of the category, no comment of the
// given posts and no hub record remain.
func (g *graph) assertHubGone(t *testing.T, hubID, name string, postIDs ...string) {
	t.Helper()
	ctx := context.Background()
	left, err := g.threads.PostsInCategory(ctx, name)
	require.NoError(t, err)
	assert.Empty(t, left)
	for _, id := range postIDs {
		assert.Equal(t, 0, testutil.CountComments(t, g.store, id), "comments of %s", id)
	}
	_, err = g.hubs.Get(ctx, hubID)
	assertCode(t, err, models.CodeNotFound)
}

func TestHubLifecycle_HousingScenario(t *testing.T) {
	g := newGraph(t)
	g.hub(t, "h1", "HOUSING")
	g.post(t, "A", "HOUSING", "owner", 1)
	g.post(t, "B", "HOUSING", "owner", 2)
	g.post(t, "X", "Books", "owner", 3)
	g.comment(t, "C1", "A", "u1", "", 10)
	g.comment(t, "C2", "A", "u2", "", 11)
	g.comment(t, "C3", "A", "u3", "C1", 12)
	g.comment(t, "K1", "X", "u1", "", 13)

	res, err := g.manager().DeleteHub(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, models.CascadeCompleted, res.State)
	assert.Equal(t, 2, res.Deleted)
	assert.Empty(t, res.Failed)

	g.assertHubGone(t, "h1", "HOUSING", "A", "B")
	byAuthor, err := g.comments.ListByAuthor(context.Background(), "u3")
	require.NoError(t, err)
	assert.Empty(t, byAuthor)

	// other categories are untouched
	_, err = g.threads.GetPost(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CountComments(t, g.store, "X"))

	job, err := g.manager().Status(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, models.CascadeCompleted, job.State)
	assert.Empty(t, job.Pending)
}

func TestHubLifecycle_CaseVariantsAreCascaded(t *testing.T) {
	g := newGraph(t)
	g.hub(t, "h1", "Housing")
	g.post(t, "A", "housing", "owner", 1)
	g.post(t, "B", "HOUSING", "owner", 2)

	res, err := g.manager().DeleteHub(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)
	g.assertHubGone(t, "h1", "Housing", "A", "B")
}

func TestHubLifecycle_EmptyHub(t *testing.T) {
	g := newGraph(t)
	g.hub(t, "h1", "Quiet")

	res, err := g.manager().DeleteHub(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, models.CascadeCompleted, res.State)
	assert.Equal(t, 0, g.store.Calls(testutil.OpCommit))
	g.assertHubGone(t, "h1", "Quiet")
}

func TestHubLifecycle_AbortThenRetryConverges(t *testing.T) {
	g := newGraph(t)
	g.hub(t, "h1", "Housing")
	for _, id := range []string{"A", "B", "C"} {
		g.post(t, id, "Housing", "owner", 1)
		g.comment(t, id+"1", id, "u1", "", 2)
		g.comment(t, id+"2", id, "u2", id+"1", 3)
	}
	g.store.FailTimes(testutil.OpCommit, "posts/B", 1, nil)

	res, err := g.manager().DeleteHub(context.Background(), "h1")
	require.Error(t, err)
	var abort *models.CascadeAbortError
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, []string{"B"}, abort.FailedPostIDs())
	assertCode(t, err, models.CodeCascadeAbort)
	assert.Equal(t, models.CascadeAborted, res.State)

	// hub and the failed post survive exactly as left
	_, err = g.hubs.Get(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, 2, testutil.CountComments(t, g.store, "B"))
	assert.Equal(t, 0, testutil.CountComments(t, g.store, "A"))

	res, err = g.manager().DeleteHub(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, models.CascadeCompleted, res.State)
	assert.Equal(t, 2, res.Attempts)
	g.assertHubGone(t, "h1", "Housing", "A", "B", "C")
}

func TestHubLifecycle_ResumeAfterCrashMidCascade(t *testing.T) {
	g := newGraph(t)
	ctx := context.Background()
	g.hub(t, "h1", "Housing")
	g.post(t, "B", "Housing", "owner", 2)
	g.post(t, "C", "Housing", "owner", 3)
	g.comment(t, "B1", "B", "u1", "", 4)
	g.comment(t, "C1", "C", "u1", "", 5)

	// A was already cascaded before the crash; B is still pending and C
	// was filed after the listing step.
	require.NoError(t, g.jobs.Save(ctx, &models.CascadeJob{
		HubID:   "h1",
		HubName: "Housing",
		State:   models.CascadeCascading,
		Pending: []string{"A", "B"},
		Deleted: 1,
	}))

	results, err := g.manager().ResumePending(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.CascadeCompleted, results[0].State)
	assert.Equal(t, 4, results[0].Deleted)
	g.assertHubGone(t, "h1", "Housing", "B", "C")

	results, err = g.manager().ResumePending(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHubLifecycle_StoreFailureIsResumable(t *testing.T) {
	g := newGraph(t)
	ctx := context.Background()
	g.hub(t, "h1", "Housing")
	g.post(t, "A", "Housing", "owner", 1)
	g.store.FailTimes(testutil.OpDelete, "hubs/h1", 1, nil)

	_, err := g.manager().DeleteHub(ctx, "h1")
	assertCode(t, err, models.CodeBackingStore)
	job, err := g.jobs.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, models.CascadeDeletingCategory, job.State)

	results, err := g.manager().ResumePending(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.CascadeCompleted, results[0].State)
	g.assertHubGone(t, "h1", "Housing", "A")
}

func TestHubLifecycle_CompletedJobIsNotRepeated(t *testing.T) {
	g := newGraph(t)
	g.hub(t, "h1", "Housing")
	_, err := g.manager().DeleteHub(context.Background(), "h1")
	require.NoError(t, err)

	res, err := g.manager().DeleteHub(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, models.CascadeCompleted, res.State)
	assert.Equal(t, 1, res.Attempts)
}

func TestHubLifecycle_UnknownHub(t *testing.T) {
	g := newGraph(t)
	_, err := g.manager().DeleteHub(context.Background(), "nope")
	assertCode(t, err, models.CodeNotFound)
}

func TestHubLifecycle_HookFailuresBecomeWarnings(t *testing.T) {
	g := newGraph(t)
	g.hub(t, "h1", "Housing")
	g.post(t, "A", "Housing", "owner", 1)

	var seen []string
	hook := func(_ context.Context, p *models.Post) error {
		seen = append(seen, p.ID)
		return errors.New("bucket unavailable")
	}
	res, err := g.manager(hook).DeleteHub(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, models.CascadeCompleted, res.State)
	assert.Equal(t, []string{"A"}, seen)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "bucket unavailable")
}

func TestHubLifecycle_StartDeliversResult(t *testing.T) {
	g := newGraph(t)
	g.hub(t, "h1", "Housing")
	g.post(t, "A", "Housing", "owner", 1)

	done := make(chan *CascadeResult, 1)
	g.manager().Start(context.Background(), "h1", func(res *CascadeResult, err error) {
		assert.NoError(t, err)
		done <- res
	})
	select {
	case res := <-done:
		assert.Equal(t, models.CascadeCompleted, res.State)
	case <-time.After(5 * time.Second):
		t.Fatal("cascade never completed")
	}
}

func TestHubLifecycle_BoundedConcurrency(t *testing.T) {
	g := newGraph(t)
	g.hub(t, "h1", "Housing")
	ids := []string{"A", "B", "C", "D", "E", "F", "G"}
	for _, id := range ids {
		g.post(t, id, "Housing", "owner", 1)
		g.comment(t, id+"1", id, "u1", "", 2)
	}
	m := NewHubLifecycleManager(g.hubs, g.threads, g.comments, g.jobs, 2)
	res, err := m.DeleteHub(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, len(ids), res.Deleted)
	g.assertHubGone(t, "h1", "Housing", ids...)
}

func TestHubLifecycle_OnlyCreatorMayDelete(t *testing.T) {
	g := newGraph(t)
	testutil.PutHub(t, g.store, &models.Hub{ID: "h1", Name: "Housing", NameLowercase: "housing", CreatorID: "alice", CreatedAt: 1})
	g.post(t, "A", "Housing", "bob", 1)
	m := g.manager()
	ctx := context.Background()

	for _, requester := range []string{"bob", "", "  "} {
		_, err := m.DeleteHubAs(ctx, "h1", requester)
		assertCode(t, err, models.CodeUnauthorized)
	}
	_, err := g.jobs.Get(ctx, "h1")
	assertCode(t, err, models.CodeNotFound)
	_, err = g.hubs.Get(ctx, "h1")
	require.NoError(t, err)

	res, err := m.DeleteHubAs(ctx, "h1", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.CascadeCompleted, res.State)
	g.assertHubGone(t, "h1", "Housing", "A")

	job, err := g.jobs.Get(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "alice", job.CreatorID)
	_, err = m.DeleteHubAs(ctx, "h1", "bob")
	assertCode(t, err, models.CodeUnauthorized)
	res, err = m.DeleteHubAs(ctx, "h1", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.CascadeCompleted, res.State)

	_, err = m.DeleteHubAs(ctx, "missing", "alice")
	assertCode(t, err, models.CodeNotFound)
}
