package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"unify/internal/models"
	"unify/internal/observability"
	"unify/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// maxPasses bounds how often one run re-lists the category after finding
// posts that were not in the pending list.
const maxPasses = 3

// CascadeResult describes the state a hub deletion reached.
type CascadeResult struct {
	HubID    string               `json:"hubId"`
	HubName  string               `json:"hubName"`
	State    models.CascadeState  `json:"state"`
	Deleted  int                  `json:"deleted"`
	Failed   []models.PostFailure `json:"failed,omitempty"`
	Warnings []string             `json:"warnings,omitempty"`
	Attempts int                  `json:"attempts"`
}

// HubLifecycleManager deletes a hub with every post filed under it and
// every comment of those posts. Each deletion is a job persisted in
// cascadeJobs/{hubId} and checkpointed after every post, so a run that was
// interrupted resumes from the posts still pending.
type HubLifecycleManager struct {
	hubs     repository.HubRepository
	threads  repository.ThreadRepository
	comments repository.CommentRepository
	jobs     repository.CascadeJobRepository
	hooks    []PostRemovedHook
	limit    int
	now      func() time.Time
}

// NewHubLifecycleManager creates a manager. maxInFlight bounds concurrent
// per-post batches; 0 leaves them unbounded.
func NewHubLifecycleManager(
	hubs repository.HubRepository,
	threads repository.ThreadRepository,
	comments repository.CommentRepository,
	jobs repository.CascadeJobRepository,
	maxInFlight int,
	hooks ...PostRemovedHook,
) *HubLifecycleManager {
	return &HubLifecycleManager{
		hubs:     hubs,
		threads:  threads,
		comments: comments,
		jobs:     jobs,
		hooks:    hooks,
		limit:    maxInFlight,
		now:      time.Now,
	}
}

// Status returns the persisted job of hubID.
func (m *HubLifecycleManager) Status(ctx context.Context, hubID string) (*models.CascadeJob, error) {
	return m.jobs.Get(ctx, hubID)
}

// Start runs DeleteHub on its own goroutine and calls done exactly once.
func (m *HubLifecycleManager) Start(ctx context.Context, hubID string, done func(*CascadeResult, error)) {
	go func() {
		done(m.DeleteHub(ctx, hubID))
	}()
}

// Authorize checks that requesterID created hubID. Once a cascade has
// started the creator is read from the job, since the hub record may
// already be gone.
func (m *HubLifecycleManager) Authorize(ctx context.Context, hubID, requesterID string) error {
	var owner string
	job, err := m.jobs.Get(ctx, hubID)
	switch {
	case err == nil && job.CreatorID != "":
		owner = job.CreatorID
	case err == nil, models.IsCode(err, models.CodeNotFound):
		hub, err := m.hubs.Get(ctx, hubID)
		if err != nil {
			return err
		}
		owner = hub.CreatorID
	default:
		return err
	}
	if strings.TrimSpace(requesterID) == "" || owner != requesterID {
		return models.NewUnauthorizedError("You can only delete hubs you created")
	}
	return nil
}

// DeleteHubAs is DeleteHub for a requester, who must be the hub's creator.
func (m *HubLifecycleManager) DeleteHubAs(ctx context.Context, hubID, requesterID string) (*CascadeResult, error) {
	if err := m.Authorize(ctx, hubID, requesterID); err != nil {
		return nil, err
	}
	return m.DeleteHub(ctx, hubID)
}

// DeleteHub runs or resumes the deletion of hubID. A completed job is not
// repeated; an aborted one restarts from listing. When any post batch
// fails the hub is kept and a *models.CascadeAbortError names the posts.
func (m *HubLifecycleManager) DeleteHub(ctx context.Context, hubID string) (*CascadeResult, error) {
	job, err := m.jobs.Get(ctx, hubID)
	switch {
	case models.IsCode(err, models.CodeNotFound):
		hub, err := m.hubs.Get(ctx, hubID)
		if err != nil {
			return nil, err
		}
		job = &models.CascadeJob{
			HubID:     hub.ID,
			HubName:   hub.Name,
			CreatorID: hub.CreatorID,
			State:     models.CascadeListing,
			CreatedAt: m.now().UnixMilli(),
		}
	case err != nil:
		return nil, err
	case job.State == models.CascadeCompleted:
		return resultOf(job, nil), nil
	case job.State == models.CascadeAborted:
		job.State = models.CascadeListing
		job.Pending = nil
		job.Failed = nil
	}
	return m.run(ctx, job)
}

// ResumePending replays every job that has not reached a terminal state.
// It stops at the first store failure; cascade aborts are returned in the
// results and do not stop the others.
func (m *HubLifecycleManager) ResumePending(ctx context.Context) ([]*CascadeResult, error) {
	jobs, err := m.jobs.ListUnfinished(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*CascadeResult, 0, len(jobs))
	for i := range jobs {
		res, err := m.run(ctx, &jobs[i])
		if err != nil && res == nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (m *HubLifecycleManager) run(ctx context.Context, job *models.CascadeJob) (*CascadeResult, error) {
	span, ctx := observability.NewSpan(ctx, "hub.cascade",
		attribute.String("hub.id", job.HubID),
		attribute.String("hub.name", job.HubName),
	)
	defer span.End()
	fields := map[string]interface{}{"hub_id": job.HubID, "hub_name": job.HubName, "state": string(job.State)}
	observability.LogAsyncOperationStart(ctx, "hub_cascade", fields)

	job.Attempts++
	if err := m.checkpoint(ctx, job); err != nil {
		span.SetError(err)
		return nil, err
	}

	var warnings []string
	passes := 0
	for !job.State.Terminal() {
		var err error
		switch job.State {
		case models.CascadeListing:
			err = m.list(ctx, job)
		case models.CascadeCascading:
			warnings = append(warnings, m.cascade(ctx, job)...)
			passes++
			if len(job.Failed) > 0 {
				job.State = models.CascadeAborted
			} else {
				job.State = models.CascadeDeletingCategory
			}
			err = m.checkpoint(ctx, job)
		case models.CascadeDeletingCategory:
			err = m.deleteCategory(ctx, job, passes)
		default:
			err = models.NewInternalError(fmt.Errorf("unknown cascade state %q", job.State))
		}
		if err != nil {
			span.SetError(err)
			observability.LogAsyncOperationError(ctx, "hub_cascade", err, fields)
			return nil, err
		}
	}

	observability.CascadeRuns.WithLabelValues(string(job.State)).Inc()
	fields["state"] = string(job.State)
	fields["deleted"] = job.Deleted
	fields["failed"] = len(job.Failed)
	span.AddAttributes(attribute.String("cascade.state", string(job.State)), attribute.Int("cascade.failed", len(job.Failed)))

	if job.State == models.CascadeAborted {
		abort := &models.CascadeAbortError{HubID: job.HubID, Failed: job.Failed}
		span.SetError(abort)
		observability.LogAsyncOperationError(ctx, "hub_cascade", abort, fields)
		return resultOf(job, warnings), abort
	}
	observability.LogAsyncOperationEnd(ctx, "hub_cascade", fields)
	return resultOf(job, warnings), nil
}

func (m *HubLifecycleManager) list(ctx context.Context, job *models.CascadeJob) error {
	posts, err := m.threads.PostsInCategory(ctx, job.HubName)
	if err != nil {
		return err
	}
	job.Pending = make([]string, 0, len(posts))
	for _, p := range posts {
		job.Pending = append(job.Pending, p.ID)
	}
	if len(job.Pending) == 0 {
		job.State = models.CascadeDeletingCategory
	} else {
		job.State = models.CascadeCascading
	}
	return m.checkpoint(ctx, job)
}

// cascade deletes every pending post concurrently. Each outcome removes the
// post from Pending and is checkpointed before the next outcome is recorded.
func (m *HubLifecycleManager) cascade(ctx context.Context, job *models.CascadeJob) []string {
	var (
		mu       sync.Mutex
		warnings []string
		g        errgroup.Group
	)
	if m.limit > 0 {
		g.SetLimit(m.limit)
	}

	pending := append([]string(nil), job.Pending...)
	for _, id := range pending {
		postID := id
		g.Go(func() error {
			hookWarnings, err := m.cascadePost(ctx, postID)
			observability.CascadePosts.WithLabelValues(observability.OutcomeLabel(err)).Inc()

			mu.Lock()
			defer mu.Unlock()
			warnings = append(warnings, hookWarnings...)
			job.Pending = without(job.Pending, postID)
			if err != nil {
				job.Failed = append(job.Failed, models.PostFailure{PostID: postID, Error: err.Error()})
			} else {
				job.Deleted++
			}
			if cpErr := m.checkpoint(ctx, job); cpErr != nil {
				warnings = append(warnings, "checkpoint: "+cpErr.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
	return warnings
}

// cascadePost lists the post's comments and deletes them together with the
// post in one batch. A post that is already gone only has its leftover
// comments removed.
func (m *HubLifecycleManager) cascadePost(ctx context.Context, postID string) ([]string, error) {
	post, err := m.threads.GetPost(ctx, postID)
	if err != nil && !models.IsCode(err, models.CodeNotFound) {
		return nil, err
	}
	comments, err := m.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	if err := m.threads.DeleteWithComments(ctx, postID, ids); err != nil {
		return nil, err
	}
	if post == nil {
		return nil, nil
	}
	return runHooks(ctx, m.hooks, post), nil
}

// deleteCategory re-lists the category before removing the hub record, so
// posts filed while the cascade ran are cascaded too.
func (m *HubLifecycleManager) deleteCategory(ctx context.Context, job *models.CascadeJob, passes int) error {
	left, err := m.threads.PostsInCategory(ctx, job.HubName)
	if err != nil {
		return err
	}
	if len(left) > 0 {
		job.Pending = make([]string, 0, len(left))
		for _, p := range left {
			job.Pending = append(job.Pending, p.ID)
		}
		if passes >= maxPasses {
			for _, id := range job.Pending {
				job.Failed = append(job.Failed, models.PostFailure{PostID: id, Error: "post still present after cascade"})
			}
			job.State = models.CascadeAborted
		} else {
			job.State = models.CascadeCascading
		}
		return m.checkpoint(ctx, job)
	}

	if err := m.hubs.Delete(ctx, job.HubID); err != nil {
		return err
	}
	job.Pending = nil
	job.State = models.CascadeCompleted
	return m.checkpoint(ctx, job)
}

func (m *HubLifecycleManager) checkpoint(ctx context.Context, job *models.CascadeJob) error {
	job.UpdatedAt = m.now().UnixMilli()
	return m.jobs.Save(ctx, job)
}

func resultOf(job *models.CascadeJob, warnings []string) *CascadeResult {
	return &CascadeResult{
		HubID:    job.HubID,
		HubName:  job.HubName,
		State:    job.State,
		Deleted:  job.Deleted,
		Failed:   job.Failed,
		Warnings: warnings,
		Attempts: job.Attempts,
	}
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
