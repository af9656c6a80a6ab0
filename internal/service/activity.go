package service

import (
	"context"
	"sort"
	"time"

	"unify/internal/featureflags"
	"unify/internal/models"
	"unify/internal/observability"
	"unify/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
)

// Strategy names how an activity feed gathers comments.
type Strategy string

const (
	// StrategyFanOut lists every post and fetches each post's comments independently.
	StrategyFanOut Strategy = "fanout"
	// StrategyIndexed queries the user's comments across all posts at once.
	StrategyIndexed Strategy = "indexed"
)

// Feed is a finalized activity view.
type Feed struct {
	UserID   string                 `json:"userId"`
	Kind     models.ActivityKind    `json:"kind"`
	Strategy Strategy               `json:"strategy"`
	Entries  []models.ActivityEntry `json:"entries"`
	// Scanned is the number of comment sub-fetches that settled.
	Scanned int `json:"scanned"`
	// FailedBranches lists posts whose comment fetch failed. They contribute
	// nothing to Entries.
	FailedBranches []string `json:"failedBranches,omitempty"`
}

// ActivityAggregator derives the commented-posts and replies feeds of a user.
type ActivityAggregator struct {
	threads  repository.ThreadRepository
	comments repository.CommentRepository
	flags    *featureflags.Manager
	inFlight *semaphore.Weighted
}

// NewActivityAggregator creates an aggregator. maxInFlight bounds concurrent
// comment sub-fetches; 0 leaves them unbounded. flags may be nil.
func NewActivityAggregator(
	threads repository.ThreadRepository,
	comments repository.CommentRepository,
	flags *featureflags.Manager,
	maxInFlight int64,
) *ActivityAggregator {
	a := &ActivityAggregator{threads: threads, comments: comments, flags: flags}
	if maxInFlight > 0 {
		a.inFlight = semaphore.NewWeighted(maxInFlight)
	}
	return a
}

// StrategyFor returns the strategy used for uid.
func (a *ActivityAggregator) StrategyFor(uid string) Strategy {
	if a.flags != nil && a.flags.Enabled(featureflags.IndexedActivity, uid) {
		return StrategyIndexed
	}
	return StrategyFanOut
}

// CommentedPosts lists the posts uid commented on, most recent comment first.
func (a *ActivityAggregator) CommentedPosts(ctx context.Context, uid string) (*Feed, error) {
	return a.Compute(ctx, uid, models.ActivityCommented)
}

// RepliesToUser lists the posts holding replies to uid's comments, most recent reply first.
func (a *ActivityAggregator) RepliesToUser(ctx context.Context, uid string) (*Feed, error) {
	return a.Compute(ctx, uid, models.ActivityReplies)
}

// Compute builds the kind feed for uid with the strategy its flags select.
func (a *ActivityAggregator) Compute(ctx context.Context, uid string, kind models.ActivityKind) (*Feed, error) {
	return a.ComputeWith(ctx, uid, kind, a.StrategyFor(uid))
}

// Start computes the feed on its own goroutine and calls done exactly once.
func (a *ActivityAggregator) Start(ctx context.Context, uid string, kind models.ActivityKind, done func(*Feed, error)) {
	go func() {
		done(a.Compute(ctx, uid, kind))
	}()
}

// ComputeWith builds the feed with an explicit strategy.
func (a *ActivityAggregator) ComputeWith(ctx context.Context, uid string, kind models.ActivityKind, strategy Strategy) (*Feed, error) {
	if uid == "" {
		return nil, models.NewValidationError("User id is required")
	}
	if !kind.Valid() {
		return nil, models.NewValidationError("Unknown activity feed")
	}

	span, ctx := observability.NewSpan(ctx, "activity."+string(kind),
		attribute.String("activity.strategy", string(strategy)),
	)
	defer span.End()
	start := time.Now()
	fields := map[string]interface{}{"kind": string(kind), "strategy": string(strategy)}
	observability.LogAsyncOperationStart(ctx, "activity_scan", fields)

	var (
		feed *Feed
		err  error
	)
	if strategy == StrategyIndexed {
		feed, err = a.indexed(ctx, uid, kind)
	} else {
		feed, err = a.fanOut(ctx, uid, kind)
	}
	if err != nil {
		span.SetError(err)
		observability.LogAsyncOperationError(ctx, "activity_scan", err, fields)
		return nil, err
	}

	observability.ActivityFinalized.WithLabelValues(string(kind), string(strategy)).Inc()
	observability.ActivityScanDuration.WithLabelValues(string(kind), string(strategy)).Observe(time.Since(start).Seconds())
	span.AddAttributes(
		attribute.Int("activity.scanned", feed.Scanned),
		attribute.Int("activity.entries", len(feed.Entries)),
		attribute.Int("activity.failed_branches", len(feed.FailedBranches)),
	)
	fields["scanned"] = feed.Scanned
	fields["entries"] = len(feed.Entries)
	fields["failed_branches"] = len(feed.FailedBranches)
	observability.LogAsyncOperationEnd(ctx, "activity_scan", fields)
	return feed, nil
}

func (a *ActivityAggregator) fanOut(ctx context.Context, uid string, kind models.ActivityKind) (*Feed, error) {
	posts, err := a.threads.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Thread, len(posts))
	ids := make([]string, 0, len(posts))
	for i := range posts {
		byID[posts[i].ID] = models.ThreadFromPost(&posts[i])
		ids = append(ids, posts[i].ID)
	}

	gathered := a.gather(ctx, kind, ids)
	entries := make([]models.ActivityEntry, 0)
	for postID, cs := range gathered.comments {
		if e, ok := joinActivity(kind, uid, cs); ok {
			e.Thread = byID[postID]
			entries = append(entries, e)
		}
	}
	return finalize(uid, kind, StrategyFanOut, entries, gathered), nil
}

func (a *ActivityAggregator) indexed(ctx context.Context, uid string, kind models.ActivityKind) (*Feed, error) {
	mine, err := a.comments.ListByAuthor(ctx, uid)
	if err != nil {
		return nil, err
	}
	byPost := make(map[string][]models.Comment)
	postIDs := make([]string, 0)
	for _, c := range mine {
		if _, ok := byPost[c.PostID]; !ok {
			postIDs = append(postIDs, c.PostID)
		}
		byPost[c.PostID] = append(byPost[c.PostID], c)
	}

	threads, err := a.threads.FetchByIDs(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	var gathered gatherResult
	if kind == models.ActivityReplies {
		// replies live on the same post as the comment they answer
		live := make([]string, 0, len(threads))
		for _, t := range threads {
			live = append(live, t.ID)
		}
		gathered = a.gather(ctx, kind, live)
	} else {
		gathered = gatherResult{comments: byPost, settled: len(threads)}
	}

	entries := make([]models.ActivityEntry, 0)
	for _, t := range threads {
		cs, ok := gathered.comments[t.ID]
		if !ok {
			continue
		}
		if e, ok := joinActivity(kind, uid, cs); ok {
			e.Thread = t
			entries = append(entries, e)
		}
	}
	return finalize(uid, kind, StrategyIndexed, entries, gathered), nil
}

type branchOutcome struct {
	postID   string
	comments []models.Comment
	err      error
}

type gatherResult struct {
	comments map[string][]models.Comment
	failed   []string
	settled  int
}

// gather fetches the comments of every post concurrently. It returns only
// after each of the len(postIDs) sub-fetches has settled, successfully or
// not; a failed branch is recorded and contributes no comments.
func (a *ActivityAggregator) gather(ctx context.Context, kind models.ActivityKind, postIDs []string) gatherResult {
	res := gatherResult{comments: make(map[string][]models.Comment, len(postIDs))}
	n := len(postIDs)
	if n == 0 {
		return res
	}

	outcomes := make(chan branchOutcome, n)
	for _, id := range postIDs {
		go func(postID string) {
			if a.inFlight != nil {
				if err := a.inFlight.Acquire(ctx, 1); err != nil {
					outcomes <- branchOutcome{postID: postID, err: err}
					return
				}
				defer a.inFlight.Release(1)
			}
			cs, err := a.comments.ListByPost(ctx, postID)
			outcomes <- branchOutcome{postID: postID, comments: cs, err: err}
		}(id)
	}

	for res.settled < n {
		o := <-outcomes
		res.settled++
		observability.ActivitySubFetches.WithLabelValues(string(kind), observability.OutcomeLabel(o.err)).Inc()
		if o.err != nil {
			observability.GlobalLogger.WarnContext(ctx, "activity branch failed",
				"post_id", o.postID,
				"kind", string(kind),
				"error", o.err.Error(),
			)
			res.failed = append(res.failed, o.postID)
			continue
		}
		res.comments[o.postID] = o.comments
	}
	sort.Strings(res.failed)
	return res
}

// joinActivity computes the entry one post contributes to a feed. The
// returned entry has no Thread set.
func joinActivity(kind models.ActivityKind, uid string, comments []models.Comment) (models.ActivityEntry, bool) {
	var e models.ActivityEntry
	switch kind {
	case models.ActivityCommented:
		for _, c := range comments {
			if c.AuthorID != uid {
				continue
			}
			e.Count++
			if e.Count == 1 || c.CreatedAt > e.LastAt {
				e.LastAt = c.CreatedAt
			}
		}
	case models.ActivityReplies:
		mine := make(map[string]bool)
		for _, c := range comments {
			if c.AuthorID == uid {
				mine[c.ID] = true
			}
		}
		if len(mine) == 0 {
			return e, false
		}
		for _, r := range comments {
			parent := r.ParentID()
			if parent == "" || !mine[parent] || r.AuthorID == uid {
				continue
			}
			e.Count++
			if e.Count == 1 || r.CreatedAt > e.LastAt {
				e.LastAt = r.CreatedAt
			}
		}
	}
	return e, e.Count > 0
}

func finalize(uid string, kind models.ActivityKind, strategy Strategy, entries []models.ActivityEntry, g gatherResult) *Feed {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].LastAt != entries[j].LastAt {
			return entries[i].LastAt > entries[j].LastAt
		}
		return entries[i].Thread.ID < entries[j].Thread.ID
	})
	return &Feed{
		UserID:         uid,
		Kind:           kind,
		Strategy:       strategy,
		Entries:        entries,
		Scanned:        g.settled,
		FailedBranches: g.failed,
	}
}
