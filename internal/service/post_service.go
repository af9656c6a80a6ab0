package service

import (
	"context"
	"strings"
	"time"

	"unify/internal/media"
	"unify/internal/models"
	"unify/internal/observability"
	"unify/internal/repository"
	"unify/internal/search"

	"github.com/google/uuid"
)

const (
	maxTitleLen = 300
	maxBodyLen  = 50000
)

type PostService struct {
	threadRepo  repository.ThreadRepository
	commentRepo repository.CommentRepository
	hubs        *HubService
	lists       *SavedCartIndex
	media       media.Store
	index       search.Index
	hooks       []PostRemovedHook
	now         func() time.Time
}

type CreatePostInput struct {
	AuthorID         string
	AuthorUsername   string
	AuthorUniversity string
	Title            string
	Body             string
	Hub              string
	IsAnonymous      bool
	IsMarketItem     bool
	Price            *float64
	Contact          string
	Image            string // base64 payload, optional
}

type DeletePostInput struct {
	PostID      string
	RequesterID string
}

// NewPostService wires the post operations. mediaStore and index may be nil;
// images are then kept inline and market search filters in process.
func NewPostService(
	threadRepo repository.ThreadRepository,
	commentRepo repository.CommentRepository,
	hubs *HubService,
	lists *SavedCartIndex,
	mediaStore media.Store,
	index search.Index,
) *PostService {
	s := &PostService{
		threadRepo:  threadRepo,
		commentRepo: commentRepo,
		hubs:        hubs,
		lists:       lists,
		media:       mediaStore,
		index:       index,
		now:         time.Now,
	}
	if mediaStore != nil {
		s.hooks = append(s.hooks, MediaCleanup(mediaStore))
	}
	if index != nil {
		s.hooks = append(s.hooks, SearchCleanup(index))
	}
	return s
}

// Hooks returns the cleanup hooks cascades should run for removed posts.
func (s *PostService) Hooks() []PostRemovedHook {
	return s.hooks
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Thread, error) {
	title := strings.TrimSpace(in.Title)
	body := strings.TrimSpace(in.Body)
	if title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if len(title) > maxTitleLen {
		return nil, models.NewValidationError("Title too long (max 300 characters)")
	}
	if body == "" {
		return nil, models.NewValidationError("Body is required")
	}
	if len(body) > maxBodyLen {
		return nil, models.NewValidationError("Body too long (max 50000 characters)")
	}
	if strings.TrimSpace(in.AuthorID) == "" {
		return nil, models.NewValidationError("Author is required")
	}
	if in.Price != nil && *in.Price < 0 {
		return nil, models.NewValidationError("Price must not be negative")
	}

	hub, err := s.hubs.Ensure(ctx, in.Hub, in.AuthorID)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		ID:          uuid.NewString(),
		Title:       title,
		Body:        body,
		Category:    strings.TrimSpace(in.Hub),
		IsAnonymous: in.IsAnonymous,
		AuthorID:    in.AuthorID,
		CreatedAt:   s.now().UnixMilli(),
	}
	if hub.Name != "" && models.SameCategory(hub.Name, post.Category) {
		post.Category = hub.Name
	}
	if !in.IsAnonymous {
		post.AuthorUsername = models.StringPtr(in.AuthorUsername)
		post.AuthorUniversity = models.StringPtr(in.AuthorUniversity)
	}
	if in.IsMarketItem {
		post.IsMarketItem = true
		post.Price = in.Price
		post.Contact = models.StringPtr(in.Contact)
	}
	if err := s.attachImage(ctx, post, in.Image); err != nil {
		return nil, err
	}

	if err := s.threadRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	thread := models.ThreadFromPost(post)
	if s.index != nil {
		if err := s.index.IndexThread(ctx, search.RecordFromThread(thread)); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to index thread", "post_id", post.ID, "error", err.Error())
		}
	}
	return &thread, nil
}

func (s *PostService) attachImage(ctx context.Context, post *models.Post, payload string) error {
	if strings.TrimSpace(payload) == "" {
		return nil
	}
	if s.media == nil {
		post.Image = payload
		return nil
	}
	data, contentType, err := media.DecodeImage(payload)
	if err != nil {
		return models.NewValidationError(err.Error())
	}
	key := media.PostImageKey(post.ID)
	if err := s.media.Put(ctx, key, data, contentType); err != nil {
		return models.NewBackingStoreError("upload image", err)
	}
	post.ImageKey = key
	return nil
}

// GetThread returns the thread with its resolved comment count.
func (s *PostService) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	post, err := s.threadRepo.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByPost(ctx, id)
	if err != nil {
		return nil, err
	}
	thread := models.ThreadFromPost(post).WithCommentCount(len(comments))
	return &thread, nil
}

// DeletePost removes the post and all its comments in one batch. Only the
// author may delete.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.threadRepo.GetPost(ctx, in.PostID)
	if err != nil {
		return err
	}
	if post.AuthorID != in.RequesterID {
		return models.NewUnauthorizedError("You can only delete your own posts")
	}

	comments, err := s.commentRepo.ListByPost(ctx, in.PostID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	if err := s.threadRepo.DeleteWithComments(ctx, in.PostID, ids); err != nil {
		return err
	}
	s.sweepComments(ctx, in.PostID)

	if s.lists != nil {
		if err := s.lists.Forget(ctx, in.RequesterID, in.PostID); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to drop deleted post from lists",
				"post_id", in.PostID,
				"error", err.Error(),
			)
		}
	}
	runHooks(ctx, s.hooks, post)
	return nil
}

// sweepComments removes comments written between the listing and the batch
// commit of a DeletePost. AddComment handles writes that land later.
func (s *PostService) sweepComments(ctx context.Context, postID string) {
	left, err := s.commentRepo.ListByPost(ctx, postID)
	if err == nil && len(left) > 0 {
		ids := make([]string, 0, len(left))
		for _, c := range left {
			ids = append(ids, c.ID)
		}
		err = s.threadRepo.DeleteWithComments(ctx, postID, ids)
	}
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to sweep comments of deleted post",
			"post_id", postID,
			"error", err.Error(),
		)
	}
}

func (s *PostService) ThreadsByIDs(ctx context.Context, ids []string) ([]models.Thread, error) {
	return s.threadRepo.FetchByIDs(ctx, ids)
}

func (s *PostService) UserThreads(ctx context.Context, uid string) ([]models.Thread, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, models.NewValidationError("User id is required")
	}
	return s.threadRepo.FetchByAuthor(ctx, uid)
}

// HubThreads lists a hub's threads, optionally narrowed to titles starting
// with prefix (case-insensitive).
func (s *PostService) HubThreads(ctx context.Context, name, prefix string) ([]models.Thread, error) {
	if strings.TrimSpace(name) == "" {
		return nil, models.NewValidationError("Hub is required")
	}
	threads, err := s.threadRepo.FetchByCategory(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return threads, nil
	}
	out := make([]models.Thread, 0, len(threads))
	for _, t := range threads {
		if strings.HasPrefix(strings.ToLower(t.Title), prefix) {
			out = append(out, t)
		}
	}
	return out, nil
}

// MarketThreads lists the market items of a category matching query.
// The search index is used when healthy; otherwise, or when it fails,
// the category is filtered in process.
func (s *PostService) MarketThreads(ctx context.Context, category, query string) ([]models.Thread, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, models.NewValidationError("Category is required")
	}

	if s.index != nil && s.index.Healthy() && strings.TrimSpace(query) != "" {
		ids, err := s.index.Search(ctx, search.Query{Text: query, Category: category, MarketOnly: true})
		if err == nil {
			threads, err := s.threadRepo.FetchByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			out := make([]models.Thread, 0, len(threads))
			for _, t := range threads {
				if t.IsMarketItem && models.SameCategory(t.Category, category) {
					out = append(out, t)
				}
			}
			return out, nil
		}
		observability.GlobalLogger.WarnContext(ctx, "search index failed, filtering in process", "error", err.Error())
	}

	threads, err := s.threadRepo.FetchByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	out := make([]models.Thread, 0, len(threads))
	for _, t := range threads {
		if t.IsMarketItem && search.Matches(query, t.Title, t.Body) {
			out = append(out, t)
		}
	}
	return out, nil
}
