package service

import (
	"context"
	"strings"
	"time"

	"unify/internal/models"
	"unify/internal/repository"

	"github.com/google/uuid"
)

const maxCommentLen = 10000

type CommentService struct {
	commentRepo repository.CommentRepository
	threadRepo  repository.ThreadRepository
	now         func() time.Time
}

type AddCommentInput struct {
	PostID           string
	AuthorID         string
	AuthorUsername   string
	AuthorUniversity string
	Text             string
	ParentCommentID  string
}

func NewCommentService(commentRepo repository.CommentRepository, threadRepo repository.ThreadRepository) *CommentService {
	return &CommentService{commentRepo: commentRepo, threadRepo: threadRepo, now: time.Now}
}

// AddComment stores a comment or a reply. A reply's parent must be a
// top-level comment of the same post.
func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, models.NewValidationError("Text is required")
	}
	if len(text) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}
	if strings.TrimSpace(in.AuthorID) == "" {
		return nil, models.NewValidationError("Author is required")
	}
	if _, err := s.threadRepo.GetPost(ctx, in.PostID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:               uuid.NewString(),
		PostID:           in.PostID,
		Text:             text,
		AuthorID:         in.AuthorID,
		AuthorUsername:   models.StringPtr(in.AuthorUsername),
		AuthorUniversity: models.StringPtr(in.AuthorUniversity),
		CreatedAt:        s.now().UnixMilli(),
	}

	if parentID := strings.TrimSpace(in.ParentCommentID); parentID != "" {
		parent, err := s.commentRepo.Get(ctx, in.PostID, parentID)
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewValidationError("Parent comment does not belong to this post")
		}
		if err != nil {
			return nil, err
		}
		if !parent.IsTopLevel() {
			return nil, models.NewValidationError("Replies can only answer top-level comments")
		}
		comment.ParentCommentID = &parentID
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	// The post may have been deleted after the check above. Its DeletePost
	// sweep only sees comments written before it lists, so remove ours.
	if _, err := s.threadRepo.GetPost(ctx, in.PostID); models.IsCode(err, models.CodeNotFound) {
		if derr := s.threadRepo.DeleteWithComments(ctx, in.PostID, []string{comment.ID}); derr != nil {
			return nil, derr
		}
		return nil, err
	}
	return comment, nil
}

// Tree returns the post's comments as top-level nodes with their replies.
func (s *CommentService) Tree(ctx context.Context, postID string) ([]models.CommentNode, error) {
	if _, err := s.threadRepo.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return BuildCommentTree(comments), nil
}
