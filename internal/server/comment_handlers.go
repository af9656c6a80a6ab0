package server

import (
	"unify/internal/models"
	"unify/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createCommentRequest struct {
	AuthorID         string `json:"authorId"`
	AuthorUsername   string `json:"authorUsername"`
	AuthorUniversity string `json:"authorUniversity"`
	Text             string `json:"text"`
	ParentCommentID  string `json:"parentCommentId"`
}

// CreateComment adds a comment, or a reply when parentCommentId is set.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req createCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	created, err := s.svc.Discuss.AddComment(c.UserContext(), service.AddCommentInput{
		PostID:           c.Params("id"),
		AuthorID:         req.AuthorID,
		AuthorUsername:   req.AuthorUsername,
		AuthorUniversity: req.AuthorUniversity,
		Text:             req.Text,
		ParentCommentID:  req.ParentCommentID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetCommentTree returns the top-level comments of a post with their replies.
func (s *Server) GetCommentTree(c *fiber.Ctx) error {
	tree, err := s.svc.Discuss.Tree(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if tree == nil {
		tree = []models.CommentNode{}
	}
	total := 0
	for _, n := range tree {
		total += 1 + n.ReplyCount
	}
	return c.JSON(fiber.Map{
		"comments": tree,
		"count":    total,
	})
}
