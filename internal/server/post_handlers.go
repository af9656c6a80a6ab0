package server

import (
	"unify/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	AuthorID         string   `json:"authorId"`
	AuthorUsername   string   `json:"authorUsername"`
	AuthorUniversity string   `json:"authorUniversity"`
	Title            string   `json:"title"`
	Body             string   `json:"body"`
	Hub              string   `json:"hub"`
	IsAnonymous      bool     `json:"isAnonymous"`
	IsMarketItem     bool     `json:"isMarketItem"`
	Price            *float64 `json:"price"`
	Contact          string   `json:"contact"`
	Image            string   `json:"image"`
}

// CreatePost stores a post, creating its hub on first use.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	thread, err := s.svc.Posts.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID:         req.AuthorID,
		AuthorUsername:   req.AuthorUsername,
		AuthorUniversity: req.AuthorUniversity,
		Title:            req.Title,
		Body:             req.Body,
		Hub:              req.Hub,
		IsAnonymous:      req.IsAnonymous,
		IsMarketItem:     req.IsMarketItem,
		Price:            req.Price,
		Contact:          req.Contact,
		Image:            req.Image,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(thread)
}

// GetPost returns one thread with its comment count.
func (s *Server) GetPost(c *fiber.Ctx) error {
	thread, err := s.svc.Posts.GetThread(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(thread)
}

// DeletePost removes a post and its comments. Only the author, named by the
// uid query parameter, may delete it.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	err := s.svc.Posts.DeletePost(c.UserContext(), service.DeletePostInput{
		PostID:      c.Params("id"),
		RequesterID: c.Query("uid"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetThreadsByIDs resolves ?ids=a,b,c in request order.
func (s *Server) GetThreadsByIDs(c *fiber.Ctx) error {
	threads, err := s.svc.Posts.ThreadsByIDs(c.UserContext(), splitIDs(c.Query("ids")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(listOf(threads))
}

// GetUserThreads lists the non-anonymous posts of a user, newest first.
func (s *Server) GetUserThreads(c *fiber.Ctx) error {
	threads, err := s.svc.Posts.UserThreads(c.UserContext(), c.Params("uid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(listOf(threads))
}

func (s *Server) GetHubThreads(c *fiber.Ctx) error {
	threads, err := s.svc.Posts.HubThreads(c.UserContext(), c.Params("name"), c.Query("prefix"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(listOf(threads))
}

func (s *Server) GetMarketThreads(c *fiber.Ctx) error {
	threads, err := s.svc.Posts.MarketThreads(c.UserContext(), c.Params("category"), c.Query("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(listOf(threads))
}
