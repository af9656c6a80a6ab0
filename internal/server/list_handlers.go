package server

import (
	"unify/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetList returns the user's saved or cart threads together with the raw id set.
func (s *Server) GetList(kind models.ListKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		uid := c.Params("uid")

		ids, err := s.svc.Index.IDs(ctx, kind, uid)
		if err != nil {
			return respondError(c, err)
		}
		threads, err := s.svc.Index.Threads(ctx, kind, uid)
		if err != nil {
			return respondError(c, err)
		}
		if ids == nil {
			ids = []string{}
		}
		return c.JSON(fiber.Map{
			"list":    kind,
			"ids":     ids,
			"threads": listOf(threads).Threads,
		})
	}
}

func (s *Server) GetListMembership(kind models.ListKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		present, err := s.svc.Index.Contains(c.UserContext(), kind, c.Params("uid"), c.Params("postId"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"postId": c.Params("postId"), "present": present})
	}
}

func (s *Server) AddListEntry(kind models.ListKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := s.svc.Index.Add(c.UserContext(), kind, c.Params("uid"), c.Params("postId")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"postId": c.Params("postId"), "present": true})
	}
}

func (s *Server) RemoveListEntry(kind models.ListKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := s.svc.Index.Remove(c.UserContext(), kind, c.Params("uid"), c.Params("postId")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"postId": c.Params("postId"), "present": false})
	}
}

// ToggleListEntry flips membership and reports the resulting state.
func (s *Server) ToggleListEntry(kind models.ListKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		present, err := s.svc.Index.Toggle(c.UserContext(), kind, c.Params("uid"), c.Params("postId"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"postId": c.Params("postId"), "present": present})
	}
}
