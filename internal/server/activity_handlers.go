package server

import (
	"unify/internal/models"
	"unify/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetActivity serves the commented and replies feeds. ?strategy= forces
// fanout or indexed gathering; otherwise the user's feature flags decide.
func (s *Server) GetActivity(c *fiber.Ctx) error {
	uid := c.Params("uid")
	kind := models.ActivityKind(c.Params("kind"))

	var (
		feed *service.Feed
		err  error
	)
	switch strategy := service.Strategy(c.Query("strategy")); strategy {
	case "":
		feed, err = s.svc.Activity.Compute(c.UserContext(), uid, kind)
	case service.StrategyFanOut, service.StrategyIndexed:
		feed, err = s.svc.Activity.ComputeWith(c.UserContext(), uid, kind, strategy)
	default:
		return badRequest(c, "Unknown activity strategy")
	}
	if err != nil {
		return respondError(c, err)
	}
	if feed.Entries == nil {
		feed.Entries = []models.ActivityEntry{}
	}
	return c.JSON(feed)
}
