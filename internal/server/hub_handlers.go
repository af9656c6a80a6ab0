package server

import (
	"errors"

	"unify/internal/models"
	"unify/internal/observability"
	"unify/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SuggestHubs lists hubs whose name starts with ?prefix=.
func (s *Server) SuggestHubs(c *fiber.Ctx) error {
	hubs, err := s.svc.HubNames.Suggest(c.UserContext(), c.Query("prefix"))
	if err != nil {
		return respondError(c, err)
	}
	if hubs == nil {
		hubs = []models.Hub{}
	}
	return c.JSON(fiber.Map{"hubs": hubs})
}

func (s *Server) GetUserHubs(c *fiber.Ctx) error {
	hubs, err := s.svc.HubNames.ListByCreator(c.UserContext(), c.Params("uid"))
	if err != nil {
		return respondError(c, err)
	}
	if hubs == nil {
		hubs = []models.Hub{}
	}
	return c.JSON(fiber.Map{"hubs": hubs})
}

// DeleteHub runs the hub's cascade to completion. Only the creator, named
// by ?uid=, may delete a hub. With ?async=true the
// cascade continues in the background and 202 is returned with the job.
// An aborted cascade answers 409 with the posts that could not be removed;
// repeating the request resumes it.
func (s *Server) DeleteHub(c *fiber.Ctx) error {
	hubID := c.Params("id")
	requester := c.Query("uid")

	if c.QueryBool("async") {
		if err := s.svc.Lifecycle.Authorize(c.UserContext(), hubID, requester); err != nil {
			return respondError(c, err)
		}
		// The job outlives the request; it runs on the server context.
		s.svc.Lifecycle.Start(s.shutdownCtx, hubID, func(r *service.CascadeResult, err error) {
			if err != nil {
				observability.LogAsyncOperationError(s.shutdownCtx, "hub_cascade", err, map[string]interface{}{"hub_id": hubID})
				return
			}
			observability.LogAsyncOperationEnd(s.shutdownCtx, "hub_cascade", map[string]interface{}{
				"hub_id":  hubID,
				"state":   string(r.State),
				"deleted": r.Deleted,
			})
		})
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"hubId": hubID, "status": "started"})
	}

	result, err := s.svc.Lifecycle.DeleteHubAs(c.UserContext(), hubID, requester)
	if err != nil {
		var abort *models.CascadeAbortError
		if errors.As(err, &abort) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":  abort.Error(),
				"code":   models.CodeCascadeAbort,
				"posts":  abort.FailedPostIDs(),
				"result": result,
			})
		}
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetCascadeStatus returns the persisted cascade job of a hub.
func (s *Server) GetCascadeStatus(c *fiber.Ctx) error {
	job, err := s.svc.Lifecycle.Status(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(job)
}

// GetFeatureFlags returns configured feature flags, evaluated for ?uid= when given.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(c.Query("uid")),
	})
}
