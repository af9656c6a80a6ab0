package server

import (
	"strings"

	"unify/internal/models"

	"github.com/gofiber/fiber/v2"
)

// respondError writes err with the status its code maps to.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}

func badRequest(c *fiber.Ctx, message string) error {
	return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(message))
}

// splitIDs parses a comma separated id list, dropping blanks.
func splitIDs(raw string) []string {
	var ids []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// threadList is the envelope for every thread listing.
type threadList struct {
	Threads []models.Thread `json:"threads"`
	Count   int             `json:"count"`
}

func listOf(threads []models.Thread) threadList {
	if threads == nil {
		threads = []models.Thread{}
	}
	return threadList{Threads: threads, Count: len(threads)}
}
