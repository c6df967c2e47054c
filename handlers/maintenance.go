// handlers/maintenance.go
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"campusquest/utils"
)

// Health reports liveness
// GET /health
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"version":   version,
	})
}

// Sweep resets every stale challenge completion now instead of waiting
// for the background interval.
// POST /api/maintenance/sweep
func (h *Handlers) Sweep(c *fiber.Ctx) error {
	n, err := h.Sweeper.Sweep(c.UserContext())
	if err != nil {
		return h.respondError(c, err)
	}
	h.Log.Info("manual sweep", "reset", n)
	return utils.JSONSuccess(c, fiber.Map{"reset": n})
}
