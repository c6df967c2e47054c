// handlers/handlers.go
package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"campusquest/logger"
	"campusquest/middleware"
	"campusquest/services"
	"campusquest/utils"
)

// Handlers holds the services behind the HTTP surface.
type Handlers struct {
	Accounts      *services.Accounts
	Progression   *services.Progression
	Content       *services.Content
	Leaderboard   *services.Leaderboard
	Notifications *services.Notifications
	Checklist     *services.Checklist
	Sweeper       *services.ResetSweeper
	Tokens        *middleware.TokenIssuer
	Log           *logger.Logger

	// Nil disables the corresponding limit.
	GeneralLimiter *middleware.RateLimiter
	AuthLimiter    *middleware.RateLimiter
}

// respondError maps service errors onto status codes. Persistence failures
// are passed to the app ErrorHandler so production hides their details.
func (h *Handlers) respondError(c *fiber.Ctx, err error) error {
	msg := services.Message(err)
	switch {
	case errors.Is(err, services.ErrValidation):
		return utils.JSONError(c, fiber.StatusBadRequest, msg)
	case errors.Is(err, services.ErrNotFound):
		return utils.JSONError(c, fiber.StatusNotFound, msg)
	case errors.Is(err, services.ErrConflict):
		return utils.JSONError(c, fiber.StatusConflict, msg)
	case errors.Is(err, services.ErrInvalidCredentials):
		return utils.JSONError(c, fiber.StatusUnauthorized, msg)
	}
	h.Log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return fiber.NewError(fiber.StatusInternalServerError, msg)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return utils.JSONError(c, fiber.StatusBadRequest, msg)
}

// actingUser prefers an explicit id from the request body, then the
// bearer token.
func actingUser(c *fiber.Ctx, fromBody uint) uint {
	if fromBody != 0 {
		return fromBody
	}
	if id, ok := middleware.GetUserID(c); ok {
		return id
	}
	return 0
}

func actingUserPtr(c *fiber.Ctx, fromBody *uint) *uint {
	if fromBody != nil && *fromBody != 0 {
		return fromBody
	}
	if id, ok := middleware.GetUserID(c); ok {
		return &id
	}
	return nil
}

// parseBody treats an empty body as an empty object.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return c.BodyParser(out)
}
