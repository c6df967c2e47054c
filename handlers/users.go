// handlers/users.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"campusquest/services"
	"campusquest/utils"
)

// GET /api/users/profile/:userId
func (h *Handlers) GetProfile(c *fiber.Ctx) error {
	userID, ok := utils.ParamID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	acct, err := h.Accounts.Profile(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"user": acct})
}

// PUT /api/users/profile/:userId
func (h *Handlers) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := utils.ParamID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	var req services.ProfileUpdate
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	acct, err := h.Accounts.UpdateProfile(c.UserContext(), userID, req)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"user": acct})
}

// GetProgression returns XP, level and progress toward the next level
// GET /api/users/:userId/progression
func (h *Handlers) GetProgression(c *fiber.Ctx) error {
	userID, ok := utils.ParamID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	snap, err := h.Progression.Progression(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"progression": snap})
}
