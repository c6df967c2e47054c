// handlers/notifications.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"campusquest/utils"
)

type AddNotificationRequest struct {
	UserID uint   `json:"userId"`
	Type   string `json:"type"`
	Text   string `json:"text"`
}

// GET /api/notifications/:userId
func (h *Handlers) ListNotifications(c *fiber.Ctx) error {
	userID, ok := utils.ParamID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	list, err := h.Notifications.List(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"notifications": list})
}

// POST /api/notifications
func (h *Handlers) AddNotification(c *fiber.Ctx) error {
	var req AddNotificationRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	n, err := h.Notifications.Add(c.UserContext(), actingUser(c, req.UserID), req.Type, req.Text)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "notification": n})
}

// PUT /api/notifications/:userId/read-all
func (h *Handlers) MarkNotificationsRead(c *fiber.Ctx) error {
	userID, ok := utils.ParamID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	n, err := h.Notifications.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"updated": n})
}

// DELETE /api/notifications/:userId
func (h *Handlers) ClearNotifications(c *fiber.Ctx) error {
	userID, ok := utils.ParamID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	n, err := h.Notifications.Clear(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"deleted": n})
}
