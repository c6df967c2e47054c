// handlers/checklist.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"campusquest/utils"
)

type AddChecklistTaskRequest struct {
	TaskText string `json:"taskText"`
}

// GetChecklist returns the user's tasks for ?date=YYYY-MM-DD, default today.
// GET /api/users/:userId/checklist
func (h *Handlers) GetChecklist(c *fiber.Ctx) error {
	userID, ok := utils.ParamID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	day, err := h.Checklist.Day(c.UserContext(), userID, c.Query("date"))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"checklist": day})
}

// POST /api/users/:userId/checklist
func (h *Handlers) AddChecklistTask(c *fiber.Ctx) error {
	userID, ok := utils.ParamID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	var req AddChecklistTaskRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	task, err := h.Checklist.AddTask(c.UserContext(), userID, req.TaskText)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "task": task})
}

// CompleteChecklistTask marks a task done and pays the daily bonus once the
// whole list is done.
// POST /api/users/:userId/checklist/:taskId/complete
func (h *Handlers) CompleteChecklistTask(c *fiber.Ctx) error {
	userID, ok := utils.ParamID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	taskID, ok := utils.ParamID(c, "taskId")
	if !ok {
		return badRequest(c, "Invalid task ID")
	}
	res, err := h.Checklist.CompleteTask(c.UserContext(), userID, taskID, c.Query("date"))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{
		"taskId":         res.TaskID,
		"day":            res.Day,
		"completed":      res.Completed,
		"allCompleted":   res.AllCompleted,
		"bonusXpAwarded": res.BonusXPAwarded,
		"bonusPaid":      res.BonusPaid,
		"user":           res.Profile,
	})
}

// DELETE /api/users/:userId/checklist/:taskId
func (h *Handlers) DeleteChecklistTask(c *fiber.Ctx) error {
	userID, ok := utils.ParamID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	taskID, ok := utils.ParamID(c, "taskId")
	if !ok {
		return badRequest(c, "Invalid task ID")
	}
	if err := h.Checklist.DeleteTask(c.UserContext(), userID, taskID); err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"deleted": taskID})
}
