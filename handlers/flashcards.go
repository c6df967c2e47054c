// handlers/flashcards.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"campusquest/services"
	"campusquest/utils"
)

type CompleteFlashcardsRequest struct {
	UserID   uint `json:"userId"`
	XPEarned int  `json:"xpEarned"`
}

// GET /api/flashcards?category=&limit=&offset=
func (h *Handlers) ListFlashcardSets(c *fiber.Ctx) error {
	sets, err := h.Content.ListFlashcardSets(c.UserContext(), listOptions(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"sets": sets})
}

// GET /api/flashcards/:setId
func (h *Handlers) GetFlashcardSet(c *fiber.Ctx) error {
	setID, ok := utils.ParamID(c, "setId")
	if !ok {
		return badRequest(c, "Invalid flashcard set ID")
	}
	set, err := h.Content.GetFlashcardSet(c.UserContext(), setID)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"set": set})
}

// POST /api/flashcards
func (h *Handlers) CreateFlashcardSet(c *fiber.Ctx) error {
	var req services.FlashcardSetInput
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.CreatedBy = actingUserPtr(c, req.CreatedBy)

	set, err := h.Content.CreateFlashcardSet(c.UserContext(), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "set": set})
}

// POST /api/flashcards/:setId/complete
func (h *Handlers) CompleteFlashcardSet(c *fiber.Ctx) error {
	setID, ok := utils.ParamID(c, "setId")
	if !ok {
		return badRequest(c, "Invalid flashcard set ID")
	}
	var req CompleteFlashcardsRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := h.Progression.RecordFlashcardCompletion(c.UserContext(), services.FlashcardCompletionInput{
		SetID:    setID,
		UserID:   actingUser(c, req.UserID),
		XPEarned: req.XPEarned,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return completionResponse(c, res)
}
