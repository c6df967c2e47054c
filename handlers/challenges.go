// handlers/challenges.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"campusquest/services"
	"campusquest/utils"
)

type JoinChallengeRequest struct {
	UserID uint `json:"userId"`
}

type ChallengeProgressRequest struct {
	UserID   uint `json:"userId"`
	Progress *int `json:"progress"`
}

// GET /api/challenges
func (h *Handlers) ListChallenges(c *fiber.Ctx) error {
	list, err := h.Content.ListActiveChallenges(c.UserContext())
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"challenges": list})
}

// ListUserChallenges returns active challenges plus the user's joined ones,
// with any stale completion from an earlier day already reset.
// GET /api/challenges/user/:userId
func (h *Handlers) ListUserChallenges(c *fiber.Ctx) error {
	userID, ok := utils.ParamID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	list, err := h.Content.ListUserChallenges(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"challenges": list})
}

// POST /api/challenges
func (h *Handlers) CreateChallenge(c *fiber.Ctx) error {
	var req services.ChallengeInput
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.CreatedBy = actingUserPtr(c, req.CreatedBy)

	ch, err := h.Content.CreateChallenge(c.UserContext(), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "challenge": ch})
}

// POST /api/challenges/:challengeId/join
func (h *Handlers) JoinChallenge(c *fiber.Ctx) error {
	challengeID, ok := utils.ParamID(c, "challengeId")
	if !ok {
		return badRequest(c, "Invalid challenge ID")
	}
	var req JoinChallengeRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	row, err := h.Progression.JoinChallenge(c.UserContext(), challengeID, actingUser(c, req.UserID))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "progress": row})
}

// UpdateChallengeProgress bumps (or sets) the user's counter and pays the
// reward once per calendar day when the target is reached.
// POST /api/challenges/:challengeId/progress
func (h *Handlers) UpdateChallengeProgress(c *fiber.Ctx) error {
	challengeID, ok := utils.ParamID(c, "challengeId")
	if !ok {
		return badRequest(c, "Invalid challenge ID")
	}
	var req ChallengeProgressRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := h.Progression.UpdateChallengeProgress(c.UserContext(), services.ChallengeProgressInput{
		ChallengeID: challengeID,
		UserID:      actingUser(c, req.UserID),
		Progress:    req.Progress,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{
		"status":      res.Outcome,
		"completed":   res.Completed,
		"progress":    res.Progress,
		"maxProgress": res.MaxProgress,
		"xpEarned":    res.XPEarned,
		"xp":          res.Profile.XP,
		"level":       res.Profile.Level,
		"user":        res.Profile,
	})
}
