// handlers/quizzes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"campusquest/services"
	"campusquest/utils"
)

type CompleteQuizRequest struct {
	UserID         uint `json:"userId"`
	Score          int  `json:"score"`
	TotalQuestions int  `json:"totalQuestions"`
	Passed         bool `json:"passed"`
	XPEarned       int  `json:"xpEarned"`
}

func listOptions(c *fiber.Ctx) services.ListOptions {
	return services.ListOptions{
		Category: c.Query("category"),
		Limit:    utils.QueryInt(c, "limit", 0),
		Offset:   utils.QueryInt(c, "offset", 0),
	}
}

// completionResponse flattens the snapshot so clients can update totals
// without digging into the nested user object.
func completionResponse(c *fiber.Ctx, res services.CompletionResult) error {
	return utils.JSONSuccess(c, fiber.Map{
		"status":           res.Outcome,
		"awarded":          res.Outcome == services.OutcomeAwarded,
		"alreadyCompleted": res.AlreadyCompleted(),
		"xpAwarded":        res.XPAwarded,
		"xp":               res.Profile.XP,
		"level":            res.Profile.Level,
		"user":             res.Profile,
	})
}

// GET /api/quizzes?category=&limit=&offset=
func (h *Handlers) ListQuizzes(c *fiber.Ctx) error {
	quizzes, err := h.Content.ListQuizzes(c.UserContext(), listOptions(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"quizzes": quizzes})
}

// GET /api/quizzes/:quizId
func (h *Handlers) GetQuiz(c *fiber.Ctx) error {
	quizID, ok := utils.ParamID(c, "quizId")
	if !ok {
		return badRequest(c, "Invalid quiz ID")
	}
	quiz, err := h.Content.GetQuiz(c.UserContext(), quizID)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"quiz": quiz})
}

// POST /api/quizzes
func (h *Handlers) CreateQuiz(c *fiber.Ctx) error {
	var req services.QuizInput
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	req.CreatedBy = actingUserPtr(c, req.CreatedBy)

	quiz, err := h.Content.CreateQuiz(c.UserContext(), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "quiz": quiz})
}

// CompleteQuiz records a quiz result and pays its XP at most once per user
// POST /api/quizzes/:quizId/complete
func (h *Handlers) CompleteQuiz(c *fiber.Ctx) error {
	quizID, ok := utils.ParamID(c, "quizId")
	if !ok {
		return badRequest(c, "Invalid quiz ID")
	}
	var req CompleteQuizRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := h.Progression.RecordQuizCompletion(c.UserContext(), services.QuizCompletionInput{
		QuizID:         quizID,
		UserID:         actingUser(c, req.UserID),
		Score:          req.Score,
		TotalQuestions: req.TotalQuestions,
		Passed:         req.Passed,
		XPEarned:       req.XPEarned,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return completionResponse(c, res)
}
