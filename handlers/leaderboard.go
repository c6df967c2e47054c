// handlers/leaderboard.go
package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"campusquest/services"
	"campusquest/utils"
)

// GetLeaderboard returns the top profiles
// GET /api/leaderboard?filter=overall|college|major|class&college=&major=&classYear=&limit=
func (h *Handlers) GetLeaderboard(c *fiber.Ctx) error {
	filter := services.LeaderboardFilter(strings.ToLower(strings.TrimSpace(c.Query("filter"))))
	if filter == "" {
		filter = services.FilterOverall
	}
	switch filter {
	case services.FilterOverall, services.FilterCollege, services.FilterMajor, services.FilterClass:
	default:
		return badRequest(c, "Invalid leaderboard filter")
	}

	entries, err := h.Leaderboard.Top(c.UserContext(), services.LeaderboardQuery{
		Filter:    filter,
		College:   c.Query("college"),
		Major:     c.Query("major"),
		ClassYear: c.Query("classYear"),
		Limit:     utils.QueryInt(c, "limit", 0),
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"leaderboard": entries})
}

// GET /api/leaderboard/user/:userId
func (h *Handlers) GetUserRankings(c *fiber.Ctx) error {
	userID, ok := utils.ParamID(c, "userId")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}
	ranks, err := h.Leaderboard.UserRankings(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.JSONSuccess(c, fiber.Map{"rankings": ranks})
}
