// handlers/auth.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"campusquest/services"
	"campusquest/utils"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) issue(c *fiber.Ctx, status int, acct services.Account) error {
	token, exp, err := h.Tokens.Issue(acct.ID, acct.Email)
	if err != nil {
		return h.respondError(c, services.PersistenceError("issue token", err))
	}
	return c.Status(status).JSON(fiber.Map{
		"success":   true,
		"token":     token,
		"expiresAt": exp,
		"user":      acct,
	})
}

// RegisterUser creates an account and signs the user in
// POST /api/auth/register
func (h *Handlers) RegisterUser(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	acct, err := h.Accounts.Register(c.UserContext(), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return h.issue(c, fiber.StatusCreated, acct)
}

// Login verifies credentials and returns the profile with a token
// POST /api/auth/login
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return utils.JSONError(c, fiber.StatusBadRequest, "email and password are required")
	}

	acct, err := h.Accounts.VerifyCredentials(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.respondError(c, err)
	}
	return h.issue(c, fiber.StatusOK, acct)
}
