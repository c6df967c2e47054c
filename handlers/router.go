// handlers/router.go
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"campusquest/config"
	"campusquest/middleware"
	"campusquest/utils"
)

const version = "1.0.0"

// NewApp builds the Fiber app with middleware and every route mounted.
func NewApp(cfg config.Config, h *Handlers) *fiber.App {
	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 4 * 1024 * 1024
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler(cfg.IsProduction()),
		BodyLimit:    bodyLimit,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		AppName:      "CampusQuest",
	})

	app.Use(recover.New())
	if cfg.Server.Env != "test" {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: cfg.Server.CORSOrigins != "*",
	}))

	app.Get("/health", h.Health)

	h.Mount(app)
	return app
}

// Mount registers the API routes.
func (h *Handlers) Mount(app *fiber.App) {
	api := app.Group("/api")
	if h.GeneralLimiter != nil {
		api.Use(middleware.RateLimit(h.GeneralLimiter, "Too many requests, please try again later."))
	}
	api.Use(middleware.OptionalAuth(h.Tokens))

	auth := api.Group("/auth")
	if h.AuthLimiter != nil {
		auth.Use(middleware.RateLimit(h.AuthLimiter, "Too many login attempts, please try again later."))
	}
	auth.Post("/register", h.RegisterUser)
	auth.Post("/login", h.Login)

	users := api.Group("/users")
	users.Get("/profile/:userId", h.GetProfile)
	users.Put("/profile/:userId", h.UpdateProfile)
	users.Get("/:userId/progression", h.GetProgression)
	users.Get("/:userId/checklist", h.GetChecklist)
	users.Post("/:userId/checklist", h.AddChecklistTask)
	users.Post("/:userId/checklist/:taskId/complete", h.CompleteChecklistTask)
	users.Delete("/:userId/checklist/:taskId", h.DeleteChecklistTask)

	quizzes := api.Group("/quizzes")
	quizzes.Get("/", h.ListQuizzes)
	quizzes.Post("/", h.CreateQuiz)
	quizzes.Get("/:quizId", h.GetQuiz)
	quizzes.Post("/:quizId/complete", h.CompleteQuiz)

	flashcards := api.Group("/flashcards")
	flashcards.Get("/", h.ListFlashcardSets)
	flashcards.Post("/", h.CreateFlashcardSet)
	flashcards.Get("/:setId", h.GetFlashcardSet)
	flashcards.Post("/:setId/complete", h.CompleteFlashcardSet)

	challenges := api.Group("/challenges")
	challenges.Get("/", h.ListChallenges)
	challenges.Post("/", h.CreateChallenge)
	challenges.Get("/user/:userId", h.ListUserChallenges)
	challenges.Post("/:challengeId/join", h.JoinChallenge)
	challenges.Post("/:challengeId/progress", h.UpdateChallengeProgress)

	board := api.Group("/leaderboard")
	board.Get("/", h.GetLeaderboard)
	board.Get("/user/:userId", h.GetUserRankings)

	notes := api.Group("/notifications")
	notes.Post("/", h.AddNotification)
	notes.Get("/:userId", h.ListNotifications)
	notes.Put("/:userId/read-all", h.MarkNotificationsRead)
	notes.Delete("/:userId", h.ClearNotifications)

	api.Post("/maintenance/sweep", middleware.RequireAuth(h.Tokens), h.Sweep)
}

// customErrorHandler renders errors in the API envelope. Server error
// details are hidden in production.
func customErrorHandler(production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}

		if production && code == fiber.StatusInternalServerError {
			message = "An error occurred. Please try again later."
		}

		return utils.JSONError(c, code, message)
	}
}
