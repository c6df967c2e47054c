package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"campusquest/cache"
	"campusquest/config"
	"campusquest/database"
	"campusquest/logger"
	"campusquest/middleware"
	"campusquest/services"
)

type testServer struct {
	app   *fiber.App
	clock *services.FixedClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "campus.db"), nil)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db))
	t.Cleanup(func() { _ = database.Close(db) })

	cfg := config.Default()
	cfg.Server.Env = "test"
	cfg.Auth.JWTSecret = "test-secret-test-secret-test-secret"

	log := logger.Nop()
	clock := &services.FixedClock{T: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC), Loc: time.UTC}
	board := services.NewLeaderboard(db, cache.NewMemory(), time.Minute, log)
	prog := services.NewProgression(db, clock, services.NewKeyedMutex(), log, board)

	h := &Handlers{
		Accounts:      services.NewAccounts(db, cfg.Auth.AllowedEmailDomain, log, board).WithHashCost(bcrypt.MinCost),
		Progression:   prog,
		Content:       services.NewContent(db, clock, prog),
		Leaderboard:   board,
		Notifications: services.NewNotifications(db),
		Checklist:     services.NewChecklist(db, clock, prog, log),
		Sweeper:       services.NewResetSweeper(prog, 0, log),
		Tokens:        middleware.NewTokenIssuer(cfg.Auth.JWTSecret, time.Hour),
		Log:           log,
	}
	return &testServer{app: NewApp(cfg, h), clock: clock}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// register signs up a student and returns their id and token.
func (s *testServer) register(t *testing.T, first string) (uint, string) {
	t.Helper()
	code, body := s.do(t, "POST", "/api/auth/register", fiber.Map{
		"email":     first + "@mavs.uta.edu",
		"password":  "longenough",
		"firstName": first,
		"lastName":  "Maverick",
		"major":     "Computer Science",
		"college":   "Engineering",
		"classYear": "2027",
	}, "")
	require.Equal(t, fiber.StatusCreated, code, body)
	user := body["user"].(map[string]interface{})
	return uint(user["id"].(float64)), body["token"].(string)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(t, "GET", "/health", nil, "")
	assert.Equal(t, 200, code)
	assert.Equal(t, "healthy", body["status"])
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	id, token := s.register(t, "ana")
	assert.NotZero(t, id)
	assert.NotEmpty(t, token)

	code, body := s.do(t, "POST", "/api/auth/login", fiber.Map{"email": "ana@mavs.uta.edu", "password": "longenough"}, "")
	assert.Equal(t, 200, code)
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "ana Maverick", user["displayName"])
	assert.EqualValues(t, 1, user["level"])

	code, body = s.do(t, "POST", "/api/auth/login", fiber.Map{"email": "ana@mavs.uta.edu", "password": "wrongpass"}, "")
	assert.Equal(t, 401, code)
	assert.Equal(t, false, body["success"])

	code, _ = s.do(t, "POST", "/api/auth/register", fiber.Map{
		"email": "ana@mavs.uta.edu", "password": "longenough", "firstName": "A", "lastName": "B",
		"major": "CS", "college": "Eng", "classYear": "2027",
	}, "")
	assert.Equal(t, 409, code)

	code, body = s.do(t, "POST", "/api/auth/register", fiber.Map{"email": "x@gmail.com", "password": "longenough"}, "")
	assert.Equal(t, 400, code)
	assert.Contains(t, body["error"], "mavs.uta.edu")

	code, _ = s.do(t, "POST", "/api/auth/login", fiber.Map{"email": "ana@mavs.uta.edu"}, "")
	assert.Equal(t, 400, code)
}

func TestProfileEndpoints(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.register(t, "ben")

	code, body := s.do(t, "PUT", fmt.Sprintf("/api/users/profile/%d", id), fiber.Map{"nickname": "Benny", "xp": 300, "level": 19}, "")
	require.Equal(t, 200, code, body)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "Benny", user["nickname"])
	assert.EqualValues(t, 300, user["xp"])
	assert.EqualValues(t, 3, user["level"])

	code, body = s.do(t, "GET", fmt.Sprintf("/api/users/%d/progression", id), nil, "")
	require.Equal(t, 200, code)
	prog := body["progression"].(map[string]interface{})
	assert.EqualValues(t, 300, prog["xp"])
	assert.EqualValues(t, 3, prog["level"])

	code, _ = s.do(t, "GET", "/api/users/profile/9999", nil, "")
	assert.Equal(t, 404, code)
	code, _ = s.do(t, "GET", "/api/users/profile/abc", nil, "")
	assert.Equal(t, 400, code)
}

func TestFlashcardAndChallengeFlow(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.register(t, "cam")

	code, body := s.do(t, "POST", "/api/flashcards", fiber.Map{
		"title": "Organic chem",
		"cards": []fiber.Map{{"term": "alkane", "definition": "single bonds"}},
	}, "")
	require.Equal(t, 201, code, body)
	setID := uint(body["set"].(map[string]interface{})["id"].(float64))

	path := fmt.Sprintf("/api/flashcards/%d/complete", setID)
	code, body = s.do(t, "POST", path, fiber.Map{"userId": id, "xpEarned": 150}, "")
	require.Equal(t, 200, code, body)
	assert.Equal(t, "awarded", body["status"])
	assert.EqualValues(t, 150, body["xp"])
	assert.EqualValues(t, 2, body["level"])

	code, body = s.do(t, "POST", path, fiber.Map{"userId": id, "xpEarned": 150}, "")
	require.Equal(t, 200, code)
	assert.Equal(t, "already_completed", body["status"])
	assert.Equal(t, true, body["alreadyCompleted"])
	assert.EqualValues(t, 150, body["xp"])

	code, body = s.do(t, "POST", "/api/challenges", fiber.Map{
		"title": "Library hours", "maxProgress": 3, "xpReward": 500, "createdBy": id,
	}, "")
	require.Equal(t, 201, code, body)
	chID := uint(body["challenge"].(map[string]interface{})["id"].(float64))

	code, _ = s.do(t, "POST", fmt.Sprintf("/api/challenges/%d/join", chID), fiber.Map{"userId": id}, "")
	assert.Equal(t, 409, code)

	progress := fmt.Sprintf("/api/challenges/%d/progress", chID)
	for i := 1; i <= 2; i++ {
		code, body = s.do(t, "POST", progress, fiber.Map{"userId": id}, "")
		require.Equal(t, 200, code, body)
		assert.Equal(t, "progressed", body["status"])
		assert.EqualValues(t, i, body["progress"])
	}
	code, body = s.do(t, "POST", progress, fiber.Map{"userId": id}, "")
	require.Equal(t, 200, code, body)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, true, body["completed"])
	assert.EqualValues(t, 500, body["xpEarned"])
	assert.EqualValues(t, 650, body["xp"])
	assert.EqualValues(t, 4, body["level"])

	code, body = s.do(t, "POST", progress, fiber.Map{"userId": id}, "")
	require.Equal(t, 200, code)
	assert.Equal(t, "already_completed_today", body["status"])
	assert.EqualValues(t, 650, body["xp"])

	code, body = s.do(t, "GET", fmt.Sprintf("/api/challenges/user/%d", id), nil, "")
	require.Equal(t, 200, code)
	list := body["challenges"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "completed_today", list[0].(map[string]interface{})["state"])

	code, body = s.do(t, "GET", "/api/challenges", nil, "")
	require.Equal(t, 200, code)
	assert.Len(t, body["challenges"].([]interface{}), 1)
}

func TestChecklistFlow(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.register(t, "cal")
	base := fmt.Sprintf("/api/users/%d/checklist", id)

	code, body := s.do(t, "GET", base, nil, "")
	require.Equal(t, 200, code, body)
	checklist := body["checklist"].(map[string]interface{})
	assert.Equal(t, "2026-03-10", checklist["day"])
	tasks := checklist["tasks"].([]interface{})
	require.Len(t, tasks, 4)

	code, body = s.do(t, "POST", base, fiber.Map{"taskText": "Office hours"}, "")
	require.Equal(t, 201, code, body)
	custom := uint(body["task"].(map[string]interface{})["id"].(float64))

	code, _ = s.do(t, "DELETE", fmt.Sprintf("%s/%d", base, custom), nil, "")
	require.Equal(t, 200, code)
	code, _ = s.do(t, "DELETE", fmt.Sprintf("%s/%d", base, custom), nil, "")
	assert.Equal(t, 404, code)

	for i, raw := range tasks {
		taskID := uint(raw.(map[string]interface{})["taskId"].(float64))
		code, body = s.do(t, "POST", fmt.Sprintf("%s/%d/complete", base, taskID), nil, "")
		require.Equal(t, 200, code, body)
		assert.Equal(t, i == len(tasks)-1, body["allCompleted"])
	}
	assert.EqualValues(t, services.DailyBonusXP, body["bonusXpAwarded"])
	assert.EqualValues(t, services.DailyBonusXP, body["user"].(map[string]interface{})["xp"])

	code, body = s.do(t, "POST", fmt.Sprintf("%s/%d/complete?date=2026-03-12", base, 1), nil, "")
	assert.Equal(t, 400, code, body)
	code, _ = s.do(t, "GET", base+"?date=yesterday", nil, "")
	assert.Equal(t, 400, code)
	code, _ = s.do(t, "POST", base+"/abc/complete", nil, "")
	assert.Equal(t, 400, code)
}

func TestCompletionUsesBearerToken(t *testing.T) {
	s := newTestServer(t)
	id, token := s.register(t, "dee")

	code, body := s.do(t, "POST", "/api/quizzes", fiber.Map{
		"title": "Statics",
		"questions": []fiber.Map{{
			"text":    "Units of force?",
			"choices": []fiber.Map{{"text": "N", "isCorrect": true}, {"text": "J"}},
		}},
	}, token)
	require.Equal(t, 201, code, body)
	quizID := uint(body["quiz"].(map[string]interface{})["id"].(float64))

	code, body = s.do(t, "POST", fmt.Sprintf("/api/quizzes/%d/complete", quizID), fiber.Map{
		"score": 1, "totalQuestions": 1, "passed": true, "xpEarned": 100,
	}, token)
	require.Equal(t, 200, code, body)
	assert.Equal(t, "awarded", body["status"])
	user := body["user"].(map[string]interface{})
	assert.EqualValues(t, id, user["userId"])
	assert.EqualValues(t, 100, user["xp"])

	code, _ = s.do(t, "POST", fmt.Sprintf("/api/quizzes/%d/complete", quizID), fiber.Map{"xpEarned": 100}, "")
	assert.Equal(t, 400, code)

	code, _ = s.do(t, "POST", "/api/quizzes/4242/complete", fiber.Map{"xpEarned": 100}, token)
	assert.Equal(t, 404, code)
}

func TestLeaderboardEndpoints(t *testing.T) {
	s := newTestServer(t)
	a, _ := s.register(t, "eve")
	b, _ := s.register(t, "fin")
	code, _ := s.do(t, "PUT", fmt.Sprintf("/api/users/profile/%d", b), fiber.Map{"xp": 500}, "")
	require.Equal(t, 200, code)

	code, body := s.do(t, "GET", "/api/leaderboard?filter=college&college=Engineering", nil, "")
	require.Equal(t, 200, code, body)
	entries := body["leaderboard"].([]interface{})
	require.Len(t, entries, 2)
	assert.EqualValues(t, b, entries[0].(map[string]interface{})["userId"])

	code, body = s.do(t, "GET", fmt.Sprintf("/api/leaderboard/user/%d", a), nil, "")
	require.Equal(t, 200, code)
	overall := body["rankings"].(map[string]interface{})["overall"].(map[string]interface{})
	assert.EqualValues(t, 2, overall["rank"])
	assert.EqualValues(t, 2, overall["total"])

	code, _ = s.do(t, "GET", "/api/leaderboard?filter=galaxy", nil, "")
	assert.Equal(t, 400, code)
}

func TestNotificationEndpoints(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.register(t, "gus")

	code, _ := s.do(t, "POST", "/api/notifications", fiber.Map{"userId": id, "text": "Welcome"}, "")
	require.Equal(t, 201, code)
	code, _ = s.do(t, "POST", "/api/notifications", fiber.Map{"userId": id}, "")
	assert.Equal(t, 400, code)

	code, body := s.do(t, "GET", fmt.Sprintf("/api/notifications/%d", id), nil, "")
	require.Equal(t, 200, code)
	list := body["notifications"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "System", list[0].(map[string]interface{})["type"])

	code, body = s.do(t, "PUT", fmt.Sprintf("/api/notifications/%d/read-all", id), nil, "")
	require.Equal(t, 200, code)
	assert.EqualValues(t, 1, body["updated"])

	code, body = s.do(t, "DELETE", fmt.Sprintf("/api/notifications/%d", id), nil, "")
	require.Equal(t, 200, code)
	assert.EqualValues(t, 1, body["deleted"])
}

func TestSweepRequiresToken(t *testing.T) {
	s := newTestServer(t)
	_, token := s.register(t, "hal")

	code, _ := s.do(t, "POST", "/api/maintenance/sweep", nil, "")
	assert.Equal(t, 401, code)

	code, body := s.do(t, "POST", "/api/maintenance/sweep", nil, token)
	require.Equal(t, 200, code)
	assert.EqualValues(t, 0, body["reset"])
}

func TestErrorHandlerHidesDetailsInProduction(t *testing.T) {
	for _, tc := range []struct {
		production bool
		want       string
	}{
		{false, "database is locked"},
		{true, "An error occurred. Please try again later."},
	} {
		app := fiber.New(fiber.Config{ErrorHandler: customErrorHandler(tc.production)})
		app.Get("/boom", func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusInternalServerError, "database is locked")
		})
		resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
		require.NoError(t, err)
		assert.Equal(t, 500, resp.StatusCode)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, tc.want, body["error"])
		assert.Equal(t, false, body["success"])
	}
}
