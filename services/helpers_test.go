package services

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"campusquest/cache"
	"campusquest/database"
	"campusquest/logger"
	"campusquest/models"
)

type testEnv struct {
	db    *gorm.DB
	clock *FixedClock
	board *Leaderboard
	prog  *Progression
	cont  *Content
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "campus.db"), nil)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	clock := &FixedClock{T: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC), Loc: time.UTC}
	board := NewLeaderboard(db, cache.NewMemory(), time.Minute, logger.Nop())
	prog := NewProgression(db, clock, NewKeyedMutex(), logger.Nop(), board)
	return &testEnv{
		db:    db,
		clock: clock,
		board: board,
		prog:  prog,
		cont:  NewContent(db, clock, prog),
	}
}

func (e *testEnv) seedUser(t *testing.T, name string, xp int) uint {
	t.Helper()
	user := models.User{Email: name + "@mavs.uta.edu", PasswordHash: "x"}
	require.NoError(t, e.db.Create(&user).Error)
	profile := models.UserProfile{
		UserID:      user.ID,
		FirstName:   name,
		LastName:    "Test",
		DisplayName: name,
		XP:          xp,
		Level:       1,
	}
	require.NoError(t, e.db.Create(&profile).Error)
	return user.ID
}

func (e *testEnv) seedQuiz(t *testing.T) uint {
	t.Helper()
	q := models.Quiz{Title: "Calc I", IsPublic: true}
	require.NoError(t, e.db.Create(&q).Error)
	return q.ID
}

func (e *testEnv) seedSet(t *testing.T) uint {
	t.Helper()
	s := models.FlashcardSet{Title: "Bio terms", IsPublic: true}
	require.NoError(t, e.db.Create(&s).Error)
	return s.ID
}

func (e *testEnv) seedChallenge(t *testing.T, target, reward int) uint {
	t.Helper()
	c := models.Challenge{
		Title:       "Study streak",
		Category:    "Study",
		XPReward:    reward,
		MaxProgress: target,
		EndDate:     e.clock.T.AddDate(0, 0, 14),
	}
	require.NoError(t, e.db.Create(&c).Error)
	return c.ID
}

func (e *testEnv) profileXP(t *testing.T, userID uint) (int, int) {
	t.Helper()
	var p models.UserProfile
	require.NoError(t, e.db.Where("user_id = ?", userID).Take(&p).Error)
	return p.XP, p.Level
}

func (e *testEnv) progressRow(t *testing.T, challengeID, userID uint) models.ChallengeProgress {
	t.Helper()
	var row models.ChallengeProgress
	require.NoError(t, e.db.Where("challenge_id = ? AND user_id = ?", challengeID, userID).Take(&row).Error)
	return row
}

func (e *testEnv) count(t *testing.T, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

var errInjected = errors.New("injected failure")

// failProfileUpdates makes every UPDATE on user_profiles fail until the
// returned func is called.
func failProfileUpdates(t *testing.T, db *gorm.DB) func() {
	t.Helper()
	const name = "test:fail_profile_update"
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == "user_profiles" {
			_ = tx.AddError(errInjected)
		}
	}))
	removed := false
	restore := func() {
		if !removed {
			removed = true
			require.NoError(t, db.Callback().Update().Remove(name))
		}
	}
	t.Cleanup(restore)
	return restore
}

func intPtr(v int) *int { return &v }
