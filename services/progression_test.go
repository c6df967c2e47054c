package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusquest/models"
)

func TestEndToEndFlashcardThenChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "ana", 0)
	set := env.seedSet(t)

	res, err := env.prog.RecordFlashcardCompletion(ctx, FlashcardCompletionInput{SetID: set, UserID: user, XPEarned: 150})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwarded, res.Outcome)
	assert.Equal(t, 150, res.Profile.XP)
	assert.Equal(t, 2, res.Profile.Level)

	res, err = env.prog.RecordFlashcardCompletion(ctx, FlashcardCompletionInput{SetID: set, UserID: user, XPEarned: 150})
	require.NoError(t, err)
	assert.True(t, res.AlreadyCompleted())
	assert.Equal(t, 150, res.Profile.XP)
	assert.Equal(t, 2, res.Profile.Level)

	challenge := env.seedChallenge(t, 3, 500)
	_, err = env.prog.JoinChallenge(ctx, challenge, user)
	require.NoError(t, err)

	var last ChallengeResult
	for i := 1; i <= 3; i++ {
		last, err = env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user})
		require.NoError(t, err)
		assert.Equal(t, i, last.Progress)
		if i < 3 {
			assert.False(t, last.Completed)
			assert.Equal(t, OutcomeProgressed, last.Outcome)
		}
	}
	assert.True(t, last.Completed)
	assert.Equal(t, OutcomeCompleted, last.Outcome)
	assert.Equal(t, 500, last.XPEarned)
	assert.Equal(t, 650, last.Profile.XP)
	assert.Equal(t, 4, last.Profile.Level)

	xp, level := env.profileXP(t, user)
	assert.Equal(t, 650, xp)
	assert.Equal(t, 4, level, "cached level follows xp")
}

func TestQuizCompletionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "ben", 90)
	quiz := env.seedQuiz(t)

	in := QuizCompletionInput{QuizID: quiz, UserID: user, Score: 8, TotalQuestions: 10, Passed: true, XPEarned: 20}
	first, err := env.prog.RecordQuizCompletion(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwarded, first.Outcome)
	assert.Equal(t, 20, first.XPAwarded)
	assert.Equal(t, 110, first.Profile.XP)
	assert.Equal(t, 2, first.Profile.Level)

	in.XPEarned = 999
	second, err := env.prog.RecordQuizCompletion(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyCompleted, second.Outcome)
	assert.Zero(t, second.XPAwarded)
	assert.Equal(t, first.Profile.XP, second.Profile.XP)
	assert.Equal(t, first.Profile.Level, second.Profile.Level)

	var row models.QuizCompletion
	require.NoError(t, env.db.Where("quiz_id = ? AND user_id = ?", quiz, user).Take(&row).Error)
	assert.Equal(t, 20, row.XPEarned, "award is fixed at first completion")
	assert.Equal(t, 8, row.Score)
	assert.True(t, row.Passed)

	assert.Equal(t, int64(1), env.count(t, &models.XPEvent{}, "user_id = ?", user))
}

func TestZeroAndNegativeAwardsStillRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "cam", 0)
	quiz := env.seedQuiz(t)
	set := env.seedSet(t)

	res, err := env.prog.RecordQuizCompletion(ctx, QuizCompletionInput{QuizID: quiz, UserID: user, XPEarned: 0})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwarded, res.Outcome)
	assert.Equal(t, 0, res.Profile.XP)

	res, err = env.prog.RecordFlashcardCompletion(ctx, FlashcardCompletionInput{SetID: set, UserID: user, XPEarned: -50})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwarded, res.Outcome)
	assert.Equal(t, 0, res.XPAwarded)
	assert.Equal(t, 0, res.Profile.XP)

	assert.Equal(t, int64(1), env.count(t, &models.QuizCompletion{}, "user_id = ?", user))
	assert.Equal(t, int64(1), env.count(t, &models.FlashcardCompletion{}, "user_id = ?", user))
	assert.Zero(t, env.count(t, &models.XPEvent{}, "user_id = ?", user))
}

func TestCompletionErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "dee", 0)
	quiz := env.seedQuiz(t)

	_, err := env.prog.RecordQuizCompletion(ctx, QuizCompletionInput{UserID: user})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.prog.RecordQuizCompletion(ctx, QuizCompletionInput{QuizID: 404, UserID: user})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "quiz not found", Message(err))

	_, err = env.prog.RecordQuizCompletion(ctx, QuizCompletionInput{QuizID: quiz, UserID: 404})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.prog.RecordFlashcardCompletion(ctx, FlashcardCompletionInput{SetID: 404, UserID: user})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: 404, UserID: user})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Zero(t, env.count(t, &models.QuizCompletion{}, "1 = 1"))
}

func TestChallengeResetsNextDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "eli", 0)
	challenge := env.seedChallenge(t, 2, 100)

	for i := 0; i < 2; i++ {
		_, err := env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user})
		require.NoError(t, err)
	}
	row := env.progressRow(t, challenge, user)
	require.True(t, row.Completed)
	require.NotNil(t, row.CompletedAt)
	assert.Equal(t, 100, row.XPEarned)

	env.clock.Advance(24 * time.Hour)

	res, err := env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Progress, "counter restarts from zero before the increment")
	assert.False(t, res.Completed)
	assert.Equal(t, OutcomeProgressed, res.Outcome)

	row = env.progressRow(t, challenge, user)
	assert.False(t, row.Completed)
	assert.Nil(t, row.CompletedAt)
	assert.Zero(t, row.XPEarned)

	res, err = env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, 100, res.XPEarned)
	assert.Equal(t, 200, res.Profile.XP, "second day pays again")
}

func TestChallengeSameDayRePingDoesNotReaward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "fay", 0)
	challenge := env.seedChallenge(t, 1, 300)

	res, err := env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user})
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 300, res.Profile.XP)

	env.clock.Advance(6 * time.Hour)
	for _, p := range []*int{nil, intPtr(1), intPtr(5), intPtr(0)} {
		res, err = env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user, Progress: p})
		require.NoError(t, err)
		assert.Equal(t, OutcomeCompletedToday, res.Outcome)
		assert.True(t, res.Completed)
		assert.Equal(t, 1, res.Progress)
		assert.Zero(t, res.XPEarned)
		assert.Equal(t, 300, res.Profile.XP)
	}

	xp, _ := env.profileXP(t, user)
	assert.Equal(t, 300, xp)
}

func TestChallengeExplicitProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "gus", 0)
	challenge := env.seedChallenge(t, 5, 50)

	res, err := env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user, Progress: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Progress)
	assert.Equal(t, 5, res.MaxProgress)

	_, err = env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user, Progress: intPtr(-1)})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 3, env.progressRow(t, challenge, user).Progress)

	res, err = env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user, Progress: intPtr(40)})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Progress, "clamped to target")
	assert.True(t, res.Completed)
	assert.Equal(t, 50, res.XPEarned)
}

func TestChallengeAutoJoinAndExplicitJoin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "hal", 0)
	challenge := env.seedChallenge(t, 4, 10)

	res, err := env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Progress)
	assert.Equal(t, int64(1), env.count(t, &models.ChallengeProgress{}, "user_id = ?", user))

	_, err = env.prog.JoinChallenge(ctx, challenge, user)
	assert.ErrorIs(t, err, ErrConflict)

	other := env.seedUser(t, "ivy", 0)
	row, err := env.prog.JoinChallenge(ctx, challenge, other)
	require.NoError(t, err)
	assert.Zero(t, row.Progress)
	assert.False(t, row.Completed)

	_, err = env.prog.JoinChallenge(ctx, 999, other)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFailedAwardRollsBackAndRetrySucceedsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "jo", 0)
	set := env.seedSet(t)

	restore := failProfileUpdates(t, env.db)
	_, err := env.prog.RecordFlashcardCompletion(ctx, FlashcardCompletionInput{SetID: set, UserID: user, XPEarned: 120})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)

	assert.Zero(t, env.count(t, &models.FlashcardCompletion{}, "user_id = ?", user), "completion row rolled back")
	xp, _ := env.profileXP(t, user)
	assert.Zero(t, xp)

	restore()

	res, err := env.prog.RecordFlashcardCompletion(ctx, FlashcardCompletionInput{SetID: set, UserID: user, XPEarned: 120})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwarded, res.Outcome)

	res, err = env.prog.RecordFlashcardCompletion(ctx, FlashcardCompletionInput{SetID: set, UserID: user, XPEarned: 120})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyCompleted, res.Outcome)

	xp, level := env.profileXP(t, user)
	assert.Equal(t, 120, xp)
	assert.Equal(t, 2, level)
}

func TestChallengeNormalizationSurvivesFailedAward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "kai", 0)
	challenge := env.seedChallenge(t, 1, 75)

	_, err := env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user})
	require.NoError(t, err)

	env.clock.Advance(24 * time.Hour)
	restore := failProfileUpdates(t, env.db)
	_, err = env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user})
	require.Error(t, err)

	row := env.progressRow(t, challenge, user)
	assert.False(t, row.Completed, "reset committed on its own")
	assert.Zero(t, row.Progress)
	assert.Nil(t, row.CompletedAt)
	xp, _ := env.profileXP(t, user)
	assert.Equal(t, 75, xp)

	restore()
	res, err := env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 150, res.Profile.XP)
}

func TestConcurrentCompletionsAwardOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "lee", 0)
	quiz := env.seedQuiz(t)
	challenge := env.seedChallenge(t, 1, 40)

	const workers = 8
	var wg sync.WaitGroup
	outcomes := make(chan Outcome, 2*workers)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			res, err := env.prog.RecordQuizCompletion(ctx, QuizCompletionInput{QuizID: quiz, UserID: user, XPEarned: 60})
			if assert.NoError(t, err) {
				outcomes <- res.Outcome
			}
		}()
		go func() {
			defer wg.Done()
			res, err := env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: user})
			if assert.NoError(t, err) {
				outcomes <- res.Outcome
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[Outcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	assert.Equal(t, 1, counts[OutcomeAwarded])
	assert.Equal(t, 1, counts[OutcomeCompleted])
	assert.Equal(t, workers-1, counts[OutcomeAlreadyCompleted])
	assert.Equal(t, workers-1, counts[OutcomeCompletedToday])

	xp, _ := env.profileXP(t, user)
	assert.Equal(t, 100, xp)
	assert.Zero(t, env.prog.locks.size(), "lock table drained")
}

func TestSetExperienceRederivesLevel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "max", 0)

	snap, err := env.prog.SetExperience(ctx, user, 9999)
	require.NoError(t, err)
	assert.Equal(t, 19, snap.Level)

	snap, err = env.prog.SetExperience(ctx, user, 10000)
	require.NoError(t, err)
	assert.Equal(t, 20, snap.Level)
	assert.Equal(t, 100, snap.ProgressPercent)
	assert.Zero(t, snap.XPToNextLevel)

	_, err = env.prog.SetExperience(ctx, user, -5)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.prog.SetExperience(ctx, 999, 10)
	assert.ErrorIs(t, err, ErrNotFound)

	snap, err = env.prog.SetExperience(ctx, user, 150)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Level)

	read, err := env.prog.Progression(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, snap.XP, read.XP)
	assert.Equal(t, 2, read.Level)
	assert.Equal(t, 33, read.ProgressPercent)
	assert.Equal(t, 100, read.XPToNextLevel)

	var events []models.XPEvent
	require.NoError(t, env.db.Where("user_id = ?", user).Order("id").Find(&events).Error)
	require.Len(t, events, 3)
	assert.Equal(t, models.XPSourceAdmin, events[0].Source)
	assert.Equal(t, 9999, events[0].Amount)
	assert.Equal(t, -9850, events[2].Amount)
}

func TestLevelUpNotification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "ned", 90)
	quiz := env.seedQuiz(t)
	set := env.seedSet(t)

	_, err := env.prog.RecordQuizCompletion(ctx, QuizCompletionInput{QuizID: quiz, UserID: user, XPEarned: 5})
	require.NoError(t, err)
	assert.Zero(t, env.count(t, &models.Notification{}, "user_id = ?", user))

	_, err = env.prog.RecordFlashcardCompletion(ctx, FlashcardCompletionInput{SetID: set, UserID: user, XPEarned: 10})
	require.NoError(t, err)

	var notes []models.Notification
	require.NoError(t, env.db.Where("user_id = ?", user).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, "Level Up", notes[0].Type)
	assert.Contains(t, notes[0].Text, "level 2")
}
