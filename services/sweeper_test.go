package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusquest/logger"
	"campusquest/models"
)

func TestSweepResetsOnlyStaleCompletions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stale := env.seedUser(t, "sol", 0)
	fresh := env.seedUser(t, "tia", 0)
	challenge := env.seedChallenge(t, 1, 25)

	_, err := env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: stale})
	require.NoError(t, err)

	env.clock.Advance(24 * time.Hour)
	_, err = env.prog.UpdateChallengeProgress(ctx, ChallengeProgressInput{ChallengeID: challenge, UserID: fresh})
	require.NoError(t, err)

	sweeper := NewResetSweeper(env.prog, time.Hour, logger.Nop())
	n, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.False(t, env.progressRow(t, challenge, stale).Completed)
	assert.True(t, env.progressRow(t, challenge, fresh).Completed)

	n, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	xp, _ := env.profileXP(t, stale)
	assert.Equal(t, 25, xp, "reset never takes XP back")
}

func TestSweeperStartStop(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "uma", 0)
	challenge := env.seedChallenge(t, 1, 5)
	yesterday := env.clock.T.Add(-24 * time.Hour)
	require.NoError(t, env.db.Create(&models.ChallengeProgress{
		ChallengeID: challenge, UserID: user, Progress: 1, Completed: true, CompletedAt: &yesterday, JoinedAt: yesterday,
	}).Error)

	sweeper := NewResetSweeper(env.prog, 10*time.Millisecond, logger.Nop())
	sweeper.Start(context.Background())
	sweeper.Start(context.Background())

	assert.Eventually(t, func() bool {
		var row models.ChallengeProgress
		if err := env.db.Where("user_id = ?", user).Take(&row).Error; err != nil {
			return false
		}
		return !row.Completed
	}, 2*time.Second, 10*time.Millisecond)

	sweeper.Stop()
	sweeper.Stop()
}
