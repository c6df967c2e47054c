package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"campusquest/database"
	"campusquest/logger"
	"campusquest/models"
)

// Invalidator is told when committed XP changes make cached rankings stale.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Progression is the single entry point for everything that awards XP.
type Progression struct {
	db     *gorm.DB
	tx     *database.TxRunner
	ledger *Ledger
	clock  Clock
	locks  *KeyedMutex
	log    *logger.Logger
	board  Invalidator
}

func NewProgression(db *gorm.DB, clock Clock, locks *KeyedMutex, log *logger.Logger, board Invalidator) *Progression {
	if clock == nil {
		clock = NewSystemClock(time.Local)
	}
	if locks == nil {
		locks = NewKeyedMutex()
	}
	if log == nil {
		log = logger.Nop()
	}
	tx := database.NewTxRunner(db)
	return &Progression{
		db:     db,
		tx:     tx,
		ledger: NewLedger(tx),
		clock:  clock,
		locks:  locks,
		log:    log.With("component", "progression"),
		board:  board,
	}
}

type QuizCompletionInput struct {
	QuizID         uint
	UserID         uint
	Score          int
	TotalQuestions int
	Passed         bool
	XPEarned       int
}

type FlashcardCompletionInput struct {
	SetID    uint
	UserID   uint
	XPEarned int
}

// CompletionResult is the outcome of a quiz or flashcard completion.
type CompletionResult struct {
	Outcome   Outcome         `json:"status"`
	XPAwarded int             `json:"xpAwarded"`
	Profile   ProfileSnapshot `json:"user"`
}

func (r CompletionResult) AlreadyCompleted() bool {
	return r.Outcome == OutcomeAlreadyCompleted
}

type ChallengeProgressInput struct {
	ChallengeID uint
	UserID      uint
	// Progress sets the counter explicitly. Nil means increment by one.
	Progress *int
}

// ChallengeResult reports a user's standing after a progress update.
type ChallengeResult struct {
	Outcome     Outcome         `json:"status"`
	Completed   bool            `json:"completed"`
	Progress    int             `json:"progress"`
	MaxProgress int             `json:"maxProgress"`
	XPEarned    int             `json:"xpEarned"`
	Profile     ProfileSnapshot `json:"user"`
}

func (p *Progression) RecordQuizCompletion(ctx context.Context, in QuizCompletionInput) (CompletionResult, error) {
	if in.QuizID == 0 || in.UserID == 0 {
		return CompletionResult{}, ValidationError("quizId and userId are required")
	}
	award := max(in.XPEarned, 0)

	unlock := p.locks.Lock(fmt.Sprintf("quiz:%d:%d", in.QuizID, in.UserID))
	defer unlock()

	if err := p.ensureExists(ctx, &models.Quiz{}, "id", in.QuizID, "quiz"); err != nil {
		return CompletionResult{}, err
	}
	if err := p.ensureUser(ctx, in.UserID); err != nil {
		return CompletionResult{}, err
	}

	res, err := p.ledger.Record(ctx, LedgerEntry{
		Kind:       models.XPSourceQuiz,
		ActivityID: in.QuizID,
		UserID:     in.UserID,
		Award:      award,
		Row: &models.QuizCompletion{
			QuizID:         in.QuizID,
			UserID:         in.UserID,
			Score:          in.Score,
			TotalQuestions: in.TotalQuestions,
			Passed:         in.Passed,
			XPEarned:       award,
		},
	})
	if err != nil {
		p.log.Error("quiz completion failed", "quiz_id", in.QuizID, "user_id", in.UserID, "error", err)
		return CompletionResult{}, err
	}
	return p.completionResult(ctx, res, award, "quiz_id", in.QuizID, in.UserID), nil
}

func (p *Progression) RecordFlashcardCompletion(ctx context.Context, in FlashcardCompletionInput) (CompletionResult, error) {
	if in.SetID == 0 || in.UserID == 0 {
		return CompletionResult{}, ValidationError("setId and userId are required")
	}
	award := max(in.XPEarned, 0)

	unlock := p.locks.Lock(fmt.Sprintf("flashcard:%d:%d", in.SetID, in.UserID))
	defer unlock()

	if err := p.ensureExists(ctx, &models.FlashcardSet{}, "id", in.SetID, "flashcard set"); err != nil {
		return CompletionResult{}, err
	}
	if err := p.ensureUser(ctx, in.UserID); err != nil {
		return CompletionResult{}, err
	}

	res, err := p.ledger.Record(ctx, LedgerEntry{
		Kind:       models.XPSourceFlashcard,
		ActivityID: in.SetID,
		UserID:     in.UserID,
		Award:      award,
		Row: &models.FlashcardCompletion{
			FlashcardSetID: in.SetID,
			UserID:         in.UserID,
			XPEarned:       award,
		},
	})
	if err != nil {
		p.log.Error("flashcard completion failed", "set_id", in.SetID, "user_id", in.UserID, "error", err)
		return CompletionResult{}, err
	}
	return p.completionResult(ctx, res, award, "set_id", in.SetID, in.UserID), nil
}

func (p *Progression) completionResult(ctx context.Context, res LedgerResult, award int, idKey string, id, userID uint) CompletionResult {
	if !res.Awarded {
		p.log.Debug("completion already recorded", idKey, id, "user_id", userID)
		return CompletionResult{Outcome: OutcomeAlreadyCompleted, Profile: res.Profile}
	}
	p.log.Info("completion recorded", idKey, id, "user_id", userID, "xp", award, "total_xp", res.Profile.XP)
	p.invalidate(ctx)
	return CompletionResult{Outcome: OutcomeAwarded, XPAwarded: award, Profile: res.Profile}
}

// UpdateChallengeProgress moves a user's counter on a challenge. The order
// is fixed: auto-join and normalize a stale completion (committed on its
// own), then apply the new counter, then pay the reward at most once per
// calendar day.
func (p *Progression) UpdateChallengeProgress(ctx context.Context, in ChallengeProgressInput) (ChallengeResult, error) {
	if in.ChallengeID == 0 || in.UserID == 0 {
		return ChallengeResult{}, ValidationError("challengeId and userId are required")
	}
	if in.Progress != nil && *in.Progress < 0 {
		return ChallengeResult{}, ValidationError("progress must not be negative")
	}

	unlock := p.locks.Lock(challengeKey(in.ChallengeID, in.UserID))
	defer unlock()

	challenge, err := p.loadChallenge(ctx, in.ChallengeID)
	if err != nil {
		return ChallengeResult{}, err
	}
	if err := p.ensureUser(ctx, in.UserID); err != nil {
		return ChallengeResult{}, err
	}

	now := p.clock.Now()
	loc := p.clock.Location()

	if _, err := p.joinAndNormalize(ctx, in.ChallengeID, in.UserID, now, loc); err != nil {
		return ChallengeResult{}, err
	}

	var result ChallengeResult
	err = p.tx.InTx(ctx, func(tx *gorm.DB) error {
		var row models.ChallengeProgress
		if err := tx.Where("challenge_id = ? AND user_id = ?", in.ChallengeID, in.UserID).Take(&row).Error; err != nil {
			return mapStoreError("load challenge progress", err)
		}

		if ClassifyChallenge(&row, now, loc) == ChallengeCompletedToday {
			r, err := completedTodayResult(tx, row, challenge)
			result = r
			return err
		}

		next := row.Progress + 1
		if in.Progress != nil {
			next = *in.Progress
		}
		next = clampInt(next, 0, max(challenge.MaxProgress, 0))

		if next < challenge.MaxProgress {
			if err := tx.Model(&models.ChallengeProgress{}).
				Where("id = ?", row.ID).
				Update("progress", next).Error; err != nil {
				return mapStoreError("update challenge progress", err)
			}
			snap, err := loadSnapshot(tx, in.UserID)
			if err != nil {
				return err
			}
			result = ChallengeResult{
				Outcome:     OutcomeProgressed,
				Progress:    next,
				MaxProgress: challenge.MaxProgress,
				Profile:     snap,
			}
			return nil
		}

		reward := max(challenge.XPReward, 0)
		completedAt := now.UTC()
		res := tx.Model(&models.ChallengeProgress{}).
			Where("id = ? AND completed = ?", row.ID, false).
			Updates(map[string]interface{}{
				"progress":     next,
				"completed":    true,
				"completed_at": completedAt,
				"xp_earned":    reward,
			})
		if res.Error != nil {
			return mapStoreError("complete challenge", res.Error)
		}
		if res.RowsAffected == 0 {
			// Another writer completed the row first and has paid the reward.
			if err := tx.Where("id = ?", row.ID).Take(&row).Error; err != nil {
				return mapStoreError("reload challenge progress", err)
			}
			r, err := completedTodayResult(tx, row, challenge)
			result = r
			return err
		}

		snap, err := applyExperience(tx, in.UserID, models.XPSourceChallenge, challenge.ID, addXP(reward))
		if err != nil {
			return err
		}
		result = ChallengeResult{
			Outcome:     OutcomeCompleted,
			Completed:   true,
			Progress:    next,
			MaxProgress: challenge.MaxProgress,
			XPEarned:    reward,
			Profile:     snap,
		}
		return nil
	})
	if err != nil {
		p.log.Error("challenge progress failed", "challenge_id", in.ChallengeID, "user_id", in.UserID, "error", err)
		return ChallengeResult{}, mapStoreError("update challenge progress", err)
	}

	if result.Outcome == OutcomeCompleted {
		p.log.Info("challenge completed", "challenge_id", in.ChallengeID, "user_id", in.UserID, "xp", result.XPEarned, "total_xp", result.Profile.XP)
		p.invalidate(ctx)
	}
	return result, nil
}

func completedTodayResult(tx *gorm.DB, row models.ChallengeProgress, challenge models.Challenge) (ChallengeResult, error) {
	snap, err := loadSnapshot(tx, row.UserID)
	if err != nil {
		return ChallengeResult{}, err
	}
	return ChallengeResult{
		Outcome:     OutcomeCompletedToday,
		Completed:   true,
		Progress:    row.Progress,
		MaxProgress: challenge.MaxProgress,
		Profile:     snap,
	}, nil
}

var errJoinRace = errors.New("challenge joined concurrently")

// joinAndNormalize creates the zero-state row if missing and clears a stale
// completion. It commits independently of whatever the caller does next.
// Callers must hold the challenge key lock.
func (p *Progression) joinAndNormalize(ctx context.Context, challengeID, userID uint, now time.Time, loc *time.Location) (models.ChallengeProgress, error) {
	row, err := p.tryJoinAndNormalize(ctx, challengeID, userID, now, loc)
	if errors.Is(err, errJoinRace) {
		// The row exists now; the retry loads and normalizes it.
		row, err = p.tryJoinAndNormalize(ctx, challengeID, userID, now, loc)
	}
	return row, err
}

func (p *Progression) tryJoinAndNormalize(ctx context.Context, challengeID, userID uint, now time.Time, loc *time.Location) (models.ChallengeProgress, error) {
	var row models.ChallengeProgress
	err := p.tx.InTx(ctx, func(tx *gorm.DB) error {
		err := tx.Where("challenge_id = ? AND user_id = ?", challengeID, userID).Take(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.ChallengeProgress{
				ChallengeID: challengeID,
				UserID:      userID,
				JoinedAt:    now.UTC(),
			}
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					return errJoinRace
				}
				return mapStoreError("join challenge", err)
			}
			return nil
		case err != nil:
			return mapStoreError("load challenge progress", err)
		}
		_, err = persistNormalization(tx, &row, now, loc)
		return err
	})
	return row, err
}

// persistNormalization applies NormalizeChallenge to row and writes the
// reset if one was needed.
func persistNormalization(tx *gorm.DB, row *models.ChallengeProgress, now time.Time, loc *time.Location) (bool, error) {
	if !NormalizeChallenge(row, now, loc) {
		return false, nil
	}
	res := tx.Model(&models.ChallengeProgress{}).
		Where("id = ? AND completed = ?", row.ID, true).
		Updates(resetColumns())
	if res.Error != nil {
		return false, mapStoreError("reset challenge progress", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// normalizeUnderLock re-reads one row under its key lock and clears it if
// stale. Used by readers and the sweeper, which see rows outside the write
// path.
func (p *Progression) normalizeUnderLock(ctx context.Context, challengeID, userID uint) (models.ChallengeProgress, bool, error) {
	unlock := p.locks.Lock(challengeKey(challengeID, userID))
	defer unlock()

	now := p.clock.Now()
	var row models.ChallengeProgress
	var changed bool
	err := p.tx.InTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("challenge_id = ? AND user_id = ?", challengeID, userID).Take(&row).Error; err != nil {
			return mapStoreError("load challenge progress", err)
		}
		var err error
		changed, err = persistNormalization(tx, &row, now, p.clock.Location())
		return err
	})
	return row, changed, err
}

// JoinChallenge creates the user's zero-state progress row.
func (p *Progression) JoinChallenge(ctx context.Context, challengeID, userID uint) (*models.ChallengeProgress, error) {
	if challengeID == 0 || userID == 0 {
		return nil, ValidationError("challengeId and userId are required")
	}
	unlock := p.locks.Lock(challengeKey(challengeID, userID))
	defer unlock()

	if _, err := p.loadChallenge(ctx, challengeID); err != nil {
		return nil, err
	}
	if err := p.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	row := models.ChallengeProgress{
		ChallengeID: challengeID,
		UserID:      userID,
		JoinedAt:    p.clock.Now().UTC(),
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ConflictError("already joined this challenge")
		}
		return nil, mapStoreError("join challenge", err)
	}
	return &row, nil
}

// SetExperience overwrites a user's XP. The level is always re-derived.
func (p *Progression) SetExperience(ctx context.Context, userID uint, xp int) (ProfileSnapshot, error) {
	if userID == 0 {
		return ProfileSnapshot{}, ValidationError("userId is required")
	}
	if xp < 0 {
		return ProfileSnapshot{}, ValidationError("xp must not be negative")
	}

	var snap ProfileSnapshot
	err := p.tx.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		snap, err = applyExperience(tx, userID, models.XPSourceAdmin, 0, setXP(xp))
		return err
	})
	if err != nil {
		return ProfileSnapshot{}, mapStoreError("set experience", err)
	}
	p.log.Info("experience set", "user_id", userID, "xp", snap.XP, "level", snap.Level)
	p.invalidate(ctx)
	return snap, nil
}

// Progression returns a user's current totals.
func (p *Progression) Progression(ctx context.Context, userID uint) (ProfileSnapshot, error) {
	if userID == 0 {
		return ProfileSnapshot{}, ValidationError("userId is required")
	}
	return loadSnapshot(p.db.WithContext(ctx), userID)
}

func (p *Progression) loadChallenge(ctx context.Context, id uint) (models.Challenge, error) {
	var c models.Challenge
	if err := p.db.WithContext(ctx).Take(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c, NotFoundError("challenge")
		}
		return c, mapStoreError("load challenge", err)
	}
	return c, nil
}

func (p *Progression) ensureUser(ctx context.Context, userID uint) error {
	return p.ensureExists(ctx, &models.UserProfile{}, "user_id", userID, "user")
}

func (p *Progression) ensureExists(ctx context.Context, model interface{}, column string, id uint, what string) error {
	var n int64
	if err := p.db.WithContext(ctx).Model(model).Where(column+" = ?", id).Count(&n).Error; err != nil {
		return mapStoreError("check "+what, err)
	}
	if n == 0 {
		return NotFoundError(what)
	}
	return nil
}

func (p *Progression) invalidate(ctx context.Context) {
	if p.board == nil {
		return
	}
	if err := p.board.Invalidate(ctx); err != nil {
		p.log.Warn("leaderboard invalidation failed", "error", err)
	}
}

func challengeKey(challengeID, userID uint) string {
	return fmt.Sprintf("challenge:%d:%d", challengeID, userID)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
