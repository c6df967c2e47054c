package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"campusquest/database"
	"campusquest/models"
)

// Outcome tags what a progression call did.
type Outcome string

const (
	// OutcomeAwarded: first completion, XP was paid.
	OutcomeAwarded Outcome = "awarded"
	// OutcomeAlreadyCompleted: ledger already had the pair, nothing changed.
	OutcomeAlreadyCompleted Outcome = "already_completed"
	// OutcomeProgressed: challenge counter moved without completing.
	OutcomeProgressed Outcome = "progressed"
	// OutcomeCompleted: challenge reached its target and paid its reward.
	OutcomeCompleted Outcome = "completed"
	// OutcomeCompletedToday: challenge was already paid today; no-op.
	OutcomeCompletedToday Outcome = "already_completed_today"
)

// LedgerEntry is one once-per-user completion. Row must be a pointer to the
// completion model for Kind, already filled in.
type LedgerEntry struct {
	Kind       models.XPSource
	ActivityID uint
	UserID     uint
	Award      int
	Row        interface{}
}

type LedgerResult struct {
	Awarded bool
	Profile ProfileSnapshot
}

type ledgerTable struct {
	table  string
	column string
}

var ledgerTables = map[models.XPSource]ledgerTable{
	models.XPSourceQuiz:       {table: "quiz_completions", column: "quiz_id"},
	models.XPSourceFlashcard:  {table: "flashcard_completions", column: "flashcard_set_id"},
	models.XPSourceDailyBonus: {table: "daily_bonuses", column: "day"},
}

// Ledger pays each (activity, user) pair at most once.
type Ledger struct {
	tx *database.TxRunner
}

func NewLedger(tx *database.TxRunner) *Ledger {
	return &Ledger{tx: tx}
}

var errLedgerRace = errors.New("completion inserted concurrently")

// Record inserts the completion row and applies its award in one
// transaction. If the pair is already recorded, including by a concurrent
// writer that wins the unique index, it returns Awarded=false and the
// current totals without writing anything.
func (l *Ledger) Record(ctx context.Context, e LedgerEntry) (LedgerResult, error) {
	lt, ok := ledgerTables[e.Kind]
	if !ok {
		return LedgerResult{}, ValidationError("unknown completion kind " + string(e.Kind))
	}
	award := e.Award
	if award < 0 {
		award = 0
	}

	var result LedgerResult
	err := l.tx.InTx(ctx, func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Table(lt.table).
			Where(lt.column+" = ? AND user_id = ?", e.ActivityID, e.UserID).
			Count(&existing).Error; err != nil {
			return mapStoreError("check completion", err)
		}
		if existing > 0 {
			snap, err := loadSnapshot(tx, e.UserID)
			if err != nil {
				return err
			}
			result = LedgerResult{Awarded: false, Profile: snap}
			return nil
		}

		if err := tx.Create(e.Row).Error; err != nil {
			if isUniqueViolation(err) {
				return errLedgerRace
			}
			return mapStoreError("insert completion", err)
		}

		snap, err := applyExperience(tx, e.UserID, e.Kind, e.ActivityID, addXP(award))
		if err != nil {
			return err
		}
		result = LedgerResult{Awarded: true, Profile: snap}
		return nil
	})

	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, errLedgerRace):
		// Postgres aborts the transaction on a constraint error, so re-read
		// outside it.
		snap, rerr := loadSnapshot(l.tx.DB().WithContext(ctx), e.UserID)
		if rerr != nil {
			return LedgerResult{}, rerr
		}
		return LedgerResult{Awarded: false, Profile: snap}, nil
	default:
		return LedgerResult{}, mapStoreError("record completion", err)
	}
}
