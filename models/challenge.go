// models/challenge.go - Challenge and completion records
package models

import (
	"time"
)

// Challenge is a repeatable goal: reach MaxProgress to earn XPReward.
// Progress on a completed challenge resets on the next calendar day.
type Challenge struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"not null;size:200"`
	Description string    `json:"description" gorm:"type:text"`
	Category    string    `json:"category" gorm:"size:100;not null;default:'Study'"`
	XPReward    int       `json:"xp_reward" gorm:"not null;default:500"`
	MaxProgress int       `json:"max_progress" gorm:"not null;default:10"`
	CreatedBy   *uint     `json:"created_by" gorm:"index"`
	EndDate     time.Time `json:"end_date" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Challenge) TableName() string {
	return "challenges"
}

// ChallengeProgress is one user's standing on one challenge.
type ChallengeProgress struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	ChallengeID uint       `json:"challenge_id" gorm:"not null;uniqueIndex:idx_challenge_progress_user,priority:1"`
	UserID      uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_challenge_progress_user,priority:2;index"`
	Progress    int        `json:"progress" gorm:"not null;default:0"`
	Completed   bool       `json:"completed" gorm:"not null;default:false"`
	CompletedAt *time.Time `json:"completed_at"`
	XPEarned    int        `json:"xp_earned" gorm:"not null;default:0"`
	JoinedAt    time.Time  `json:"joined_at" gorm:"not null"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (ChallengeProgress) TableName() string {
	return "challenge_progress"
}

// QuizCompletion is a once-per-user ledger entry. XPEarned never changes.
type QuizCompletion struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	QuizID         uint      `json:"quiz_id" gorm:"not null;uniqueIndex:idx_quiz_completion_user,priority:1"`
	UserID         uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_quiz_completion_user,priority:2;index"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Passed         bool      `json:"passed"`
	XPEarned       int       `json:"xp_earned" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at"`
}

func (QuizCompletion) TableName() string {
	return "quiz_completions"
}

type FlashcardCompletion struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	FlashcardSetID uint      `json:"flashcard_set_id" gorm:"not null;uniqueIndex:idx_flashcard_completion_user,priority:1"`
	UserID         uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_flashcard_completion_user,priority:2;index"`
	XPEarned       int       `json:"xp_earned" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at"`
}

func (FlashcardCompletion) TableName() string {
	return "flashcard_completions"
}

type XPSource string

const (
	XPSourceQuiz      XPSource = "quiz"
	XPSourceFlashcard XPSource = "flashcard"
	XPSourceChallenge XPSource = "challenge"
	XPSourceAdmin     XPSource = "admin"
	// XPSourceDailyBonus events carry the calendar day as YYYYMMDD in SourceID.
	XPSourceDailyBonus XPSource = "daily_bonus"
)

// XPEvent is the audit trail of every experience change.
type XPEvent struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Source    XPSource  `json:"source" gorm:"size:20;not null"`
	SourceID  uint      `json:"source_id"`
	Amount    int       `json:"amount"`
	XPAfter   int       `json:"xp_after"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (XPEvent) TableName() string {
	return "xp_events"
}

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&UserProfile{},
		&Quiz{},
		&QuizQuestion{},
		&QuizChoice{},
		&FlashcardSet{},
		&FlashcardCard{},
		&Challenge{},
		&ChallengeProgress{},
		&QuizCompletion{},
		&FlashcardCompletion{},
		&XPEvent{},
		&Notification{},
		&DailyTask{},
		&DailyTaskStatus{},
		&DailyBonus{},
	}
}
