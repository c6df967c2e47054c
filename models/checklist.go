// models/checklist.go - Daily checklist
package models

import (
	"time"
)

// DailyTask is one item on a user's recurring daily checklist.
type DailyTask struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	TaskText  string    `json:"task_text" gorm:"not null;size:200"`
	IsDefault bool      `json:"is_default" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}

func (DailyTask) TableName() string {
	return "daily_tasks"
}

// DailyTaskStatus records a task's completion on one calendar day. Day is
// YYYY-MM-DD in the server's calendar location.
type DailyTaskStatus struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	TaskID      uint       `json:"task_id" gorm:"not null;uniqueIndex:idx_daily_task_status_day,priority:1"`
	Day         string     `json:"day" gorm:"size:10;not null;uniqueIndex:idx_daily_task_status_day,priority:2"`
	Completed   bool       `json:"completed" gorm:"not null;default:false"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (DailyTaskStatus) TableName() string {
	return "daily_task_status"
}

// DailyBonus is the once-per-day ledger entry for finishing the whole
// checklist. Day is YYYYMMDD.
type DailyBonus struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Day       uint      `json:"day" gorm:"not null;uniqueIndex:idx_daily_bonus_user,priority:1"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_daily_bonus_user,priority:2;index"`
	XPEarned  int       `json:"xp_earned" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
}

func (DailyBonus) TableName() string {
	return "daily_bonuses"
}
