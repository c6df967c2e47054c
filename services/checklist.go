package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campusquest/database"
	"campusquest/logger"
	"campusquest/models"
)

// DailyBonusXP is paid once per calendar day for finishing every task on the
// checklist.
const DailyBonusXP = 100

const (
	dayLayout       = "2006-01-02"
	maxTaskTextRune = 200
)

var defaultDailyTasks = []string{
	"Review at least 1 flashcard set",
	"Complete at least 1 quiz",
	"Create or edit a study set",
	"Check the leaderboard",
}

// ChecklistItem is one task with its status on the requested day.
type ChecklistItem struct {
	TaskID      uint       `json:"taskId"`
	TaskText    string     `json:"taskText"`
	IsDefault   bool       `json:"isDefault"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
}

// ChecklistDay is a user's checklist for one calendar day.
type ChecklistDay struct {
	Day          string          `json:"day"`
	Tasks        []ChecklistItem `json:"tasks"`
	AllCompleted bool            `json:"allCompleted"`
	BonusPaid    bool            `json:"bonusPaid"`
}

// TaskResult reports a task completion and whether it earned the day's
// bonus.
type TaskResult struct {
	TaskID         uint            `json:"taskId"`
	Day            string          `json:"day"`
	Completed      bool            `json:"completed"`
	AllCompleted   bool            `json:"allCompleted"`
	BonusXPAwarded int             `json:"bonusXpAwarded"`
	BonusPaid      bool            `json:"bonusPaid"`
	Profile        ProfileSnapshot `json:"user"`
}

// Checklist manages per-user daily tasks. Statuses are kept per calendar
// day, so a new day starts with every task open and nothing needs resetting.
type Checklist struct {
	db    *gorm.DB
	tx    *database.TxRunner
	clock Clock
	prog  *Progression
	log   *logger.Logger
}

func NewChecklist(db *gorm.DB, clock Clock, prog *Progression, log *logger.Logger) *Checklist {
	if clock == nil {
		clock = NewSystemClock(time.Local)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Checklist{
		db:    db,
		tx:    database.NewTxRunner(db),
		clock: clock,
		prog:  prog,
		log:   log.With("component", "checklist"),
	}
}

// seedDailyTasks gives a new account the default checklist.
func seedDailyTasks(tx *gorm.DB, userID uint) error {
	tasks := make([]models.DailyTask, 0, len(defaultDailyTasks))
	for _, text := range defaultDailyTasks {
		tasks = append(tasks, models.DailyTask{UserID: userID, TaskText: text, IsDefault: true})
	}
	if err := tx.Create(&tasks).Error; err != nil {
		return mapStoreError("create daily tasks", err)
	}
	return nil
}

// Day returns the checklist for day (YYYY-MM-DD). Empty means today.
func (c *Checklist) Day(ctx context.Context, userID uint, day string) (ChecklistDay, error) {
	if userID == 0 {
		return ChecklistDay{}, ValidationError("userId is required")
	}
	d, err := c.parseDay(day)
	if err != nil {
		return ChecklistDay{}, err
	}
	if err := c.prog.ensureUser(ctx, userID); err != nil {
		return ChecklistDay{}, err
	}
	db := c.db.WithContext(ctx)
	key := d.Format(dayLayout)

	var tasks []models.DailyTask
	if err := db.Where("user_id = ?", userID).Order("id").Find(&tasks).Error; err != nil {
		return ChecklistDay{}, mapStoreError("list daily tasks", err)
	}

	byTask := map[uint]models.DailyTaskStatus{}
	if len(tasks) > 0 {
		ids := make([]uint, 0, len(tasks))
		for _, t := range tasks {
			ids = append(ids, t.ID)
		}
		var statuses []models.DailyTaskStatus
		if err := db.Where("task_id IN ? AND day = ?", ids, key).Find(&statuses).Error; err != nil {
			return ChecklistDay{}, mapStoreError("load task status", err)
		}
		for _, s := range statuses {
			byTask[s.TaskID] = s
		}
	}

	out := ChecklistDay{Day: key, Tasks: make([]ChecklistItem, 0, len(tasks))}
	done := 0
	for _, t := range tasks {
		item := ChecklistItem{TaskID: t.ID, TaskText: t.TaskText, IsDefault: t.IsDefault}
		if s, ok := byTask[t.ID]; ok && s.Completed {
			item.Completed = true
			item.CompletedAt = s.CompletedAt
			done++
		}
		out.Tasks = append(out.Tasks, item)
	}
	out.AllCompleted = len(tasks) > 0 && done == len(tasks)

	var paid int64
	if err := db.Model(&models.DailyBonus{}).Where("day = ? AND user_id = ?", bonusDay(d), userID).Count(&paid).Error; err != nil {
		return ChecklistDay{}, mapStoreError("check daily bonus", err)
	}
	out.BonusPaid = paid > 0
	return out, nil
}

// AddTask appends a custom task to the user's checklist.
func (c *Checklist) AddTask(ctx context.Context, userID uint, text string) (*models.DailyTask, error) {
	if userID == 0 {
		return nil, ValidationError("userId is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ValidationError("taskText is required")
	}
	if utf8.RuneCountInString(text) > maxTaskTextRune {
		return nil, ValidationError(fmt.Sprintf("taskText must be at most %d characters", maxTaskTextRune))
	}
	if err := c.prog.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	task := &models.DailyTask{UserID: userID, TaskText: text}
	if err := c.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, mapStoreError("create daily task", err)
	}
	return task, nil
}

// DeleteTask removes one of the user's tasks and its history.
func (c *Checklist) DeleteTask(ctx context.Context, userID, taskID uint) error {
	if userID == 0 || taskID == 0 {
		return ValidationError("userId and taskId are required")
	}
	return c.tx.InTx(ctx, func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", taskID, userID).Delete(&models.DailyTask{})
		if res.Error != nil {
			return mapStoreError("delete daily task", res.Error)
		}
		if res.RowsAffected == 0 {
			return NotFoundError("task")
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.DailyTaskStatus{}).Error; err != nil {
			return mapStoreError("delete task status", err)
		}
		return nil
	})
}

// CompleteTask marks a task done for today. When that finishes the
// checklist, the day's bonus is paid unless it already was.
func (c *Checklist) CompleteTask(ctx context.Context, userID, taskID uint, day string) (TaskResult, error) {
	if userID == 0 || taskID == 0 {
		return TaskResult{}, ValidationError("userId and taskId are required")
	}
	d, err := c.parseDay(day)
	if err != nil {
		return TaskResult{}, err
	}
	now := c.clock.Now()
	if !SameCalendarDay(d, now, c.clock.Location()) {
		return TaskResult{}, ValidationError("only today's checklist can be completed")
	}
	key := d.Format(dayLayout)

	unlock := c.prog.locks.Lock(fmt.Sprintf("checklist:%d:%s", userID, key))
	defer unlock()

	var all bool
	err = c.tx.InTx(ctx, func(tx *gorm.DB) error {
		var task models.DailyTask
		err := tx.Where("id = ? AND user_id = ?", taskID, userID).Take(&task).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFoundError("task")
		}
		if err != nil {
			return mapStoreError("load daily task", err)
		}

		completedAt := now.UTC()
		status := models.DailyTaskStatus{TaskID: taskID, Day: key, Completed: true, CompletedAt: &completedAt}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"completed": true}),
		}).Create(&status).Error; err != nil {
			return mapStoreError("complete daily task", err)
		}

		var total, done int64
		if err := tx.Model(&models.DailyTask{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
			return mapStoreError("count daily tasks", err)
		}
		if err := tx.Model(&models.DailyTaskStatus{}).
			Joins("JOIN daily_tasks ON daily_tasks.id = daily_task_status.task_id").
			Where("daily_tasks.user_id = ? AND daily_task_status.day = ? AND daily_task_status.completed = ?", userID, key, true).
			Count(&done).Error; err != nil {
			return mapStoreError("count completed tasks", err)
		}
		all = total > 0 && done >= total
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPersistence) {
			c.log.Error("complete daily task failed", "user_id", userID, "task_id", taskID, "error", err)
		}
		return TaskResult{}, err
	}

	result := TaskResult{TaskID: taskID, Day: key, Completed: true, AllCompleted: all}
	if !all {
		snap, err := c.prog.Progression(ctx, userID)
		if err != nil {
			return TaskResult{}, err
		}
		result.Profile = snap
		return result, nil
	}

	res, err := c.prog.awardDailyBonus(ctx, userID, d)
	if err != nil {
		return TaskResult{}, err
	}
	result.BonusPaid = true
	result.Profile = res.Profile
	if res.Awarded {
		result.BonusXPAwarded = DailyBonusXP
	}
	return result, nil
}

// awardDailyBonus pays the checklist bonus for day through the completion
// ledger, so each (day, user) pair is paid at most once.
func (p *Progression) awardDailyBonus(ctx context.Context, userID uint, day time.Time) (LedgerResult, error) {
	key := bonusDay(day)
	unlock := p.locks.Lock(fmt.Sprintf("daily_bonus:%d:%d", key, userID))
	defer unlock()

	res, err := p.ledger.Record(ctx, LedgerEntry{
		Kind:       models.XPSourceDailyBonus,
		ActivityID: key,
		UserID:     userID,
		Award:      DailyBonusXP,
		Row:        &models.DailyBonus{Day: key, UserID: userID, XPEarned: DailyBonusXP},
	})
	if err != nil {
		p.log.Error("daily bonus failed", "user_id", userID, "day", key, "error", err)
		return LedgerResult{}, err
	}
	if res.Awarded {
		p.log.Info("daily bonus awarded", "user_id", userID, "day", key, "xp", DailyBonusXP, "total_xp", res.Profile.XP)
		p.invalidate(ctx)
	}
	return res, nil
}

func (c *Checklist) parseDay(day string) (time.Time, error) {
	loc := c.clock.Location()
	if strings.TrimSpace(day) == "" {
		return StartOfDay(c.clock.Now(), loc), nil
	}
	d, err := time.ParseInLocation(dayLayout, strings.TrimSpace(day), loc)
	if err != nil {
		return time.Time{}, ValidationError("date must be YYYY-MM-DD")
	}
	return d, nil
}

// bonusDay encodes a calendar day as YYYYMMDD.
func bonusDay(d time.Time) uint {
	return uint(d.Year()*10000 + int(d.Month())*100 + d.Day())
}
