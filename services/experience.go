package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campusquest/levels"
	"campusquest/models"
)

// ProfileSnapshot is a user's totals as of the end of a transaction.
type ProfileSnapshot struct {
	UserID          uint `json:"userId"`
	XP              int  `json:"xp"`
	Level           int  `json:"level"`
	ProgressPercent int  `json:"progressPercent"`
	XPToNextLevel   int  `json:"xpToNextLevel"`

	previousLevel int
}

// LeveledUp reports whether the change that produced s crossed a threshold.
func (s ProfileSnapshot) LeveledUp() bool {
	return s.previousLevel > 0 && s.Level > s.previousLevel
}

func snapshotOf(userID uint, xp int) ProfileSnapshot {
	level := levels.LevelFor(xp)
	return ProfileSnapshot{
		UserID:          userID,
		XP:              xp,
		Level:           level,
		ProgressPercent: levels.ProgressPercent(xp, level),
		XPToNextLevel:   levels.XPToNextLevel(xp, level),
	}
}

// loadSnapshot reads the user's current totals. Level is always re-derived
// from XP, never read from the cached column.
func loadSnapshot(db *gorm.DB, userID uint) (ProfileSnapshot, error) {
	var profile models.UserProfile
	if err := db.Select("user_id", "xp").Where("user_id = ?", userID).Take(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProfileSnapshot{}, NotFoundError("user")
		}
		return ProfileSnapshot{}, mapStoreError("load profile", err)
	}
	return snapshotOf(userID, profile.XP), nil
}

// applyExperience is the only code path that writes a profile's XP. It must
// run inside the caller's transaction. change receives the current XP and
// returns the new value; the result is floored at zero and the cached level
// is rewritten from it. A level-up also drops a notification in the inbox.
func applyExperience(tx *gorm.DB, userID uint, source models.XPSource, sourceID uint, change func(current int) int) (ProfileSnapshot, error) {
	var profile models.UserProfile
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Take(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProfileSnapshot{}, NotFoundError("user")
		}
		return ProfileSnapshot{}, mapStoreError("load profile", err)
	}

	before := profile.XP
	if before < 0 {
		before = 0
	}
	after := change(before)
	if after < 0 {
		after = 0
	}

	snap := snapshotOf(userID, after)
	snap.previousLevel = levels.LevelFor(before)

	res := tx.Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"xp": after, "level": snap.Level})
	if res.Error != nil {
		return ProfileSnapshot{}, mapStoreError("update profile", res.Error)
	}
	if res.RowsAffected == 0 {
		return ProfileSnapshot{}, NotFoundError("user")
	}

	if delta := after - before; delta != 0 {
		event := models.XPEvent{
			UserID:   userID,
			Source:   source,
			SourceID: sourceID,
			Amount:   delta,
			XPAfter:  after,
		}
		if err := tx.Create(&event).Error; err != nil {
			return ProfileSnapshot{}, mapStoreError("record xp event", err)
		}
	}

	if snap.LeveledUp() {
		note := models.Notification{
			UserID: userID,
			Type:   "Level Up",
			Text:   fmt.Sprintf("You reached level %d!", snap.Level),
		}
		if err := tx.Create(&note).Error; err != nil {
			return ProfileSnapshot{}, mapStoreError("create level-up notification", err)
		}
	}

	return snap, nil
}

func addXP(amount int) func(int) int {
	return func(current int) int { return current + amount }
}

func setXP(value int) func(int) int {
	return func(int) int { return value }
}
