package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"campusquest/models"
)

const defaultNotificationType = "System"

type Notifications struct {
	db *gorm.DB
}

func NewNotifications(db *gorm.DB) *Notifications {
	return &Notifications{db: db}
}

// List returns a user's notifications, newest first.
func (n *Notifications) List(ctx context.Context, userID uint) ([]models.Notification, error) {
	if userID == 0 {
		return nil, ValidationError("userId is required")
	}
	var out []models.Notification
	if err := n.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, mapStoreError("list notifications", err)
	}
	return out, nil
}

func (n *Notifications) Add(ctx context.Context, userID uint, kind, text string) (*models.Notification, error) {
	text = strings.TrimSpace(text)
	if userID == 0 || text == "" {
		return nil, ValidationError("userId and text are required")
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = defaultNotificationType
	}
	note := &models.Notification{UserID: userID, Type: kind, Text: text}
	if err := n.db.WithContext(ctx).Create(note).Error; err != nil {
		return nil, mapStoreError("add notification", err)
	}
	return note, nil
}

// MarkAllRead flags every notification for the user as read and returns
// how many changed.
func (n *Notifications) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, ValidationError("userId is required")
	}
	res := n.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	if res.Error != nil {
		return 0, mapStoreError("mark notifications read", res.Error)
	}
	return res.RowsAffected, nil
}

func (n *Notifications) Clear(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, ValidationError("userId is required")
	}
	res := n.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Notification{})
	if res.Error != nil {
		return 0, mapStoreError("clear notifications", res.Error)
	}
	return res.RowsAffected, nil
}
