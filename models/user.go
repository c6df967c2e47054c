// models/user.go
package models

import (
	"time"
)

// User holds credentials only. Everything a player sees lives on UserProfile.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Profile *UserProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// UserProfile is 1:1 with User. XP is authoritative; Level is a cached
// projection of it that is rewritten on every experience change.
type UserProfile struct {
	UserID      uint   `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	FirstName   string `gorm:"size:100;not null" json:"first_name"`
	LastName    string `gorm:"size:100;not null" json:"last_name"`
	DisplayName string `gorm:"size:200;index" json:"display_name"`
	Nickname    string `gorm:"size:100" json:"nickname"`
	Major       string `gorm:"size:100;index" json:"major"`
	College     string `gorm:"size:100;index" json:"college"`
	ClassYear   string `gorm:"size:20;index" json:"class_year"`
	AvatarURL   string `gorm:"size:500" json:"avatar_url"`

	// Progression
	XP    int `gorm:"not null;default:0" json:"xp"`
	Level int `gorm:"not null;default:1" json:"level"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

// Notification is a message in a user's inbox.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	Type      string    `gorm:"size:50;not null;default:'System'" json:"type"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"index:idx_notifications_user_created,priority:2" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
