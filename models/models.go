// models/models.go - Study content
package models

import (
	"time"
)

// Quiz is a set of multiple choice questions.
type Quiz struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Title       string         `json:"title" gorm:"not null;size:200"`
	Description string         `json:"description" gorm:"type:text"`
	Category    string         `json:"category" gorm:"size:100;index"`
	IsPublic    bool           `json:"is_public" gorm:"default:true"`
	CreatedBy   *uint          `json:"created_by" gorm:"index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Questions   []QuizQuestion `json:"questions,omitempty" gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuizQuestion struct {
	ID       uint         `json:"id" gorm:"primaryKey"`
	QuizID   uint         `json:"quiz_id" gorm:"not null;index"`
	Position int          `json:"position" gorm:"not null;default:0"`
	Text     string       `json:"text" gorm:"type:text;not null"`
	Choices  []QuizChoice `json:"choices,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

type QuizChoice struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Position   int    `json:"position" gorm:"not null;default:0"`
	Text       string `json:"text" gorm:"type:text;not null"`
	IsCorrect  bool   `json:"is_correct" gorm:"default:false"`
}

func (QuizChoice) TableName() string {
	return "quiz_choices"
}

// FlashcardSet is an ordered deck of term/definition cards.
type FlashcardSet struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Title       string          `json:"title" gorm:"not null;size:200"`
	Description string          `json:"description" gorm:"type:text"`
	Category    string          `json:"category" gorm:"size:100;index"`
	IsPublic    bool            `json:"is_public" gorm:"default:true"`
	CreatedBy   *uint           `json:"created_by" gorm:"index"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Cards       []FlashcardCard `json:"cards,omitempty" gorm:"foreignKey:SetID;constraint:OnDelete:CASCADE"`
}

func (FlashcardSet) TableName() string {
	return "flashcard_sets"
}

type FlashcardCard struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	SetID      uint   `json:"set_id" gorm:"not null;index"`
	Position   int    `json:"position" gorm:"not null;default:0"`
	Term       string `json:"term" gorm:"type:text;not null"`
	Definition string `json:"definition" gorm:"type:text;not null"`
}

func (FlashcardCard) TableName() string {
	return "flashcard_cards"
}
