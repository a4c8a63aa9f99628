package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const QuestionTypeMCQ = "MCQ"

type Question struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExamID       uuid.UUID `gorm:"type:uuid;not null;index" json:"examId"`
	Type         string    `gorm:"size:20;not null;default:'MCQ'" json:"type"`
	QuestionText string    `gorm:"type:text;not null" json:"questionText"`
	Marks        int       `gorm:"not null" json:"marks"`
	Options      []Option  `gorm:"foreignKey:QuestionID" json:"options,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.Type == "" {
		q.Type = QuestionTypeMCQ
	}
	return nil
}

type Option struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID uuid.UUID `gorm:"type:uuid;not null;index" json:"questionId"`
	OptionText string    `gorm:"type:text;not null" json:"optionText"`
	IsCorrect  bool      `gorm:"not null;default:false" json:"isCorrect"`
}

func (o *Option) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
