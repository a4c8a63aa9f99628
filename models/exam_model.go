package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Exam is a scheduled assessment for one grade and course. Password is a
// classroom PIN compared as plain text; it is not a credential.
type Exam struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	GradeID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"gradeId"`
	CourseID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"courseId"`
	CreatedByID     *uuid.UUID `gorm:"type:uuid" json:"createdById,omitempty"`
	ScheduledDate   time.Time  `gorm:"not null" json:"scheduledDate"`
	DurationMinutes int        `gorm:"not null" json:"durationMinutes"`
	Password        string     `gorm:"size:255" json:"password"`
	ResultsReleased bool       `gorm:"not null;default:false" json:"resultsReleased"`

	Grade     *Grade     `gorm:"foreignKey:GradeID" json:"grade,omitempty"`
	Course    *Course    `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Questions []Question `gorm:"foreignKey:ExamID" json:"questions,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (e *Exam) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
