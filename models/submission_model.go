package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Submission is a student's single attempt at an exam. The composite unique
// index backs the one-attempt rule against concurrent submits.
type Submission struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExamID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submission_exam_student" json:"examId"`
	StudentID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submission_exam_student;index" json:"studentId"`
	TotalScore  int       `gorm:"not null;default:0" json:"totalScore"`
	SubmittedAt time.Time `gorm:"not null" json:"submittedAt"`

	Exam    *Exam    `gorm:"foreignKey:ExamID" json:"exam,omitempty"`
	Student *User    `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Answers []Answer `gorm:"foreignKey:SubmissionID" json:"answers,omitempty"`
}

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = time.Now()
	}
	return nil
}

type Answer struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"submissionId"`
	QuestionID       uuid.UUID  `gorm:"type:uuid;not null" json:"questionId"`
	SelectedOptionID *uuid.UUID `gorm:"type:uuid" json:"selectedOptionId"`

	Question       *Question `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
	SelectedOption *Option   `gorm:"foreignKey:SelectedOptionID" json:"selectedOption,omitempty"`
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
