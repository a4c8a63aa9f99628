package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ImportKindStudents  = "students"
	ImportKindTeachers  = "teachers"
	ImportKindQuestions = "questions"

	ImportStatusCommitted = "committed"
	ImportStatusRejected  = "rejected"
)

// ImportBatch records one bulk CSV upload, accepted or not.
type ImportBatch struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Kind         string         `gorm:"size:20;not null;index" json:"kind"`
	FileName     string         `gorm:"size:255" json:"fileName"`
	UploadedByID uuid.UUID      `gorm:"type:uuid;not null" json:"uploadedById"`
	ExamID       *uuid.UUID     `gorm:"type:uuid" json:"examId,omitempty"`
	TotalRows    int            `json:"totalRows"`
	ErrorCount   int            `json:"errorCount"`
	Status       string         `gorm:"size:20;not null" json:"status"`
	Details      datatypes.JSON `json:"details,omitempty"`
	ArchiveURL   *string        `gorm:"size:500" json:"archiveUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (b *ImportBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
