package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Course struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name    string    `gorm:"size:255;not null" json:"name"`
	GradeID uuid.UUID `gorm:"type:uuid;not null;index" json:"gradeId"`
	Grade   *Grade    `gorm:"foreignKey:GradeID" json:"grade,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
