package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Grade is an academic cohort, e.g. "BTech".
type Grade struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Courses  []Course  `gorm:"foreignKey:GradeID" json:"courses,omitempty"`
	Students []User    `gorm:"foreignKey:GradeID" json:"students,omitempty"`
	Teachers []*User   `gorm:"many2many:teacher_grades;" json:"teachers,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (g *Grade) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
