package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin   = "ADMIN"
	RoleTeacher = "TEACHER"
	RoleStudent = "STUDENT"
)

type User struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Email      string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password   string    `gorm:"not null" json:"-"`
	Role       string    `gorm:"size:20;not null;default:'STUDENT'" json:"role"`
	FirstLogin bool      `gorm:"not null" json:"firstLogin"`

	StudentNumber        *string    `gorm:"column:student_id;size:100" json:"studentId,omitempty"`
	RollNumber           *string    `gorm:"size:100" json:"rollNumber,omitempty"`
	UniversityRollNumber *string    `gorm:"size:100" json:"universityRollNumber,omitempty"`
	Semester             *int       `json:"semester,omitempty"`
	GradeID              *uuid.UUID `gorm:"type:uuid;index" json:"gradeId,omitempty"`
	Grade                *Grade     `gorm:"foreignKey:GradeID" json:"grade,omitempty"`

	TeachingGrades []*Grade `gorm:"many2many:teacher_grades;" json:"teachingGrades,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
