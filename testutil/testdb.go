// Package testutil provides in-memory databases and fixtures for tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/anjiri1684/smartscore/database"
	"github.com/anjiri1684/smartscore/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const UserPassword = "secret123"

// NewDB opens a private in-memory sqlite database with the full schema. A
// single connection keeps every statement on the same in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// UseDB points the package-level handle used by handlers at a fresh test
// database and restores it afterwards.
func UseDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := NewDB(t)
	previous := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = previous })
	return db
}

func CreateGrade(t *testing.T, db *gorm.DB, name string) models.Grade {
	t.Helper()
	grade := models.Grade{Name: name}
	require.NoError(t, db.Create(&grade).Error)
	return grade
}

func CreateCourse(t *testing.T, db *gorm.DB, gradeID uuid.UUID, name string) models.Course {
	t.Helper()
	course := models.Course{Name: name, GradeID: gradeID}
	require.NoError(t, db.Create(&course).Error)
	return course
}

// CreateUser stores a user whose password is UserPassword.
func CreateUser(t *testing.T, db *gorm.DB, role, email string, gradeID *uuid.UUID) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(UserPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Name:       email,
		Email:      email,
		Password:   string(hash),
		Role:       role,
		FirstLogin: true,
		GradeID:    gradeID,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func AssignTeacher(t *testing.T, db *gorm.DB, teacher *models.User, grade *models.Grade) {
	t.Helper()
	require.NoError(t, db.Model(teacher).Association("TeachingGrades").Append(grade))
}

// CreateExam stores an exam with one question per entry in marks. Each
// question has two options and the first one is correct.
func CreateExam(t *testing.T, db *gorm.DB, gradeID, courseID uuid.UUID, password string, marks ...int) models.Exam {
	t.Helper()
	exam := models.Exam{
		Title:           "Midterm",
		GradeID:         gradeID,
		CourseID:        courseID,
		ScheduledDate:   time.Now().UTC().Add(24 * time.Hour),
		DurationMinutes: 60,
		Password:        password,
	}
	for i, m := range marks {
		exam.Questions = append(exam.Questions, models.Question{
			QuestionText: fmt.Sprintf("Question %d", i+1),
			Marks:        m,
			Options: []models.Option{
				{OptionText: "Right", IsCorrect: true},
				{OptionText: "Wrong"},
			},
		})
	}
	require.NoError(t, db.Create(&exam).Error)
	return exam
}

// CreateSubmission stores a submission that answers every question with its
// first option.
func CreateSubmission(t *testing.T, db *gorm.DB, exam models.Exam, studentID uuid.UUID) models.Submission {
	t.Helper()
	submission := models.Submission{ExamID: exam.ID, StudentID: studentID}
	for _, q := range exam.Questions {
		optionID := q.Options[0].ID
		submission.Answers = append(submission.Answers, models.Answer{QuestionID: q.ID, SelectedOptionID: &optionID})
		submission.TotalScore += q.Marks
	}
	require.NoError(t, db.Create(&submission).Error)
	return submission
}

func Count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}
