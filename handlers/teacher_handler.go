package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anjiri1684/smartscore/database"
	"github.com/anjiri1684/smartscore/models"
	"github.com/anjiri1684/smartscore/services"
	"github.com/anjiri1684/smartscore/utils"
	"github.com/anjiri1684/smartscore/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Realtime receives exam events for connected users.
var Realtime services.EventPublisher = websocket.Default

type CreateExamRequest struct {
	Title           string    `json:"title" validate:"required,max=255"`
	GradeID         uuid.UUID `json:"gradeId" validate:"required"`
	CourseID        uuid.UUID `json:"courseId" validate:"required"`
	ScheduledDate   time.Time `json:"scheduledDate" validate:"required"`
	DurationMinutes int       `json:"durationMinutes" validate:"required,min=1"`
	Password        string    `json:"password" validate:"max=255"`
}

type OptionRequest struct {
	OptionText string `json:"optionText" validate:"required"`
	IsCorrect  bool   `json:"isCorrect"`
}

type AddQuestionRequest struct {
	ExamID       uuid.UUID       `json:"examId" validate:"required"`
	Type         string          `json:"type"`
	QuestionText string          `json:"questionText" validate:"required"`
	Marks        int             `json:"marks" validate:"required,min=1"`
	Options      []OptionRequest `json:"options" validate:"required,min=2,dive"`
}

type DeleteExamRequest struct {
	Password string `json:"password"`
}

type ScoreOverrideRequest struct {
	TotalScore *int `json:"totalScore" validate:"required,min=0"`
}

func MyGrades(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var teacher models.User
	err = database.DB.
		Preload("TeachingGrades", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Preload("TeachingGrades.Courses").
		First(&teacher, "id = ?", principal.UserID).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher not found"})
	}
	if teacher.TeachingGrades == nil {
		return c.JSON([]*models.Grade{})
	}
	return c.JSON(teacher.TeachingGrades)
}

func teachesGrade(teacherID, gradeID uuid.UUID) (bool, error) {
	var count int64
	err := database.DB.Table("teacher_grades").
		Where("user_id = ? AND grade_id = ?", teacherID, gradeID).
		Count(&count).Error
	return count > 0, err
}

// authorizeExam lets a teacher act on an exam only when assigned to its
// grade. Admins pass.
func authorizeExam(c *fiber.Ctx, examID uuid.UUID) (*models.Exam, error) {
	principal, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	var exam models.Exam
	if err := database.DB.First(&exam, "id = ?", examID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.NotFoundError("Exam not found")
		}
		return nil, err
	}
	if principal.Role != models.RoleTeacher {
		return &exam, nil
	}
	ok, err := teachesGrade(principal.UserID, exam.GradeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, services.AuthorizationError("You are not assigned to this exam's grade")
	}
	return &exam, nil
}

// authorizeExamOf resolves the exam a question or submission belongs to and
// runs authorizeExam on it.
func authorizeExamOf(c *fiber.Ctx, model interface{}, id uuid.UUID, notFound string) error {
	var examIDs []uuid.UUID
	if err := database.DB.Model(model).Where("id = ?", id).Limit(1).Pluck("exam_id", &examIDs).Error; err != nil {
		return err
	}
	if len(examIDs) == 0 {
		return services.NotFoundError("%s", notFound)
	}
	_, err := authorizeExam(c, examIDs[0])
	return err
}

func CreateExam(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req CreateExamRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	var course models.Course
	if err := database.DB.First(&course, "id = ?", req.CourseID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Course not found"})
	}
	if course.GradeID != req.GradeID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Course does not belong to the selected grade"})
	}
	ok, err := teachesGrade(principal.UserID, req.GradeID)
	if err != nil {
		return respondError(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You are not assigned to this grade"})
	}

	password := strings.TrimSpace(req.Password)
	if password == "" {
		password = utils.GenerateExamPIN()
	}
	creator := principal.UserID
	exam := models.Exam{
		Title:           strings.TrimSpace(req.Title),
		GradeID:         req.GradeID,
		CourseID:        req.CourseID,
		CreatedByID:     &creator,
		ScheduledDate:   req.ScheduledDate,
		DurationMinutes: req.DurationMinutes,
		Password:        password,
	}
	if err := database.DB.Create(&exam).Error; err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(exam)
}

func AddQuestion(c *fiber.Ctx) error {
	var req AddQuestionRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	if req.Type != "" && !strings.EqualFold(req.Type, models.QuestionTypeMCQ) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Only MCQ questions are supported"})
	}

	correct := 0
	options := make([]models.Option, 0, len(req.Options))
	for _, o := range req.Options {
		if o.IsCorrect {
			correct++
		}
		options = append(options, models.Option{OptionText: strings.TrimSpace(o.OptionText), IsCorrect: o.IsCorrect})
	}
	if correct != 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Exactly one option must be marked correct"})
	}

	exam, err := authorizeExam(c, req.ExamID)
	if err != nil {
		return respondError(c, err)
	}

	question := models.Question{
		ExamID:       exam.ID,
		Type:         models.QuestionTypeMCQ,
		QuestionText: strings.TrimSpace(req.QuestionText),
		Marks:        req.Marks,
		Options:      options,
	}
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&question).Error
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(question)
}

func GetTeacherExam(c *fiber.Ctx) error {
	examID, err := paramUUID(c, "examId")
	if err != nil {
		return respondError(c, err)
	}
	if _, err := authorizeExam(c, examID); err != nil {
		return respondError(c, err)
	}

	var exam models.Exam
	err = database.DB.
		Preload("Grade").
		Preload("Course").
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Questions.Options").
		First(&exam, "id = ?", examID).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Exam not found"})
	}
	return c.JSON(exam)
}

func TeacherDeleteQuestion(c *fiber.Ctx) error {
	questionID, err := paramUUID(c, "questionId")
	if err != nil {
		return respondError(c, err)
	}
	if err := authorizeExamOf(c, &models.Question{}, questionID, "Question not found"); err != nil {
		return respondError(c, err)
	}
	if err := services.DeleteQuestion(c.UserContext(), database.DB, questionID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Question deleted successfully"})
}

func TeacherDeleteExam(c *fiber.Ctx) error {
	examID, err := paramUUID(c, "examId")
	if err != nil {
		return respondError(c, err)
	}
	if _, err := authorizeExam(c, examID); err != nil {
		return respondError(c, err)
	}
	var req DeleteExamRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
		}
	}

	if err := services.DeleteExam(c.UserContext(), database.DB, examID, req.Password); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Exam deleted successfully"})
}

func ToggleRelease(c *fiber.Ctx) error {
	examID, err := paramUUID(c, "examId")
	if err != nil {
		return respondError(c, err)
	}
	if _, err := authorizeExam(c, examID); err != nil {
		return respondError(c, err)
	}
	exam, err := services.ToggleResults(c.UserContext(), database.DB, examID)
	if err != nil {
		return respondError(c, err)
	}
	services.NotifyResultsToggled(c.UserContext(), database.DB, Realtime, exam)
	return c.JSON(exam)
}

func loadExamSubmissions(examID uuid.UUID) ([]models.Submission, error) {
	var submissions []models.Submission
	err := database.DB.
		Preload("Student", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "email", "student_id", "roll_number")
		}).
		Where("exam_id = ?", examID).
		Order("submitted_at").
		Find(&submissions).Error
	return submissions, err
}

func ExamSubmissions(c *fiber.Ctx) error {
	examID, err := paramUUID(c, "examId")
	if err != nil {
		return respondError(c, err)
	}
	if _, err := authorizeExam(c, examID); err != nil {
		return respondError(c, err)
	}
	submissions, err := loadExamSubmissions(examID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(submissions)
}

var unsafeFileChars = regexp.MustCompile(`[^a-z0-9]+`)

func ExportExamResults(c *fiber.Ctx) error {
	examID, err := paramUUID(c, "examId")
	if err != nil {
		return respondError(c, err)
	}
	exam, err := authorizeExam(c, examID)
	if err != nil {
		return respondError(c, err)
	}
	maxScore, err := services.ExamMaxScore(c.UserContext(), database.DB, examID)
	if err != nil {
		return respondError(c, err)
	}
	submissions, err := loadExamSubmissions(examID)
	if err != nil {
		return respondError(c, err)
	}

	b := new(bytes.Buffer)
	w := csv.NewWriter(b)

	headers := []string{"Student Name", "Email", "Student ID", "Roll Number", "Score", "Max Score", "Submitted At"}
	if err := w.Write(headers); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to write CSV header"})
	}
	for _, s := range submissions {
		var name, email, studentID, rollNumber string
		if s.Student != nil {
			name, email = s.Student.Name, s.Student.Email
			if s.Student.StudentNumber != nil {
				studentID = *s.Student.StudentNumber
			}
			if s.Student.RollNumber != nil {
				rollNumber = *s.Student.RollNumber
			}
		}
		row := []string{
			name,
			email,
			studentID,
			rollNumber,
			strconv.Itoa(s.TotalScore),
			strconv.Itoa(maxScore),
			s.SubmittedAt.Format("2006-01-02 15:04"),
		}
		if err := w.Write(row); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to write CSV row"})
		}
	}
	w.Flush()

	slug := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(exam.Title), "_"), "_")
	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"results_%s.csv\"", slug))
	return c.Send(b.Bytes())
}

func UpdateSubmissionScore(c *fiber.Ctx) error {
	submissionID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := authorizeExamOf(c, &models.Submission{}, submissionID, "Submission not found"); err != nil {
		return respondError(c, err)
	}
	var req ScoreOverrideRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	submission, err := services.OverrideScore(c.UserContext(), database.DB, submissionID, *req.TotalScore)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(submission)
}

func ResetSubmission(c *fiber.Ctx) error {
	submissionID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := authorizeExamOf(c, &models.Submission{}, submissionID, "Submission not found"); err != nil {
		return respondError(c, err)
	}
	if err := services.DeleteSubmission(c.UserContext(), database.DB, submissionID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Submission deleted. The student can attempt the exam again."})
}
