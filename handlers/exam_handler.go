package handlers

import (
	"fmt"
	"time"

	"github.com/anjiri1684/smartscore/database"
	"github.com/anjiri1684/smartscore/models"
	"github.com/anjiri1684/smartscore/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VerifyExamRequest struct {
	ExamID   uuid.UUID `json:"examId" validate:"required"`
	Password string    `json:"password"`
}

type SubmitExamRequest struct {
	ExamID  uuid.UUID              `json:"examId" validate:"required"`
	Answers []services.AnswerInput `json:"answers" validate:"dive"`
}

type examListItem struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	GradeID         uuid.UUID      `json:"gradeId"`
	CourseID        uuid.UUID      `json:"courseId"`
	ScheduledDate   time.Time      `json:"scheduledDate"`
	DurationMinutes int            `json:"durationMinutes"`
	Password        *string        `json:"password,omitempty"`
	ResultsReleased bool           `json:"resultsReleased"`
	Grade           *models.Grade  `json:"grade,omitempty"`
	Course          *models.Course `json:"course,omitempty"`
	QuestionCount   int64          `json:"questionCount"`
	Submitted       *bool          `json:"submitted,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// ListExams shows every exam to staff. Students only see exams of their own
// grade, without the PIN, flagged with whether they already submitted.
func ListExams(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	query := database.DB.Preload("Grade").Preload("Course").Order("created_at desc")
	isStudent := principal.Role == models.RoleStudent
	submitted := map[uuid.UUID]bool{}
	if isStudent {
		var student models.User
		if err := database.DB.Select("id", "grade_id").First(&student, "id = ?", principal.UserID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
		}
		if student.GradeID == nil {
			return c.JSON([]examListItem{})
		}
		query = query.Where("grade_id = ?", *student.GradeID)

		var examIDs []uuid.UUID
		if err := database.DB.Model(&models.Submission{}).Where("student_id = ?", student.ID).Pluck("exam_id", &examIDs).Error; err != nil {
			return respondError(c, err)
		}
		for _, id := range examIDs {
			submitted[id] = true
		}
	}

	var exams []models.Exam
	if err := query.Find(&exams).Error; err != nil {
		return respondError(c, err)
	}
	questions, err := countsBy(database.DB.Model(&models.Question{}), "exam_id")
	if err != nil {
		return respondError(c, err)
	}

	items := make([]examListItem, 0, len(exams))
	for i := range exams {
		e := &exams[i]
		item := examListItem{
			ID:              e.ID,
			Title:           e.Title,
			GradeID:         e.GradeID,
			CourseID:        e.CourseID,
			ScheduledDate:   e.ScheduledDate,
			DurationMinutes: e.DurationMinutes,
			ResultsReleased: e.ResultsReleased,
			Grade:           e.Grade,
			Course:          e.Course,
			QuestionCount:   questions[e.ID],
			CreatedAt:       e.CreatedAt,
		}
		if isStudent {
			done := submitted[e.ID]
			item.Submitted = &done
		} else {
			item.Password = &e.Password
		}
		items = append(items, item)
	}
	return c.JSON(items)
}

func VerifyExam(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req VerifyExamRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	exam, err := services.VerifyExamAccess(c.UserContext(), database.DB, principal.UserID, req.ExamID, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":         "Exam verified",
		"examId":          exam.ID,
		"title":           exam.Title,
		"durationMinutes": exam.DurationMinutes,
	})
}

type paperOption struct {
	ID         uuid.UUID `json:"id"`
	OptionText string    `json:"optionText"`
}

type paperQuestion struct {
	ID           uuid.UUID     `json:"id"`
	Type         string        `json:"type"`
	QuestionText string        `json:"questionText"`
	Marks        int           `json:"marks"`
	Options      []paperOption `json:"options"`
}

// GetStudentExam returns the exam paper. Correct answers are never included.
func GetStudentExam(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	examID, err := paramUUID(c, "examId")
	if err != nil {
		return respondError(c, err)
	}

	var exam models.Exam
	err = database.DB.
		Preload("Course").
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Questions.Options").
		First(&exam, "id = ?", examID).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Exam not found"})
	}

	var student models.User
	if err := database.DB.Select("id", "grade_id").First(&student, "id = ?", principal.UserID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
	}
	if student.GradeID == nil || *student.GradeID != exam.GradeID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "This exam is not assigned to your grade"})
	}

	questions := make([]paperQuestion, 0, len(exam.Questions))
	for _, q := range exam.Questions {
		options := make([]paperOption, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, paperOption{ID: o.ID, OptionText: o.OptionText})
		}
		questions = append(questions, paperQuestion{
			ID:           q.ID,
			Type:         q.Type,
			QuestionText: q.QuestionText,
			Marks:        q.Marks,
			Options:      options,
		})
	}

	return c.JSON(fiber.Map{
		"id":              exam.ID,
		"title":           exam.Title,
		"course":          exam.Course,
		"scheduledDate":   exam.ScheduledDate,
		"durationMinutes": exam.DurationMinutes,
		"questions":       questions,
	})
}

func SubmitExam(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req SubmitExamRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	submission, err := services.SubmitExam(c.UserContext(), database.DB, principal.UserID, req.ExamID, req.Answers)
	if err != nil {
		return respondError(c, err)
	}

	var exam models.Exam
	if err := database.DB.Select("id", "grade_id").First(&exam, "id = ?", submission.ExamID).Error; err == nil {
		services.NotifySubmissionCreated(c.UserContext(), database.DB, Realtime, exam.GradeID, submission)
	}
	return c.Status(fiber.StatusCreated).JSON(submission)
}

func GetMySubmission(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	examID, err := paramUUID(c, "examId")
	if err != nil {
		return respondError(c, err)
	}

	submission, err := services.ReleasedSubmission(c.UserContext(), database.DB, principal.UserID, examID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(submission)
}

func DownloadResultSlip(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	examID, err := paramUUID(c, "examId")
	if err != nil {
		return respondError(c, err)
	}

	submission, err := services.ReleasedSubmission(c.UserContext(), database.DB, principal.UserID, examID)
	if err != nil {
		return respondError(c, err)
	}
	maxScore, err := services.ExamMaxScore(c.UserContext(), database.DB, examID)
	if err != nil {
		return respondError(c, err)
	}
	pdf, err := services.GenerateResultSlipPDF(c.UserContext(), submission, maxScore)
	if err != nil {
		return respondError(c, err)
	}

	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"result_%s.pdf\"", examID))
	return c.Send(pdf)
}
