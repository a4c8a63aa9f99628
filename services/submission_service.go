package services

import (
	"context"

	config "github.com/anjiri1684/smartscore/configs"
	"github.com/anjiri1684/smartscore/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const alreadyAttempted = "You have already attempted this exam"

type AnswerInput struct {
	QuestionID       uuid.UUID  `json:"questionId" validate:"required"`
	SelectedOptionID *uuid.UUID `json:"selectedOptionId"`
}

// VerifyExamAccess checks the classroom PIN and that the student has not
// submitted yet. The PIN is compared as plain text.
func VerifyExamAccess(ctx context.Context, db *gorm.DB, studentID, examID uuid.UUID, password string) (*models.Exam, error) {
	var exam models.Exam
	if err := db.WithContext(ctx).Preload("Course").First(&exam, "id = ?", examID).Error; err != nil {
		return nil, notFoundOr(err, "Exam not found")
	}
	if exam.Password != "" && exam.Password != password {
		return nil, AuthorizationError("Incorrect password")
	}

	submitted, err := hasSubmitted(ctx, db, examID, studentID)
	if err != nil {
		return nil, err
	}
	if submitted {
		return nil, ConflictError(alreadyAttempted)
	}
	return &exam, nil
}

func hasSubmitted(ctx context.Context, db *gorm.DB, examID, studentID uuid.UUID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.Submission{}).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "count submissions")
	}
	return count > 0, nil
}

// ScoreAnswers validates answers against the exam's questions and sums the
// marks of every question whose selected option is correct. An answer with
// no selected option is recorded but scores nothing.
func ScoreAnswers(questions []models.Question, inputs []AnswerInput) (int, []models.Answer, error) {
	byID := make(map[uuid.UUID]*models.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	answered := make(map[uuid.UUID]bool, len(inputs))
	answers := make([]models.Answer, 0, len(inputs))
	score := 0
	for _, in := range inputs {
		question, ok := byID[in.QuestionID]
		if !ok {
			return 0, nil, ValidationError("Question %s does not belong to this exam", in.QuestionID)
		}
		if answered[in.QuestionID] {
			return 0, nil, ValidationError("Question %s is answered more than once", in.QuestionID)
		}
		answered[in.QuestionID] = true

		if in.SelectedOptionID != nil {
			var selected *models.Option
			for i := range question.Options {
				if question.Options[i].ID == *in.SelectedOptionID {
					selected = &question.Options[i]
					break
				}
			}
			if selected == nil {
				return 0, nil, ValidationError("Option %s does not belong to question %s", *in.SelectedOptionID, in.QuestionID)
			}
			if selected.IsCorrect {
				score += question.Marks
			}
		}

		answers = append(answers, models.Answer{
			QuestionID:       in.QuestionID,
			SelectedOptionID: in.SelectedOptionID,
		})
	}
	return score, answers, nil
}

// SubmitExam records a student's single attempt and scores it. The unique
// (exam, student) index decides between concurrent submits.
func SubmitExam(ctx context.Context, db *gorm.DB, studentID, examID uuid.UUID, inputs []AnswerInput) (submission *models.Submission, err error) {
	defer func() {
		examSubmissions.WithLabelValues(resultLabel(err)).Inc()
	}()

	var exam models.Exam
	if err := db.WithContext(ctx).Preload("Questions.Options").First(&exam, "id = ?", examID).Error; err != nil {
		return nil, notFoundOr(err, "Exam not found")
	}

	var student models.User
	if err := db.WithContext(ctx).Select("id", "role", "grade_id").First(&student, "id = ?", studentID).Error; err != nil {
		return nil, notFoundOr(err, "Student not found")
	}
	if student.Role != models.RoleStudent || student.GradeID == nil || *student.GradeID != exam.GradeID {
		return nil, AuthorizationError("This exam is not assigned to your grade")
	}

	submitted, err := hasSubmitted(ctx, db, examID, studentID)
	if err != nil {
		return nil, err
	}
	if submitted {
		return nil, ConflictError(alreadyAttempted)
	}

	score, answers, err := ScoreAnswers(exam.Questions, inputs)
	if err != nil {
		return nil, err
	}

	submission = &models.Submission{
		ExamID:     exam.ID,
		StudentID:  studentID,
		TotalScore: score,
		Answers:    answers,
	}

	txCtx, cancel := context.WithTimeout(ctx, config.TxTimeout())
	defer cancel()
	err = db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(submission).Error
	})
	if IsUniqueViolation(err) {
		return nil, ConflictError(alreadyAttempted)
	}
	if err != nil {
		return nil, errors.Wrap(err, "create submission")
	}
	return submission, nil
}

// ReleasedSubmission returns the student's own graded submission once the
// exam's results are released.
func ReleasedSubmission(ctx context.Context, db *gorm.DB, studentID, examID uuid.UUID) (*models.Submission, error) {
	var exam models.Exam
	if err := db.WithContext(ctx).Preload("Course").First(&exam, "id = ?", examID).Error; err != nil {
		return nil, notFoundOr(err, "Exam not found")
	}
	if !exam.ResultsReleased {
		return nil, AuthorizationError("Results not yet released")
	}

	var submission models.Submission
	err := db.WithContext(ctx).
		Preload("Answers.Question.Options").
		Preload("Answers.SelectedOption").
		Preload("Student").
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&submission).Error
	if err != nil {
		return nil, notFoundOr(err, "Submission not found")
	}
	submission.Exam = &exam
	return &submission, nil
}

// ExamMaxScore is the sum of marks over the exam's questions.
func ExamMaxScore(ctx context.Context, db *gorm.DB, examID uuid.UUID) (int, error) {
	var total int
	err := db.WithContext(ctx).Model(&models.Question{}).
		Where("exam_id = ?", examID).
		Select("COALESCE(SUM(marks), 0)").
		Scan(&total).Error
	return total, errors.Wrap(err, "sum exam marks")
}

func OverrideScore(ctx context.Context, db *gorm.DB, submissionID uuid.UUID, totalScore int) (*models.Submission, error) {
	if totalScore < 0 {
		return nil, ValidationError("totalScore must not be negative")
	}
	var submission models.Submission
	if err := db.WithContext(ctx).First(&submission, "id = ?", submissionID).Error; err != nil {
		return nil, notFoundOr(err, "Submission not found")
	}
	if err := db.WithContext(ctx).Model(&submission).Update("total_score", totalScore).Error; err != nil {
		return nil, errors.Wrap(err, "update total score")
	}
	submission.TotalScore = totalScore
	return &submission, nil
}

// ToggleResults flips the release flag and returns the updated exam.
func ToggleResults(ctx context.Context, db *gorm.DB, examID uuid.UUID) (*models.Exam, error) {
	var exam models.Exam
	if err := db.WithContext(ctx).First(&exam, "id = ?", examID).Error; err != nil {
		return nil, notFoundOr(err, "Exam not found")
	}
	exam.ResultsReleased = !exam.ResultsReleased
	if err := db.WithContext(ctx).Model(&exam).Update("results_released", exam.ResultsReleased).Error; err != nil {
		return nil, errors.Wrap(err, "toggle results")
	}
	return &exam, nil
}
