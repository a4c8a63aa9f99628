package services

import (
	"context"
	stderrors "errors"
	"log"

	config "github.com/anjiri1684/smartscore/configs"
	"github.com/anjiri1684/smartscore/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type CascadePlan string

const (
	PlanQuestion   CascadePlan = "question"
	PlanExam       CascadePlan = "exam"
	PlanExamPurge  CascadePlan = "exam_purge"
	PlanCourse     CascadePlan = "course"
	PlanGrade      CascadePlan = "grade"
	PlanStudent    CascadePlan = "student"
	PlanTeacher    CascadePlan = "teacher"
	PlanSubmission CascadePlan = "submission"
)

// cascadeScope accumulates the ids each step collects for the steps after it.
type cascadeScope struct {
	rootID   uuid.UUID
	label    string
	password *string

	courseIDs     []uuid.UUID
	examIDs       []uuid.UUID
	questionIDs   []uuid.UUID
	submissionIDs []uuid.UUID
}

type deleteStep struct {
	name string
	run  func(tx *gorm.DB, s *cascadeScope) error
}

// cascadePlans lists, per root entity, the steps run inside one transaction.
// Guards and collectors come first; deletes run leaf-most first.
var cascadePlans = map[CascadePlan][]deleteStep{
	PlanQuestion: {
		{"load question", loadQuestion},
		{"delete options", deleteOptions},
		{"delete questions", deleteQuestions},
	},
	PlanExam: {
		{"load exam", loadExam},
		{"verify exam password", verifyExamPassword},
		{"guard submissions", guardSubmissions},
		{"collect questions", collectQuestions},
		{"delete options", deleteOptions},
		{"delete questions", deleteQuestions},
		{"delete exams", deleteExams},
	},
	PlanExamPurge: {
		{"load exam", loadExam},
		{"collect exam submissions", collectExamSubmissions},
		{"delete answers", deleteAnswers},
		{"delete submissions", deleteSubmissions},
		{"collect questions", collectQuestions},
		{"delete options", deleteOptions},
		{"delete questions", deleteQuestions},
		{"delete exams", deleteExams},
	},
	PlanCourse: {
		{"load course", loadCourse},
		{"collect course exams", collectCourseExams},
		{"guard submissions", guardSubmissions},
		{"collect questions", collectQuestions},
		{"delete options", deleteOptions},
		{"delete questions", deleteQuestions},
		{"delete exams", deleteExams},
		{"delete courses", deleteCourses},
	},
	PlanGrade: {
		{"load grade", loadGrade},
		{"collect grade courses", collectGradeCourses},
		{"collect grade exams", collectGradeExams},
		{"guard submissions", guardSubmissions},
		{"collect questions", collectQuestions},
		{"delete options", deleteOptions},
		{"delete questions", deleteQuestions},
		{"delete exams", deleteExams},
		{"delete courses", deleteCourses},
		{"unlink grade teachers", unlinkGradeTeachers},
		{"detach grade students", detachGradeStudents},
		{"delete grade", deleteGrade},
	},
	PlanStudent: {
		{"collect student submissions", collectStudentSubmissions},
		{"delete answers", deleteAnswers},
		{"delete submissions", deleteSubmissions},
		{"delete user", deleteUser},
	},
	PlanTeacher: {
		{"unlink teacher grades", unlinkTeacherGrades},
		{"delete user", deleteUser},
	},
	PlanSubmission: {
		{"load submission", loadSubmission},
		{"delete answers", deleteAnswers},
		{"delete submissions", deleteSubmissions},
	},
}

// CascadeOrder returns the step names of a plan, in execution order.
func CascadeOrder(plan CascadePlan) []string {
	steps := cascadePlans[plan]
	names := make([]string, len(steps))
	for i, step := range steps {
		names[i] = step.name
	}
	return names
}

func runCascade(ctx context.Context, db *gorm.DB, plan CascadePlan, scope *cascadeScope) (err error) {
	defer func() {
		cascadeDeletes.WithLabelValues(string(plan), resultLabel(err)).Inc()
		if err != nil && KindOf(err) == KindUnexpected {
			log.Printf("🔥 Cascade delete %s %s rolled back: %v", plan, scope.rootID, err)
		}
	}()

	steps, ok := cascadePlans[plan]
	if !ok {
		return errors.Errorf("unknown cascade plan %q", plan)
	}

	ctx, cancel := context.WithTimeout(ctx, config.TxTimeout())
	defer cancel()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, step := range steps {
			if err := step.run(tx, scope); err != nil {
				var appErr *AppError
				if stderrors.As(err, &appErr) {
					return err
				}
				return errors.Wrapf(err, "%s: %s", plan, step.name)
			}
		}
		return nil
	})
}

func DeleteQuestion(ctx context.Context, db *gorm.DB, questionID uuid.UUID) error {
	return runCascade(ctx, db, PlanQuestion, &cascadeScope{rootID: questionID})
}

// DeleteExam is the teacher path: the classroom PIN must match and the exam
// must not have submissions.
func DeleteExam(ctx context.Context, db *gorm.DB, examID uuid.UUID, password string) error {
	return runCascade(ctx, db, PlanExam, &cascadeScope{rootID: examID, password: &password})
}

// PurgeExam is the admin path: submissions and answers go with the exam.
func PurgeExam(ctx context.Context, db *gorm.DB, examID uuid.UUID) error {
	return runCascade(ctx, db, PlanExamPurge, &cascadeScope{rootID: examID})
}

func DeleteCourse(ctx context.Context, db *gorm.DB, courseID uuid.UUID) error {
	return runCascade(ctx, db, PlanCourse, &cascadeScope{rootID: courseID})
}

func DeleteGrade(ctx context.Context, db *gorm.DB, gradeID uuid.UUID) error {
	return runCascade(ctx, db, PlanGrade, &cascadeScope{rootID: gradeID})
}

func DeleteSubmission(ctx context.Context, db *gorm.DB, submissionID uuid.UUID) error {
	return runCascade(ctx, db, PlanSubmission, &cascadeScope{rootID: submissionID})
}

// DeleteUser removes a teacher or student and everything that exists only
// because of them. Admin accounts cannot be deleted.
func DeleteUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, notFoundOr(err, "User not found")
	}

	var plan CascadePlan
	switch user.Role {
	case models.RoleStudent:
		plan = PlanStudent
	case models.RoleTeacher:
		plan = PlanTeacher
	default:
		cascadeDeletes.WithLabelValues("user", KindForbidden.String()).Inc()
		return nil, ForbiddenError("Admin accounts cannot be deleted")
	}

	if err := runCascade(ctx, db, plan, &cascadeScope{rootID: user.ID, label: user.Name}); err != nil {
		return nil, err
	}
	return &user, nil
}

func loadQuestion(tx *gorm.DB, s *cascadeScope) error {
	var question models.Question
	if err := tx.Select("id").First(&question, "id = ?", s.rootID).Error; err != nil {
		return notFoundOr(err, "Question not found")
	}
	s.questionIDs = []uuid.UUID{question.ID}
	return nil
}

func loadExam(tx *gorm.DB, s *cascadeScope) error {
	var exam models.Exam
	if err := tx.Select("id", "title").First(&exam, "id = ?", s.rootID).Error; err != nil {
		return notFoundOr(err, "Exam not found")
	}
	s.label = exam.Title
	s.examIDs = []uuid.UUID{exam.ID}
	return nil
}

func verifyExamPassword(tx *gorm.DB, s *cascadeScope) error {
	var exam models.Exam
	if err := tx.Select("id", "password").First(&exam, "id = ?", s.rootID).Error; err != nil {
		return notFoundOr(err, "Exam not found")
	}
	if s.password == nil || exam.Password != *s.password {
		return AuthorizationError("Incorrect password")
	}
	return nil
}

func loadCourse(tx *gorm.DB, s *cascadeScope) error {
	var course models.Course
	if err := tx.Select("id", "name").First(&course, "id = ?", s.rootID).Error; err != nil {
		return notFoundOr(err, "Course not found")
	}
	s.label = course.Name
	s.courseIDs = []uuid.UUID{course.ID}
	return nil
}

func loadGrade(tx *gorm.DB, s *cascadeScope) error {
	var grade models.Grade
	if err := tx.Select("id", "name").First(&grade, "id = ?", s.rootID).Error; err != nil {
		return notFoundOr(err, "Grade not found")
	}
	s.label = grade.Name
	return nil
}

func loadSubmission(tx *gorm.DB, s *cascadeScope) error {
	var submission models.Submission
	if err := tx.Select("id").First(&submission, "id = ?", s.rootID).Error; err != nil {
		return notFoundOr(err, "Submission not found")
	}
	s.submissionIDs = []uuid.UUID{submission.ID}
	return nil
}

func collectCourseExams(tx *gorm.DB, s *cascadeScope) error {
	return tx.Model(&models.Exam{}).Where("course_id IN ?", s.courseIDs).Pluck("id", &s.examIDs).Error
}

func collectGradeCourses(tx *gorm.DB, s *cascadeScope) error {
	return tx.Model(&models.Course{}).Where("grade_id = ?", s.rootID).Pluck("id", &s.courseIDs).Error
}

func collectGradeExams(tx *gorm.DB, s *cascadeScope) error {
	query := tx.Model(&models.Exam{}).Where("grade_id = ?", s.rootID)
	if len(s.courseIDs) > 0 {
		query = query.Or("course_id IN ?", s.courseIDs)
	}
	return query.Pluck("id", &s.examIDs).Error
}

func collectQuestions(tx *gorm.DB, s *cascadeScope) error {
	if len(s.examIDs) == 0 {
		return nil
	}
	return tx.Model(&models.Question{}).Where("exam_id IN ?", s.examIDs).Pluck("id", &s.questionIDs).Error
}

func collectExamSubmissions(tx *gorm.DB, s *cascadeScope) error {
	return tx.Model(&models.Submission{}).Where("exam_id IN ?", s.examIDs).Pluck("id", &s.submissionIDs).Error
}

func collectStudentSubmissions(tx *gorm.DB, s *cascadeScope) error {
	return tx.Model(&models.Submission{}).Where("student_id = ?", s.rootID).Pluck("id", &s.submissionIDs).Error
}

func guardSubmissions(tx *gorm.DB, s *cascadeScope) error {
	if len(s.examIDs) == 0 {
		return nil
	}
	var count int64
	if err := tx.Model(&models.Submission{}).Where("exam_id IN ?", s.examIDs).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ConflictError("Cannot delete %q: it has exams with student submissions", s.label)
	}
	return nil
}

func deleteAnswers(tx *gorm.DB, s *cascadeScope) error {
	if len(s.submissionIDs) == 0 {
		return nil
	}
	return tx.Where("submission_id IN ?", s.submissionIDs).Delete(&models.Answer{}).Error
}

func deleteSubmissions(tx *gorm.DB, s *cascadeScope) error {
	if len(s.submissionIDs) == 0 {
		return nil
	}
	return tx.Where("id IN ?", s.submissionIDs).Delete(&models.Submission{}).Error
}

func deleteOptions(tx *gorm.DB, s *cascadeScope) error {
	if len(s.questionIDs) == 0 {
		return nil
	}
	return tx.Where("question_id IN ?", s.questionIDs).Delete(&models.Option{}).Error
}

func deleteQuestions(tx *gorm.DB, s *cascadeScope) error {
	if len(s.questionIDs) == 0 {
		return nil
	}
	return tx.Where("id IN ?", s.questionIDs).Delete(&models.Question{}).Error
}

func deleteExams(tx *gorm.DB, s *cascadeScope) error {
	if len(s.examIDs) == 0 {
		return nil
	}
	return tx.Where("id IN ?", s.examIDs).Delete(&models.Exam{}).Error
}

func deleteCourses(tx *gorm.DB, s *cascadeScope) error {
	if len(s.courseIDs) == 0 {
		return nil
	}
	return tx.Where("id IN ?", s.courseIDs).Delete(&models.Course{}).Error
}

func unlinkGradeTeachers(tx *gorm.DB, s *cascadeScope) error {
	return tx.Model(&models.Grade{ID: s.rootID}).Association("Teachers").Clear()
}

func detachGradeStudents(tx *gorm.DB, s *cascadeScope) error {
	return tx.Model(&models.User{}).Where("grade_id = ?", s.rootID).Update("grade_id", nil).Error
}

func deleteGrade(tx *gorm.DB, s *cascadeScope) error {
	return tx.Where("id = ?", s.rootID).Delete(&models.Grade{}).Error
}

func unlinkTeacherGrades(tx *gorm.DB, s *cascadeScope) error {
	return tx.Model(&models.User{ID: s.rootID}).Association("TeachingGrades").Clear()
}

func deleteUser(tx *gorm.DB, s *cascadeScope) error {
	result := tx.Where("id = ?", s.rootID).Delete(&models.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return NotFoundError("User not found")
	}
	return nil
}
