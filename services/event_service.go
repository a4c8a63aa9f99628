package services

import (
	"context"
	"log"

	"github.com/anjiri1684/smartscore/models"
	"github.com/anjiri1684/smartscore/websocket"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventPublisher interface {
	Publish(e websocket.Event) bool
}

func gradeTeacherIDs(ctx context.Context, db *gorm.DB, gradeID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.WithContext(ctx).Table("teacher_grades").Where("grade_id = ?", gradeID).Pluck("user_id", &ids).Error
	return ids, err
}

func gradeStudentIDs(ctx context.Context, db *gorm.DB, gradeID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.WithContext(ctx).Model(&models.User{}).
		Where("grade_id = ? AND role = ?", gradeID, models.RoleStudent).
		Pluck("id", &ids).Error
	return ids, err
}

// NotifySubmissionCreated tells the teachers of the exam's grade that a
// student has submitted.
func NotifySubmissionCreated(ctx context.Context, db *gorm.DB, pub EventPublisher, gradeID uuid.UUID, submission *models.Submission) {
	recipients, err := gradeTeacherIDs(ctx, db, gradeID)
	if err != nil {
		log.Printf("Error resolving teachers for grade %s: %v", gradeID, err)
		return
	}
	pub.Publish(websocket.Event{
		Type: websocket.EventSubmissionCreated,
		Payload: map[string]interface{}{
			"submissionId": submission.ID,
			"examId":       submission.ExamID,
			"studentId":    submission.StudentID,
			"totalScore":   submission.TotalScore,
		},
		RecipientIDs: recipients,
	})
}

// NotifyResultsToggled tells the students of the exam's grade that result
// visibility changed.
func NotifyResultsToggled(ctx context.Context, db *gorm.DB, pub EventPublisher, exam *models.Exam) {
	recipients, err := gradeStudentIDs(ctx, db, exam.GradeID)
	if err != nil {
		log.Printf("Error resolving students for grade %s: %v", exam.GradeID, err)
		return
	}
	pub.Publish(websocket.Event{
		Type: websocket.EventResultsToggled,
		Payload: map[string]interface{}{
			"examId":          exam.ID,
			"title":           exam.Title,
			"resultsReleased": exam.ResultsReleased,
		},
		RecipientIDs: recipients,
	})
}
