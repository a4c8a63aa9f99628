package jobs

import (
	"fmt"
	"html"
	"log"
	"sync"
	"time"

	"github.com/anjiri1684/smartscore/database"
	"github.com/anjiri1684/smartscore/models"
	"github.com/anjiri1684/smartscore/notifications"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const reminderLead = 60 * time.Minute

// ReminderJob emails students an hour before their exams. Each run covers
// exams starting from where the previous run stopped up to an hour after
// the schedule's next run, so any cron spec neither skips nor repeats.
type ReminderJob struct {
	schedule cron.Schedule

	mu      sync.Mutex
	covered time.Time
}

func NewReminderJob(spec string) (*ReminderJob, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}
	return &ReminderJob{schedule: schedule}, nil
}

// window returns the scheduled-date range to remind for a run at now.
func (j *ReminderJob) window(now time.Time) (time.Time, time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()

	from := now.Add(reminderLead)
	if !j.covered.IsZero() && j.covered.Before(from) && j.covered.After(now) {
		from = j.covered
	}
	to := j.schedule.Next(now).Add(reminderLead)
	if to.Before(from) {
		to = from
	}
	j.covered = to
	return from, to
}

// Run implements cron.Job.
func (j *ReminderJob) Run() {
	from, to := j.window(time.Now())
	SendExamReminders(database.DB, from, to)
}

type ExamReminder struct {
	Exam     models.Exam
	Students []models.User
}

// UpcomingExamReminders finds exams scheduled in [from, to) with the
// students of each exam's grade.
func UpcomingExamReminders(db *gorm.DB, from, to time.Time) ([]ExamReminder, error) {
	if !to.After(from) {
		return nil, nil
	}

	var exams []models.Exam
	err := db.Preload("Course").
		Where("scheduled_date >= ? AND scheduled_date < ?", from, to).
		Order("scheduled_date").
		Find(&exams).Error
	if err != nil {
		return nil, err
	}
	if len(exams) == 0 {
		return nil, nil
	}

	gradeIDs := make([]uuid.UUID, 0, len(exams))
	for _, e := range exams {
		gradeIDs = append(gradeIDs, e.GradeID)
	}
	var students []models.User
	err = db.Select("id", "name", "email", "grade_id").
		Where("role = ? AND grade_id IN ?", models.RoleStudent, gradeIDs).
		Find(&students).Error
	if err != nil {
		return nil, err
	}

	byGrade := make(map[uuid.UUID][]models.User)
	for _, s := range students {
		byGrade[*s.GradeID] = append(byGrade[*s.GradeID], s)
	}

	reminders := make([]ExamReminder, 0, len(exams))
	for _, e := range exams {
		reminders = append(reminders, ExamReminder{Exam: e, Students: byGrade[e.GradeID]})
	}
	return reminders, nil
}

func SendExamReminders(db *gorm.DB, from, to time.Time) {
	log.Println("Running job: SendExamReminders...")

	reminders, err := UpcomingExamReminders(db, from, to)
	if err != nil {
		log.Printf("Error checking for upcoming exams: %v", err)
		return
	}

	for _, r := range reminders {
		log.Printf("Sending reminders for exam ID: %s to %d students", r.Exam.ID, len(r.Students))

		courseName := ""
		if r.Exam.Course != nil {
			courseName = r.Exam.Course.Name
		}
		emailSubject := fmt.Sprintf("Reminder: %s starts in 1 hour", r.Exam.Title)
		emailBody := fmt.Sprintf(
			"<h1>Exam Reminder</h1><p>Hi there,</p><p>Your exam <b>%s</b> (%s) starts at %s and runs for %d minutes.</p><p>Ask your teacher for the exam PIN before you begin.</p>",
			html.EscapeString(r.Exam.Title),
			html.EscapeString(courseName),
			r.Exam.ScheduledDate.Format(time.Kitchen),
			r.Exam.DurationMinutes,
		)

		for _, student := range r.Students {
			go notifications.SendEmail(student.Name, student.Email, emailSubject, emailBody)
		}
	}
}
