package jobs

import (
	"testing"
	"time"

	"github.com/anjiri1684/smartscore/models"
	"github.com/anjiri1684/smartscore/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func scheduleExam(t *testing.T, db *gorm.DB, grade models.Grade, course models.Course, title string, at time.Time) models.Exam {
	t.Helper()
	exam := models.Exam{
		Title:           title,
		GradeID:         grade.ID,
		CourseID:        course.ID,
		ScheduledDate:   at,
		DurationMinutes: 45,
	}
	require.NoError(t, db.Create(&exam).Error)
	return exam
}

func TestUpcomingExamReminders(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

	btech := testutil.CreateGrade(t, db, "BTech")
	mba := testutil.CreateGrade(t, db, "MBA")
	course := testutil.CreateCourse(t, db, btech.ID, "Networks")
	mbaCourse := testutil.CreateCourse(t, db, mba.ID, "Finance")

	asha := testutil.CreateUser(t, db, models.RoleStudent, "asha@school.test", &btech.ID)
	testutil.CreateUser(t, db, models.RoleStudent, "mo@school.test", &mba.ID)
	testutil.CreateUser(t, db, models.RoleTeacher, "ruth@school.test", nil)

	due := scheduleExam(t, db, btech, course, "Networks Quiz", now.Add(62*time.Minute))
	scheduleExam(t, db, btech, course, "Too Early", now.Add(30*time.Minute))
	scheduleExam(t, db, btech, course, "Too Late", now.Add(70*time.Minute))
	empty := scheduleExam(t, db, mba, mbaCourse, "Finance Quiz", now.Add(60*time.Minute))

	reminders, err := UpcomingExamReminders(db, now.Add(reminderLead), now.Add(reminderLead+5*time.Minute))
	require.NoError(t, err)
	require.Len(t, reminders, 2)

	assert.Equal(t, empty.ID, reminders[0].Exam.ID)
	require.NotNil(t, reminders[0].Exam.Course)
	assert.Equal(t, "Finance", reminders[0].Exam.Course.Name)
	assert.Len(t, reminders[0].Students, 1)

	assert.Equal(t, due.ID, reminders[1].Exam.ID)
	require.Len(t, reminders[1].Students, 1)
	assert.Equal(t, asha.ID, reminders[1].Students[0].ID)
}

func TestUpcomingExamRemindersNone(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Now().UTC()
	reminders, err := UpcomingExamReminders(db, now, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, reminders)
}

func TestReminderWindowFollowsSchedule(t *testing.T) {
	job, err := NewReminderJob("*/10 * * * *")
	require.NoError(t, err)

	first := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	from, to := job.window(first)
	assert.Equal(t, first.Add(time.Hour), from)
	assert.Equal(t, first.Add(70*time.Minute), to)

	// a late run picks up where the previous one stopped
	late := first.Add(10*time.Minute + 20*time.Second)
	from, to = job.window(late)
	assert.Equal(t, first.Add(70*time.Minute), from)
	assert.Equal(t, first.Add(80*time.Minute), to)
}

func TestReminderWindowHourly(t *testing.T) {
	job, err := NewReminderJob("0 * * * *")
	require.NoError(t, err)

	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	from, to := job.window(now)
	assert.Equal(t, 60*time.Minute, to.Sub(from))

	_, err = NewReminderJob("every so often")
	assert.Error(t, err)
}
