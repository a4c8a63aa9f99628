package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anjiri1684/smartscore/models"
	"github.com/anjiri1684/smartscore/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type gradeFixture struct {
	grade   models.Grade
	course  models.Course
	exam    models.Exam
	teacher models.User
	student models.User
}

func seedGrade(t *testing.T, db *gorm.DB, name string) gradeFixture {
	t.Helper()
	grade := testutil.CreateGrade(t, db, name)
	course := testutil.CreateCourse(t, db, grade.ID, "Algorithms")
	exam := testutil.CreateExam(t, db, grade.ID, course.ID, "1234", 5, 3)
	teacher := testutil.CreateUser(t, db, models.RoleTeacher, "teacher-"+strings.ToLower(name)+"@school.test", nil)
	testutil.AssignTeacher(t, db, &teacher, &grade)
	student := testutil.CreateUser(t, db, models.RoleStudent, "student-"+strings.ToLower(name)+"@school.test", &grade.ID)
	return gradeFixture{grade: grade, course: course, exam: exam, teacher: teacher, student: student}
}

func countWhere(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func TestCascadeOrderDeletesLeavesFirst(t *testing.T) {
	rank := map[string]int{
		"delete answers":     0,
		"delete submissions": 1,
		"delete options":     2,
		"delete questions":   3,
		"delete exams":       4,
		"delete courses":     5,
		"delete grade":       6,
		"delete user":        6,
	}

	for plan := range cascadePlans {
		t.Run(string(plan), func(t *testing.T) {
			last := -1
			deleting := false
			for _, step := range CascadeOrder(plan) {
				if step == "guard submissions" {
					assert.False(t, deleting, "guard must run before any delete")
				}
				r, ok := rank[step]
				if !ok {
					continue
				}
				deleting = true
				assert.GreaterOrEqual(t, r, last, "%s runs after a parent delete", step)
				last = r
			}
		})
	}
}

func TestDeleteGradeRemovesDependents(t *testing.T) {
	db := testutil.NewDB(t)
	f := seedGrade(t, db, "BTech")
	other := seedGrade(t, db, "MTech")

	require.NoError(t, DeleteGrade(context.Background(), db, f.grade.ID))

	assert.Zero(t, countWhere(t, db, &models.Grade{}, "id = ?", f.grade.ID))
	assert.Zero(t, countWhere(t, db, &models.Course{}, "grade_id = ?", f.grade.ID))
	assert.Zero(t, countWhere(t, db, &models.Exam{}, "grade_id = ?", f.grade.ID))
	assert.Zero(t, countWhere(t, db, &models.Question{}, "exam_id = ?", f.exam.ID))
	assert.Zero(t, countWhere(t, db, &models.Option{}, "question_id IN (SELECT id FROM questions WHERE exam_id = ?)", f.exam.ID))
	assert.Equal(t, int64(4), testutil.Count(t, db, &models.Option{}), "other grade's options stay")

	var links int64
	require.NoError(t, db.Table("teacher_grades").Where("grade_id = ?", f.grade.ID).Count(&links).Error)
	assert.Zero(t, links)

	var student models.User
	require.NoError(t, db.First(&student, "id = ?", f.student.ID).Error)
	assert.Nil(t, student.GradeID)
	assert.Equal(t, int64(1), countWhere(t, db, &models.User{}, "id = ?", f.teacher.ID), "teacher account is kept")

	assert.Equal(t, int64(1), countWhere(t, db, &models.Grade{}, "id = ?", other.grade.ID))
	assert.Equal(t, int64(2), countWhere(t, db, &models.Question{}, "exam_id = ?", other.exam.ID))
}

func TestDeleteGradeBlockedBySubmissions(t *testing.T) {
	db := testutil.NewDB(t)
	f := seedGrade(t, db, "BTech")
	testutil.CreateSubmission(t, db, f.exam, f.student.ID)

	err := DeleteGrade(context.Background(), db, f.grade.ID)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Contains(t, err.Error(), "has exams with student submissions")

	assert.Equal(t, int64(1), countWhere(t, db, &models.Grade{}, "id = ?", f.grade.ID))
	assert.Equal(t, int64(1), countWhere(t, db, &models.Course{}, "grade_id = ?", f.grade.ID))
	assert.Equal(t, int64(1), countWhere(t, db, &models.Exam{}, "grade_id = ?", f.grade.ID))
	assert.Equal(t, int64(2), countWhere(t, db, &models.Question{}, "exam_id = ?", f.exam.ID))
	assert.Equal(t, int64(4), testutil.Count(t, db, &models.Option{}))

	var links int64
	require.NoError(t, db.Table("teacher_grades").Where("grade_id = ?", f.grade.ID).Count(&links).Error)
	assert.Equal(t, int64(1), links)
	var student models.User
	require.NoError(t, db.First(&student, "id = ?", f.student.ID).Error)
	require.NotNil(t, student.GradeID)
	assert.Equal(t, f.grade.ID, *student.GradeID)
}

func TestDeleteCourse(t *testing.T) {
	db := testutil.NewDB(t)
	f := seedGrade(t, db, "BTech")

	t.Run("blocked by submissions", func(t *testing.T) {
		sub := testutil.CreateSubmission(t, db, f.exam, f.student.ID)
		err := DeleteCourse(context.Background(), db, f.course.ID)
		assert.Equal(t, KindConflict, KindOf(err))
		assert.Equal(t, int64(1), countWhere(t, db, &models.Course{}, "id = ?", f.course.ID))
		require.NoError(t, DeleteSubmission(context.Background(), db, sub.ID))
	})

	t.Run("removes exams and questions", func(t *testing.T) {
		require.NoError(t, DeleteCourse(context.Background(), db, f.course.ID))
		assert.Zero(t, countWhere(t, db, &models.Course{}, "id = ?", f.course.ID))
		assert.Zero(t, testutil.Count(t, db, &models.Exam{}))
		assert.Zero(t, testutil.Count(t, db, &models.Question{}))
		assert.Zero(t, testutil.Count(t, db, &models.Option{}))
		assert.Equal(t, int64(1), countWhere(t, db, &models.Grade{}, "id = ?", f.grade.ID))
	})

	t.Run("missing course", func(t *testing.T) {
		err := DeleteCourse(context.Background(), db, uuid.New())
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}

func TestDeleteExamRequiresPassword(t *testing.T) {
	db := testutil.NewDB(t)
	f := seedGrade(t, db, "BTech")

	err := DeleteExam(context.Background(), db, f.exam.ID, "wrong")
	require.Error(t, err)
	assert.Equal(t, KindAuthorization, KindOf(err))
	assert.Equal(t, "Incorrect password", err.Error())
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Exam{}))

	require.NoError(t, DeleteExam(context.Background(), db, f.exam.ID, "1234"))
	assert.Zero(t, testutil.Count(t, db, &models.Exam{}))
	assert.Zero(t, testutil.Count(t, db, &models.Question{}))
	assert.Zero(t, testutil.Count(t, db, &models.Option{}))
}

func TestDeleteExamRefusesWhenSubmitted(t *testing.T) {
	db := testutil.NewDB(t)
	f := seedGrade(t, db, "BTech")
	testutil.CreateSubmission(t, db, f.exam, f.student.ID)

	err := DeleteExam(context.Background(), db, f.exam.ID, "1234")
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Exam{}))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Submission{}))
}

func TestPurgeExamRemovesSubmissions(t *testing.T) {
	db := testutil.NewDB(t)
	f := seedGrade(t, db, "BTech")
	testutil.CreateSubmission(t, db, f.exam, f.student.ID)

	require.NoError(t, PurgeExam(context.Background(), db, f.exam.ID))

	assert.Zero(t, testutil.Count(t, db, &models.Exam{}))
	assert.Zero(t, testutil.Count(t, db, &models.Question{}))
	assert.Zero(t, testutil.Count(t, db, &models.Option{}))
	assert.Zero(t, testutil.Count(t, db, &models.Submission{}))
	assert.Zero(t, testutil.Count(t, db, &models.Answer{}))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Course{}))
}

func TestDeleteQuestion(t *testing.T) {
	db := testutil.NewDB(t)
	f := seedGrade(t, db, "BTech")
	target := f.exam.Questions[0]

	require.NoError(t, DeleteQuestion(context.Background(), db, target.ID))
	assert.Zero(t, countWhere(t, db, &models.Question{}, "id = ?", target.ID))
	assert.Zero(t, countWhere(t, db, &models.Option{}, "question_id = ?", target.ID))
	assert.Equal(t, int64(2), testutil.Count(t, db, &models.Option{}))

	err := DeleteQuestion(context.Background(), db, target.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestDeleteUser(t *testing.T) {
	db := testutil.NewDB(t)
	f := seedGrade(t, db, "BTech")
	admin := testutil.CreateUser(t, db, models.RoleAdmin, "admin@school.test", nil)

	t.Run("admin is forbidden", func(t *testing.T) {
		_, err := DeleteUser(context.Background(), db, admin.ID)
		assert.Equal(t, KindForbidden, KindOf(err))
		assert.Equal(t, int64(1), countWhere(t, db, &models.User{}, "id = ?", admin.ID))
	})

	t.Run("student takes submissions and answers", func(t *testing.T) {
		testutil.CreateSubmission(t, db, f.exam, f.student.ID)
		deleted, err := DeleteUser(context.Background(), db, f.student.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleStudent, deleted.Role)
		assert.Zero(t, countWhere(t, db, &models.User{}, "id = ?", f.student.ID))
		assert.Zero(t, testutil.Count(t, db, &models.Submission{}))
		assert.Zero(t, testutil.Count(t, db, &models.Answer{}))
		assert.Equal(t, int64(1), testutil.Count(t, db, &models.Exam{}))
	})

	t.Run("teacher is unlinked from grades", func(t *testing.T) {
		_, err := DeleteUser(context.Background(), db, f.teacher.ID)
		require.NoError(t, err)
		var links int64
		require.NoError(t, db.Table("teacher_grades").Count(&links).Error)
		assert.Zero(t, links)
		assert.Equal(t, int64(1), countWhere(t, db, &models.Grade{}, "id = ?", f.grade.ID))
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := DeleteUser(context.Background(), db, uuid.New())
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}

func TestDeleteSubmissionAllowsRetake(t *testing.T) {
	db := testutil.NewDB(t)
	f := seedGrade(t, db, "BTech")
	sub := testutil.CreateSubmission(t, db, f.exam, f.student.ID)

	require.NoError(t, DeleteSubmission(context.Background(), db, sub.ID))
	assert.Zero(t, testutil.Count(t, db, &models.Submission{}))
	assert.Zero(t, testutil.Count(t, db, &models.Answer{}))

	testutil.CreateSubmission(t, db, f.exam, f.student.ID)
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Submission{}))
}

func failDeletesOn(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	err := db.Callback().Delete().Before("gorm:delete").Register("test:fail_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errors.New("boom"))
		}
	})
	require.NoError(t, err)
}

func TestDeleteGradeRollsBackOnFailure(t *testing.T) {
	db := testutil.NewDB(t)
	f := seedGrade(t, db, "BTech")
	failDeletesOn(t, db, "exams")

	err := DeleteGrade(context.Background(), db, f.grade.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// options and questions were deleted before the failing step
	assert.Equal(t, int64(4), testutil.Count(t, db, &models.Option{}))
	assert.Equal(t, int64(2), testutil.Count(t, db, &models.Question{}))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Exam{}))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Course{}))
	assert.Equal(t, int64(1), testutil.Count(t, db, &models.Grade{}))

	var student models.User
	require.NoError(t, db.First(&student, "id = ?", f.student.ID).Error)
	require.NotNil(t, student.GradeID)
	assert.Equal(t, f.grade.ID, *student.GradeID)
}
