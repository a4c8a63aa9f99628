package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/anjiri1684/smartscore/models"
	"github.com/anjiri1684/smartscore/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const studentHeader = "name,email,studentId,rollNumber,universityRollNumber,grade,semester\n"

func importFailure(t *testing.T, err error) *ImportFailure {
	t.Helper()
	var failure *ImportFailure
	require.True(t, errors.As(err, &failure), "expected ImportFailure, got %v", err)
	return failure
}

func TestImportStudentsRejectsWholeFileOnOneBadRow(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateGrade(t, db, "BTech")

	csv := studentHeader +
		"Asha,,S-1,R1,U1,BTech,1\n" +
		"Brian,brian@school.test,S-2,R2,U2,BTech,1\n" +
		"Chen,chen@school.test,S-3,R3,U3,btech,2\n"

	count, err := ImportStudents(context.Background(), db, strings.NewReader(csv))
	require.Error(t, err)
	assert.Zero(t, count)
	assert.Equal(t, KindValidation, KindOf(err))

	failure := importFailure(t, err)
	assert.Equal(t, 3, failure.TotalRows)
	assert.Equal(t, 1, failure.ErrorCount)
	require.Len(t, failure.Rows, 1)
	assert.Equal(t, 2, failure.Rows[0].Row)
	assert.Contains(t, failure.Rows[0].Errors, "email is required")

	assert.Zero(t, testutil.Count(t, db, &models.User{}))
}

func TestImportStudentsCommitsAllRows(t *testing.T) {
	db := testutil.NewDB(t)
	grade := testutil.CreateGrade(t, db, "BTech")

	csv := "\ufeff Name ,EMAIL,studentid,rollNumber,universityRollNumber,Grade,semester\n" +
		"Asha,Asha@School.test,S-1,R1,,BTech,1\n" +
		"Brian,brian@school.test,S-2,,U2,btech,3\n"

	count, err := ImportStudents(context.Background(), db, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var students []models.User
	require.NoError(t, db.Order("name").Find(&students).Error)
	require.Len(t, students, 2)

	assert.Equal(t, "asha@school.test", students[0].Email)
	assert.Nil(t, students[0].UniversityRollNumber)
	assert.Equal(t, 3, *students[1].Semester)
	for _, s := range students {
		assert.Equal(t, models.RoleStudent, s.Role)
		assert.True(t, s.FirstLogin)
		require.NotNil(t, s.GradeID)
		assert.Equal(t, grade.ID, *s.GradeID)
	}
	assert.Equal(t, students[0].Password, students[1].Password, "default credential is hashed once")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(students[0].Password), []byte("portal@123")))
}

func TestImportStudentsRowChecks(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateGrade(t, db, "BTech")
	testutil.CreateGrade(t, db, "MBA")
	testutil.CreateUser(t, db, models.RoleStudent, "taken@school.test", nil)

	csv := studentHeader +
		"Asha,asha@school.test,S-1,,,BTech,1\n" +
		"Asha Two,ASHA@school.test,S-2,,,BTech,1\n" +
		"Taken,taken@school.test,S-3,,,BTech,1\n" +
		",not-an-email,,,,PhD,zero\n"

	_, err := ImportStudents(context.Background(), db, strings.NewReader(csv))
	failure := importFailure(t, err)
	assert.Equal(t, 4, failure.TotalRows)
	assert.Equal(t, 3, failure.ErrorCount)

	byRow := map[int][]string{}
	for _, r := range failure.Rows {
		byRow[r.Row] = r.Errors
	}
	assert.NotContains(t, byRow, 2)
	assert.Equal(t, []string{"email asha@school.test duplicates row 2"}, byRow[3])
	assert.Equal(t, []string{"email taken@school.test is already registered"}, byRow[4])

	last := strings.Join(byRow[5], "|")
	assert.Contains(t, last, "name is required")
	assert.Contains(t, last, `email "not-an-email" is not a valid email address`)
	assert.Contains(t, last, "studentId is required")
	assert.Contains(t, last, `grade "PhD" not found (available: BTech, MBA)`)
	assert.Contains(t, last, "semester must be a whole number of at least 1")
	assert.Len(t, byRow[5], 5)

	assert.Equal(t, int64(1), testutil.Count(t, db, &models.User{}))
}

func TestImportHeaderErrors(t *testing.T) {
	db := testutil.NewDB(t)

	t.Run("missing headers", func(t *testing.T) {
		_, err := ImportStudents(context.Background(), db, strings.NewReader("name,email\nAsha,a@b.co\n"))
		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Equal(t, "Missing required headers: studentId, rollNumber, universityRollNumber, grade, semester", err.Error())
	})

	t.Run("header only", func(t *testing.T) {
		_, err := ImportTeachers(context.Background(), db, strings.NewReader("name,email,grades\n"))
		require.Error(t, err)
		assert.Equal(t, "The file is empty", err.Error())
	})

	t.Run("no content", func(t *testing.T) {
		_, err := ImportTeachers(context.Background(), db, strings.NewReader(""))
		require.Error(t, err)
		assert.Equal(t, "The file is empty", err.Error())
	})

	t.Run("malformed csv", func(t *testing.T) {
		_, err := ImportTeachers(context.Background(), db, strings.NewReader("name,email,grades\n\"Asha,a@b.co,\n"))
		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
		assert.True(t, strings.HasPrefix(err.Error(), "Could not parse CSV"))
	})
}

func TestImportTeachersLinksGrades(t *testing.T) {
	db := testutil.NewDB(t)
	btech := testutil.CreateGrade(t, db, "BTech")
	mba := testutil.CreateGrade(t, db, "MBA")

	csv := "name,email,grades\n" +
		"Ruth,ruth@school.test,BTech; mba\n" +
		"Sam,sam@school.test,\n"

	count, err := ImportTeachers(context.Background(), db, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var ruth models.User
	require.NoError(t, db.Preload("TeachingGrades").First(&ruth, "email = ?", "ruth@school.test").Error)
	assert.Equal(t, models.RoleTeacher, ruth.Role)
	assert.True(t, ruth.FirstLogin)
	ids := []uuid.UUID{}
	for _, g := range ruth.TeachingGrades {
		ids = append(ids, g.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{btech.ID, mba.ID}, ids)
	assert.Equal(t, int64(2), testutil.Count(t, db, &models.Grade{}), "grades are linked, not duplicated")

	_, err = ImportTeachers(context.Background(), db, strings.NewReader("name,email,grades\nTia,tia@school.test,BTech;Law\n"))
	failure := importFailure(t, err)
	assert.Equal(t, []string{`grade "Law" not found (available: BTech, MBA)`}, failure.Rows[0].Errors)
	assert.Equal(t, int64(2), testutil.Count(t, db, &models.User{}))
}

func TestImportQuestions(t *testing.T) {
	db := testutil.NewDB(t)
	grade := testutil.CreateGrade(t, db, "BTech")
	course := testutil.CreateCourse(t, db, grade.ID, "Networks")
	exam := testutil.CreateExam(t, db, grade.ID, course.ID, "")
	header := "question,optionA,optionB,optionC,optionD,correctOption,marks\n"

	t.Run("valid file", func(t *testing.T) {
		csv := header +
			"What is TCP?,A protocol,A fruit,A car,A city,a,2\n" +
			"\"Port for HTTPS, usually?\",21,22,443,80,C,1\n"

		count, err := ImportQuestions(context.Background(), db, exam.ID, strings.NewReader(csv))
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		var questions []models.Question
		require.NoError(t, db.Preload("Options").Where("exam_id = ?", exam.ID).Order("marks desc").Find(&questions).Error)
		require.Len(t, questions, 2)
		for _, q := range questions {
			require.Len(t, q.Options, 4)
			correct := 0
			for _, o := range q.Options {
				if o.IsCorrect {
					correct++
				}
			}
			assert.Equal(t, 1, correct)
		}
		for _, o := range questions[1].Options {
			assert.Equal(t, o.OptionText == "443", o.IsCorrect)
		}
	})

	t.Run("invalid rows", func(t *testing.T) {
		csv := header +
			"Q1,a,b,c,d,E,0\n" +
			"Q2,a,,c,d,A,1\n" +
			"q1,a,b,c,d,B,1\n"

		_, err := ImportQuestions(context.Background(), db, exam.ID, strings.NewReader(csv))
		failure := importFailure(t, err)
		assert.Equal(t, 3, failure.TotalRows)
		assert.Equal(t, 3, failure.ErrorCount)
		assert.Equal(t, []string{
			`correctOption must be one of A, B, C, D, got "E"`,
			`marks must be a whole number of at least 1, got "0"`,
		}, failure.Rows[0].Errors)
		assert.Equal(t, []string{"optionB is required"}, failure.Rows[1].Errors)
		assert.Equal(t, []string{"question duplicates row 2"}, failure.Rows[2].Errors)
		assert.Equal(t, int64(2), testutil.Count(t, db, &models.Question{}))
	})

	t.Run("unknown exam", func(t *testing.T) {
		_, err := ImportQuestions(context.Background(), db, uuid.New(), strings.NewReader(header))
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}

func TestRecordImportBatch(t *testing.T) {
	db := testutil.NewDB(t)
	uploader := uuid.New()
	meta := ImportMeta{Kind: models.ImportKindStudents, FileName: "students.csv", UploadedByID: uploader}

	failure := &ImportFailure{TotalRows: 3, ErrorCount: 1, Rows: []RowError{{Row: 2, Errors: []string{"email is required"}}}}
	batch, err := RecordImportBatch(context.Background(), db, meta, 0, failure)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusRejected, batch.Status)
	assert.Equal(t, 3, batch.TotalRows)
	assert.Equal(t, 1, batch.ErrorCount)
	assert.JSONEq(t, `[{"row":2,"errors":["email is required"]}]`, string(batch.Details))

	batch, err = RecordImportBatch(context.Background(), db, meta, 0, ValidationError("The file is empty"))
	require.NoError(t, err)
	assert.Equal(t, 1, batch.ErrorCount)
	assert.JSONEq(t, `[{"row":1,"errors":["The file is empty"]}]`, string(batch.Details))

	batch, err = RecordImportBatch(context.Background(), db, meta, 12, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCommitted, batch.Status)
	assert.Equal(t, 12, batch.TotalRows)

	require.NoError(t, SetImportArchiveURL(context.Background(), db, batch.ID, "https://res.example/raw/students.csv"))
	var stored models.ImportBatch
	require.NoError(t, db.First(&stored, "id = ?", batch.ID).Error)
	require.NotNil(t, stored.ArchiveURL)
	assert.Equal(t, "https://res.example/raw/students.csv", *stored.ArchiveURL)
	assert.Equal(t, int64(3), testutil.Count(t, db, &models.ImportBatch{}))
}

func TestImportQuestionsRollsBackOnFailure(t *testing.T) {
	db := testutil.NewDB(t)
	grade := testutil.CreateGrade(t, db, "BTech")
	course := testutil.CreateCourse(t, db, grade.ID, "Networks")
	exam := testutil.CreateExam(t, db, grade.ID, course.ID, "")

	// questions are inserted before their options, so a failure on options
	// must take the questions with it
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_options", func(tx *gorm.DB) {
		if tx.Statement.Table == "options" {
			_ = tx.AddError(errors.New("boom"))
		}
	})
	require.NoError(t, err)

	csv := "question,optionA,optionB,optionC,optionD,correctOption,marks\n" +
		"What is TCP?,A protocol,A fruit,A car,A city,A,2\n" +
		"What is UDP?,A protocol,A fruit,A car,A city,A,2\n"
	_, err = ImportQuestions(context.Background(), db, exam.ID, strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit questions import")

	assert.Zero(t, testutil.Count(t, db, &models.Question{}))
	assert.Zero(t, testutil.Count(t, db, &models.Option{}))
}

func TestImportStudentsRollsBackOnFailure(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateGrade(t, db, "BTech")

	// fail the second batch so the first has already been written
	calls := 0
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_second_batch", func(tx *gorm.DB) {
		if tx.Statement.Table == "users" {
			calls++
			if calls > 1 {
				_ = tx.AddError(errors.New("boom"))
			}
		}
	})
	require.NoError(t, err)

	var b strings.Builder
	b.WriteString(studentHeader)
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&b, "Student %d,student%d@school.test,S-%d,,,BTech,1\n", i, i, i)
	}
	_, err = ImportStudents(context.Background(), db, strings.NewReader(b.String()))
	require.Error(t, err)
	assert.GreaterOrEqual(t, calls, 2)
	assert.Zero(t, testutil.Count(t, db, &models.User{}))
}

func TestImportReportsSpreadsheetRows(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateGrade(t, db, "BTech")

	csv := studentHeader +
		"\"Asha\nWanjiru\",asha@school.test,S-1,,,BTech,1\n" +
		"\n" +
		"Brian,,S-2,,,BTech,1\n"
	_, err := ImportStudents(context.Background(), db, strings.NewReader(csv))
	failure := importFailure(t, err)
	assert.Equal(t, 2, failure.TotalRows)
	require.Len(t, failure.Rows, 1)
	assert.Equal(t, 5, failure.Rows[0].Row)
}

func TestImportRejectsAmbiguousGrade(t *testing.T) {
	db := testutil.NewDB(t)
	// databases created before grade names were unique ignoring case
	require.NoError(t, db.Exec("DROP INDEX idx_grades_name_lower").Error)
	testutil.CreateGrade(t, db, "BTech")
	testutil.CreateGrade(t, db, "btech")

	csv := studentHeader +
		"Asha,asha@school.test,S-1,,,BTECH,1\n"
	_, err := ImportStudents(context.Background(), db, strings.NewReader(csv))
	failure := importFailure(t, err)
	require.Len(t, failure.Rows, 1)
	assert.Equal(t, []string{`grade "BTECH" is ambiguous (matches: BTech, btech)`}, failure.Rows[0].Errors)
}
