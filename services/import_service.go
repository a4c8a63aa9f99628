package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	config "github.com/anjiri1684/smartscore/configs"
	"github.com/anjiri1684/smartscore/models"
	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var validate = validator.New()

var (
	StudentHeaders  = []string{"name", "email", "studentId", "rollNumber", "universityRollNumber", "grade", "semester"}
	TeacherHeaders  = []string{"name", "email", "grades"}
	QuestionHeaders = []string{"question", "optionA", "optionB", "optionC", "optionD", "correctOption", "marks"}
)

var optionLetters = []string{"A", "B", "C", "D"}

// RowError lists every problem found on one spreadsheet row. Row 1 is the
// header, so data rows start at 2.
type RowError struct {
	Row    int      `json:"row"`
	Errors []string `json:"errors"`
}

// ImportFailure is returned when at least one row is invalid. Nothing is
// committed in that case.
type ImportFailure struct {
	TotalRows  int
	ErrorCount int
	Rows       []RowError
}

func (f *ImportFailure) Error() string {
	return fmt.Sprintf("CSV validation failed: %d of %d rows have errors", f.ErrorCount, f.TotalRows)
}

type csvTable struct {
	index map[string]int
	rows  [][]string
	lines []int
}

// line is the spreadsheet row a record started on. Blank lines and quoted
// newlines make it differ from the record index.
func (t *csvTable) line(i int) int {
	return t.lines[i]
}

func (t *csvTable) field(row []string, name string) string {
	i, ok := t.index[strings.ToLower(name)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func readCSV(r io.Reader, required []string) (*csvTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ValidationError("The file is empty")
	}
	if err != nil {
		return nil, ValidationError("Could not parse CSV: %v", err)
	}

	table := &csvTable{index: make(map[string]int, len(header))}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if _, seen := table.index[key]; !seen {
			table.index[key] = i
		}
	}

	var missing []string
	for _, name := range required {
		if _, ok := table.index[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, ValidationError("Missing required headers: %s", strings.Join(missing, ", "))
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ValidationError("Could not parse CSV: %v", err)
		}
		line, _ := reader.FieldPos(0)
		table.rows = append(table.rows, row)
		table.lines = append(table.lines, line)
	}
	if len(table.rows) == 0 {
		return nil, ValidationError("The file is empty")
	}
	return table, nil
}

type rowChecker struct {
	errs []string
}

func (c *rowChecker) addf(format string, args ...interface{}) {
	c.errs = append(c.errs, fmt.Sprintf(format, args...))
}

func (c *rowChecker) required(value, field string) bool {
	if value == "" {
		c.addf("%s is required", field)
		return false
	}
	return true
}

func (c *rowChecker) positiveInt(value, field string) int {
	if !c.required(value, field) {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		c.addf("%s must be a whole number of at least 1, got %q", field, value)
		return 0
	}
	return n
}

// emailTracker flags malformed, repeated and already registered addresses.
type emailTracker struct {
	seen     map[string]int
	existing map[string]bool
}

func newEmailTracker(ctx context.Context, db *gorm.DB, table *csvTable) (*emailTracker, error) {
	var emails []string
	for _, row := range table.rows {
		if email := strings.ToLower(table.field(row, "email")); email != "" {
			emails = append(emails, email)
		}
	}

	tracker := &emailTracker{seen: map[string]int{}, existing: map[string]bool{}}
	if len(emails) == 0 {
		return tracker, nil
	}

	var registered []string
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email IN ?", emails).Pluck("email", &registered).Error; err != nil {
		return nil, errors.Wrap(err, "load registered emails")
	}
	for _, email := range registered {
		tracker.existing[strings.ToLower(email)] = true
	}
	return tracker, nil
}

func (t *emailTracker) check(c *rowChecker, raw string, rowNum int) string {
	if !c.required(raw, "email") {
		return ""
	}
	email := strings.ToLower(raw)
	if err := validate.Var(email, "email"); err != nil {
		c.addf("email %q is not a valid email address", raw)
		return ""
	}
	if first, dup := t.seen[email]; dup {
		c.addf("email %s duplicates row %d", email, first)
		return ""
	}
	t.seen[email] = rowNum
	if t.existing[email] {
		c.addf("email %s is already registered", email)
		return ""
	}
	return email
}

// gradeLookup resolves grade names case-insensitively.
type gradeLookup struct {
	byName    map[string]models.Grade
	ambiguous map[string][]string
	available string
}

func loadGradeLookup(ctx context.Context, db *gorm.DB) (*gradeLookup, error) {
	var grades []models.Grade
	if err := db.WithContext(ctx).Order("name").Find(&grades).Error; err != nil {
		return nil, errors.Wrap(err, "load grades")
	}
	lookup := &gradeLookup{byName: make(map[string]models.Grade, len(grades)), ambiguous: map[string][]string{}}
	names := make([]string, 0, len(grades))
	for _, g := range grades {
		key := strings.ToLower(g.Name)
		if prev, dup := lookup.byName[key]; dup {
			if len(lookup.ambiguous[key]) == 0 {
				lookup.ambiguous[key] = []string{prev.Name}
			}
			lookup.ambiguous[key] = append(lookup.ambiguous[key], g.Name)
		}
		lookup.byName[key] = g
		names = append(names, g.Name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		lookup.available = "none"
	} else {
		lookup.available = strings.Join(names, ", ")
	}
	return lookup, nil
}

func (l *gradeLookup) resolve(c *rowChecker, name string) (models.Grade, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if matches := l.ambiguous[key]; len(matches) > 0 {
		c.addf("grade %q is ambiguous (matches: %s)", name, strings.Join(matches, ", "))
		return models.Grade{}, false
	}
	g, ok := l.byName[key]
	if !ok {
		c.addf("grade %q not found (available: %s)", name, l.available)
	}
	return g, ok
}

type rowReport struct {
	total int
	rows  []RowError
}

func (r *rowReport) record(rowNum int, c *rowChecker) bool {
	r.total++
	if len(c.errs) == 0 {
		return true
	}
	r.rows = append(r.rows, RowError{Row: rowNum, Errors: c.errs})
	return false
}

func (r *rowReport) failure(kind string) error {
	if len(r.rows) == 0 {
		return nil
	}
	importRows.WithLabelValues(kind, "invalid").Add(float64(len(r.rows)))
	return &ImportFailure{TotalRows: r.total, ErrorCount: len(r.rows), Rows: r.rows}
}

func defaultPasswordHash() (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(config.DefaultUserPassword()), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash default password")
	}
	return string(hash), nil
}

func commitImport(ctx context.Context, db *gorm.DB, kind string, count int, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, config.TxTimeout())
	defer cancel()

	if err := db.WithContext(ctx).Transaction(fn); err != nil {
		importRows.WithLabelValues(kind, "failed").Add(float64(count))
		return errors.Wrapf(err, "commit %s import", kind)
	}
	importRows.WithLabelValues(kind, "committed").Add(float64(count))
	return nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// ImportStudents validates every row of a student CSV and creates all of
// them, or none.
func ImportStudents(ctx context.Context, db *gorm.DB, r io.Reader) (int, error) {
	table, err := readCSV(r, StudentHeaders)
	if err != nil {
		return 0, err
	}
	grades, err := loadGradeLookup(ctx, db)
	if err != nil {
		return 0, err
	}
	emails, err := newEmailTracker(ctx, db, table)
	if err != nil {
		return 0, err
	}

	report := &rowReport{}
	students := make([]models.User, 0, len(table.rows))
	for i, row := range table.rows {
		rowNum := table.line(i)
		c := &rowChecker{}

		name := table.field(row, "name")
		c.required(name, "name")
		email := emails.check(c, table.field(row, "email"), rowNum)
		studentID := table.field(row, "studentId")
		c.required(studentID, "studentId")

		var gradeID *uuid.UUID
		if gradeName := table.field(row, "grade"); c.required(gradeName, "grade") {
			if g, ok := grades.resolve(c, gradeName); ok {
				id := g.ID
				gradeID = &id
			}
		}
		semester := c.positiveInt(table.field(row, "semester"), "semester")

		if !report.record(rowNum, c) {
			continue
		}
		students = append(students, models.User{
			Name:                 name,
			Email:                email,
			Role:                 models.RoleStudent,
			FirstLogin:           true,
			StudentNumber:        &studentID,
			RollNumber:           optionalString(table.field(row, "rollNumber")),
			UniversityRollNumber: optionalString(table.field(row, "universityRollNumber")),
			Semester:             &semester,
			GradeID:              gradeID,
		})
	}
	if err := report.failure(models.ImportKindStudents); err != nil {
		return 0, err
	}

	hash, err := defaultPasswordHash()
	if err != nil {
		return 0, err
	}
	for i := range students {
		students[i].Password = hash
	}

	err = commitImport(ctx, db, models.ImportKindStudents, len(students), func(tx *gorm.DB) error {
		return tx.CreateInBatches(&students, 100).Error
	})
	if err != nil {
		return 0, err
	}
	return len(students), nil
}

// ImportTeachers creates teacher accounts and links each to the grades
// named in its semicolon-separated grades column.
func ImportTeachers(ctx context.Context, db *gorm.DB, r io.Reader) (int, error) {
	table, err := readCSV(r, TeacherHeaders)
	if err != nil {
		return 0, err
	}
	grades, err := loadGradeLookup(ctx, db)
	if err != nil {
		return 0, err
	}
	emails, err := newEmailTracker(ctx, db, table)
	if err != nil {
		return 0, err
	}

	report := &rowReport{}
	teachers := make([]models.User, 0, len(table.rows))
	for i, row := range table.rows {
		rowNum := table.line(i)
		c := &rowChecker{}

		name := table.field(row, "name")
		c.required(name, "name")
		email := emails.check(c, table.field(row, "email"), rowNum)

		var teaching []*models.Grade
		linked := map[uuid.UUID]bool{}
		for _, gradeName := range strings.Split(table.field(row, "grades"), ";") {
			if strings.TrimSpace(gradeName) == "" {
				continue
			}
			g, ok := grades.resolve(c, gradeName)
			if !ok || linked[g.ID] {
				continue
			}
			linked[g.ID] = true
			grade := g
			teaching = append(teaching, &grade)
		}

		if !report.record(rowNum, c) {
			continue
		}
		teachers = append(teachers, models.User{
			Name:           name,
			Email:          email,
			Role:           models.RoleTeacher,
			FirstLogin:     true,
			TeachingGrades: teaching,
		})
	}
	if err := report.failure(models.ImportKindTeachers); err != nil {
		return 0, err
	}

	hash, err := defaultPasswordHash()
	if err != nil {
		return 0, err
	}
	for i := range teachers {
		teachers[i].Password = hash
	}

	err = commitImport(ctx, db, models.ImportKindTeachers, len(teachers), func(tx *gorm.DB) error {
		return tx.Omit("TeachingGrades.*").Create(&teachers).Error
	})
	if err != nil {
		return 0, err
	}
	return len(teachers), nil
}

// ImportQuestions adds MCQ questions to an exam. Each row becomes one
// question with four options, exactly one of them correct.
func ImportQuestions(ctx context.Context, db *gorm.DB, examID uuid.UUID, r io.Reader) (int, error) {
	var exam models.Exam
	if err := db.WithContext(ctx).Select("id").First(&exam, "id = ?", examID).Error; err != nil {
		return 0, notFoundOr(err, "Exam not found")
	}

	table, err := readCSV(r, QuestionHeaders)
	if err != nil {
		return 0, err
	}

	report := &rowReport{}
	seen := map[string]int{}
	questions := make([]models.Question, 0, len(table.rows))
	for i, row := range table.rows {
		rowNum := table.line(i)
		c := &rowChecker{}

		text := table.field(row, "question")
		if c.required(text, "question") {
			key := strings.ToLower(text)
			if first, dup := seen[key]; dup {
				c.addf("question duplicates row %d", first)
			} else {
				seen[key] = rowNum
			}
		}

		options := make([]models.Option, 0, len(optionLetters))
		for _, letter := range optionLetters {
			field := "option" + letter
			optionText := table.field(row, field)
			c.required(optionText, field)
			options = append(options, models.Option{OptionText: optionText})
		}

		correct := strings.ToUpper(table.field(row, "correctOption"))
		correctIndex := -1
		if c.required(correct, "correctOption") {
			for j, letter := range optionLetters {
				if letter == correct {
					correctIndex = j
				}
			}
			if correctIndex < 0 {
				c.addf("correctOption must be one of A, B, C, D, got %q", correct)
			}
		}
		marks := c.positiveInt(table.field(row, "marks"), "marks")

		if !report.record(rowNum, c) {
			continue
		}
		options[correctIndex].IsCorrect = true
		questions = append(questions, models.Question{
			ExamID:       exam.ID,
			Type:         models.QuestionTypeMCQ,
			QuestionText: text,
			Marks:        marks,
			Options:      options,
		})
	}
	if err := report.failure(models.ImportKindQuestions); err != nil {
		return 0, err
	}

	err = commitImport(ctx, db, models.ImportKindQuestions, len(questions), func(tx *gorm.DB) error {
		return tx.Create(&questions).Error
	})
	if err != nil {
		return 0, err
	}
	return len(questions), nil
}

type ImportMeta struct {
	Kind         string
	FileName     string
	UploadedByID uuid.UUID
	ExamID       *uuid.UUID
}

// RecordImportBatch writes the audit row for an upload, whatever its outcome.
func RecordImportBatch(ctx context.Context, db *gorm.DB, meta ImportMeta, count int, importErr error) (*models.ImportBatch, error) {
	batch := models.ImportBatch{
		Kind:         meta.Kind,
		FileName:     meta.FileName,
		UploadedByID: meta.UploadedByID,
		ExamID:       meta.ExamID,
		TotalRows:    count,
		Status:       models.ImportStatusCommitted,
	}

	if importErr != nil {
		batch.Status = models.ImportStatusRejected
		rows := []RowError{{Row: 1, Errors: []string{importErr.Error()}}}
		var failure *ImportFailure
		if errors.As(importErr, &failure) {
			batch.TotalRows = failure.TotalRows
			batch.ErrorCount = failure.ErrorCount
			rows = failure.Rows
		} else {
			batch.ErrorCount = 1
		}
		details, err := sonic.Marshal(rows)
		if err != nil {
			return nil, errors.Wrap(err, "encode import report")
		}
		batch.Details = details
	}

	if err := db.WithContext(ctx).Create(&batch).Error; err != nil {
		return nil, errors.Wrap(err, "record import batch")
	}
	return &batch, nil
}

func SetImportArchiveURL(ctx context.Context, db *gorm.DB, batchID uuid.UUID, url string) error {
	return db.WithContext(ctx).Model(&models.ImportBatch{}).Where("id = ?", batchID).Update("archive_url", url).Error
}
