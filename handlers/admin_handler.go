package handlers

import (
	"fmt"
	"strings"

	config "github.com/anjiri1684/smartscore/configs"
	"github.com/anjiri1684/smartscore/database"
	"github.com/anjiri1684/smartscore/models"
	"github.com/anjiri1684/smartscore/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jinzhu/now"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type GradeRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type CourseRequest struct {
	Name    string    `json:"name" validate:"required,max=255"`
	GradeID uuid.UUID `json:"gradeId" validate:"required"`
}

type CreateTeacherRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"omitempty,min=6"`
}

type CreateStudentRequest struct {
	Name                 string     `json:"name" validate:"required,max=255"`
	Email                string     `json:"email" validate:"required,email"`
	Password             string     `json:"password" validate:"omitempty,min=6"`
	StudentID            string     `json:"studentId"`
	RollNumber           string     `json:"rollNumber"`
	UniversityRollNumber string     `json:"universityRollNumber"`
	Semester             *int       `json:"semester" validate:"omitempty,min=1"`
	GradeID              *uuid.UUID `json:"gradeId"`
}

type AssignTeacherGradeRequest struct {
	TeacherID uuid.UUID `json:"teacherId" validate:"required"`
	GradeID   uuid.UUID `json:"gradeId" validate:"required"`
}

func CreateGrade(c *fiber.Ctx) error {
	var req GradeRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	grade := models.Grade{Name: strings.TrimSpace(req.Name)}
	var existing int64
	if err := database.DB.Model(&models.Grade{}).Where("LOWER(name) = LOWER(?)", grade.Name).Count(&existing).Error; err != nil {
		return respondError(c, err)
	}
	if existing > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Grade already exists"})
	}
	if err := database.DB.Create(&grade).Error; err != nil {
		if services.IsUniqueViolation(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Grade already exists"})
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(grade)
}

func ListGrades(c *fiber.Ctx) error {
	var grades []models.Grade
	if err := database.DB.Preload("Courses").Order("name").Find(&grades).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(grades)
}

func DeleteGrade(c *fiber.Ctx) error {
	gradeID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := services.DeleteGrade(c.UserContext(), database.DB, gradeID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Grade deleted successfully"})
}

func CreateCourse(c *fiber.Ctx) error {
	var req CourseRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	var grade models.Grade
	if err := database.DB.Select("id").First(&grade, "id = ?", req.GradeID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Grade not found"})
	}

	course := models.Course{Name: strings.TrimSpace(req.Name), GradeID: grade.ID}
	if err := database.DB.Create(&course).Error; err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(course)
}

func ListCourses(c *fiber.Ctx) error {
	gradeID, err := paramUUID(c, "gradeId")
	if err != nil {
		return respondError(c, err)
	}
	var courses []models.Course
	if err := database.DB.Where("grade_id = ?", gradeID).Order("name").Find(&courses).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(courses)
}

func DeleteCourse(c *fiber.Ctx) error {
	courseID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := services.DeleteCourse(c.UserContext(), database.DB, courseID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Course deleted successfully"})
}

func hashPasswordOrDefault(password string) (string, error) {
	if password == "" {
		password = config.DefaultUserPassword()
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func createUser(c *fiber.Ctx, user *models.User) error {
	if err := database.DB.Create(user).Error; err != nil {
		if services.IsUniqueViolation(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already exists"})
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func CreateTeacher(c *fiber.Ctx) error {
	var req CreateTeacherRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	hashed, err := hashPasswordOrDefault(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	return createUser(c, &models.User{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Password:   hashed,
		Role:       models.RoleTeacher,
		FirstLogin: true,
	})
}

func CreateStudent(c *fiber.Ctx) error {
	var req CreateStudentRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	if req.GradeID != nil {
		var grade models.Grade
		if err := database.DB.Select("id").First(&grade, "id = ?", *req.GradeID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Grade not found"})
		}
	}
	hashed, err := hashPasswordOrDefault(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	return createUser(c, &models.User{
		Name:                 strings.TrimSpace(req.Name),
		Email:                strings.ToLower(strings.TrimSpace(req.Email)),
		Password:             hashed,
		Role:                 models.RoleStudent,
		FirstLogin:           true,
		StudentNumber:        optional(req.StudentID),
		RollNumber:           optional(req.RollNumber),
		UniversityRollNumber: optional(req.UniversityRollNumber),
		Semester:             req.Semester,
		GradeID:              req.GradeID,
	})
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func ListTeachers(c *fiber.Ctx) error {
	var teachers []models.User
	err := database.DB.
		Preload("TeachingGrades").
		Where("role = ?", models.RoleTeacher).
		Order("name").
		Find(&teachers).Error
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(teachers)
}

func ListStudents(c *fiber.Ctx) error {
	query := database.DB.Preload("Grade").Where("role = ?", models.RoleStudent)
	if raw := c.Query("gradeId"); raw != "" {
		gradeID, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid gradeId"})
		}
		query = query.Where("grade_id = ?", gradeID)
	}

	var students []models.User
	if err := query.Order("name").Find(&students).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(students)
}

func loadTeacherAndGrade(teacherID, gradeID uuid.UUID) (*models.User, *models.Grade, error) {
	var teacher models.User
	if err := database.DB.First(&teacher, "id = ? AND role = ?", teacherID, models.RoleTeacher).Error; err != nil {
		return nil, nil, services.NotFoundError("Teacher not found")
	}
	var grade models.Grade
	if err := database.DB.First(&grade, "id = ?", gradeID).Error; err != nil {
		return nil, nil, services.NotFoundError("Grade not found")
	}
	return &teacher, &grade, nil
}

func AssignTeacherGrade(c *fiber.Ctx) error {
	var req AssignTeacherGradeRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	teacher, grade, err := loadTeacherAndGrade(req.TeacherID, req.GradeID)
	if err != nil {
		return respondError(c, err)
	}

	if err := database.DB.Model(teacher).Association("TeachingGrades").Append(grade); err != nil {
		return respondError(c, err)
	}
	if err := database.DB.Preload("TeachingGrades").First(teacher, "id = ?", teacher.ID).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(teacher)
}

func UnassignTeacherGrade(c *fiber.Ctx) error {
	teacherID, err := paramUUID(c, "teacherId")
	if err != nil {
		return respondError(c, err)
	}
	gradeID, err := paramUUID(c, "gradeId")
	if err != nil {
		return respondError(c, err)
	}
	teacher, grade, err := loadTeacherAndGrade(teacherID, gradeID)
	if err != nil {
		return respondError(c, err)
	}

	if err := database.DB.Model(teacher).Association("TeachingGrades").Delete(grade); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Teacher removed from grade"})
}

func AdminDeleteUser(c *fiber.Ctx) error {
	userID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	user, err := services.DeleteUser(c.UserContext(), database.DB, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": fmt.Sprintf("%s %s deleted successfully", strings.ToLower(user.Role), user.Name)})
}

func AdminDeleteExam(c *fiber.Ctx) error {
	examID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := services.PurgeExam(c.UserContext(), database.DB, examID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Exam, questions and submissions deleted successfully"})
}

type countRow struct {
	RefID uuid.UUID
	Count int64
}

func countsBy(query *gorm.DB, column string) (map[uuid.UUID]int64, error) {
	var rows []countRow
	err := query.Select(column + " AS ref_id, COUNT(*) AS count").Group(column).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		counts[r.RefID] = r.Count
	}
	return counts, nil
}

type gradeOverview struct {
	models.Grade
	StudentCount int64 `json:"studentCount"`
	TeacherCount int64 `json:"teacherCount"`
	CourseCount  int64 `json:"courseCount"`
	ExamCount    int64 `json:"examCount"`
}

func GetOverview(c *fiber.Ctx) error {
	db := database.DB

	var grades []models.Grade
	if err := db.Preload("Courses").Preload("Teachers").Order("name").Find(&grades).Error; err != nil {
		return respondError(c, err)
	}

	students, err := countsBy(db.Model(&models.User{}).Where("role = ? AND grade_id IS NOT NULL", models.RoleStudent), "grade_id")
	if err != nil {
		return respondError(c, err)
	}
	exams, err := countsBy(db.Model(&models.Exam{}), "grade_id")
	if err != nil {
		return respondError(c, err)
	}

	var totalStudents, totalTeachers, examsToday int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleStudent).Count(&totalStudents).Error; err != nil {
		return respondError(c, err)
	}
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleTeacher).Count(&totalTeachers).Error; err != nil {
		return respondError(c, err)
	}
	err = db.Model(&models.Exam{}).
		Where("scheduled_date BETWEEN ? AND ?", now.BeginningOfDay(), now.EndOfDay()).
		Count(&examsToday).Error
	if err != nil {
		return respondError(c, err)
	}

	overview := make([]gradeOverview, 0, len(grades))
	for _, g := range grades {
		overview = append(overview, gradeOverview{
			Grade:        g,
			StudentCount: students[g.ID],
			TeacherCount: int64(len(g.Teachers)),
			CourseCount:  int64(len(g.Courses)),
			ExamCount:    exams[g.ID],
		})
	}

	return c.JSON(fiber.Map{
		"totalGrades":   len(grades),
		"totalStudents": totalStudents,
		"totalTeachers": totalTeachers,
		"examsToday":    examsToday,
		"grades":        overview,
	})
}

type examSummary struct {
	models.Exam
	SubmissionCount int64 `json:"submissionCount"`
	QuestionCount   int64 `json:"questionCount"`
}

type gradeWithExams struct {
	models.Grade
	Exams []examSummary `json:"exams"`
}

func ListGradesWithExams(c *fiber.Ctx) error {
	db := database.DB

	var grades []models.Grade
	if err := db.Order("name").Find(&grades).Error; err != nil {
		return respondError(c, err)
	}
	var exams []models.Exam
	if err := db.Preload("Course").Order("scheduled_date desc").Find(&exams).Error; err != nil {
		return respondError(c, err)
	}
	submissions, err := countsBy(db.Model(&models.Submission{}), "exam_id")
	if err != nil {
		return respondError(c, err)
	}
	questions, err := countsBy(db.Model(&models.Question{}), "exam_id")
	if err != nil {
		return respondError(c, err)
	}

	byGrade := make(map[uuid.UUID][]examSummary, len(grades))
	for _, e := range exams {
		byGrade[e.GradeID] = append(byGrade[e.GradeID], examSummary{
			Exam:            e,
			SubmissionCount: submissions[e.ID],
			QuestionCount:   questions[e.ID],
		})
	}

	result := make([]gradeWithExams, 0, len(grades))
	for _, g := range grades {
		list := byGrade[g.ID]
		if list == nil {
			list = []examSummary{}
		}
		result = append(result, gradeWithExams{Grade: g, Exams: list})
	}
	return c.JSON(result)
}
