package routes

import (
	"github.com/anjiri1684/smartscore/handlers"
	"github.com/anjiri1684/smartscore/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(api fiber.Router) {
	admin := api.Group("/admin", middleware.Protected())
	adminOnly := middleware.AdminRequired()

	// Grade and course listings are shared with teachers for exam setup.
	admin.Get("/grades", handlers.ListGrades)
	admin.Get("/courses/:gradeId", handlers.ListCourses)

	admin.Post("/grades", adminOnly, handlers.CreateGrade)
	admin.Delete("/grades/:id", adminOnly, handlers.DeleteGrade)
	admin.Post("/courses", adminOnly, handlers.CreateCourse)
	admin.Delete("/courses/:id", adminOnly, handlers.DeleteCourse)

	admin.Post("/create-teacher", adminOnly, handlers.CreateTeacher)
	admin.Post("/create-student", adminOnly, handlers.CreateStudent)
	admin.Get("/teachers", adminOnly, handlers.ListTeachers)
	admin.Get("/students", adminOnly, handlers.ListStudents)
	admin.Post("/assign-teacher-grade", adminOnly, handlers.AssignTeacherGrade)
	admin.Delete("/teacher/:teacherId/grade/:gradeId", adminOnly, handlers.UnassignTeacherGrade)
	admin.Delete("/user/:id", adminOnly, handlers.AdminDeleteUser)

	admin.Get("/overview", adminOnly, handlers.GetOverview)
	admin.Get("/grades-exams", adminOnly, handlers.ListGradesWithExams)
	admin.Delete("/exam/:id", adminOnly, handlers.AdminDeleteExam)

	admin.Post("/bulk-upload-students", adminOnly, handlers.BulkUploadStudents)
	admin.Post("/bulk-upload-teachers", adminOnly, handlers.BulkUploadTeachers)
	admin.Get("/imports", adminOnly, handlers.ListImports)
}
