package routes

import (
	"github.com/anjiri1684/smartscore/handlers"
	"github.com/anjiri1684/smartscore/middleware"
	"github.com/anjiri1684/smartscore/models"
	"github.com/gofiber/fiber/v2"
)

func TeacherRoutes(api fiber.Router) {
	teacher := api.Group("/teacher", middleware.Protected(), middleware.TeacherRequired())

	teacher.Get("/my-grades", handlers.MyGrades)
	teacher.Post("/create-exam", handlers.CreateExam)
	teacher.Post("/add-question", handlers.AddQuestion)
	teacher.Post("/bulk-upload-questions", handlers.BulkUploadQuestions)

	exam := teacher.Group("/exam/:examId")
	exam.Get("", handlers.GetTeacherExam)
	exam.Delete("", handlers.TeacherDeleteExam)
	exam.Patch("/toggle-release", handlers.ToggleRelease)
	exam.Get("/submissions", handlers.ExamSubmissions)
	exam.Get("/results.csv", handlers.ExportExamResults)

	teacher.Delete("/question/:questionId", handlers.TeacherDeleteQuestion)

	submissions := api.Group("/submissions", middleware.Protected(), middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
	submissions.Patch("/:id", handlers.UpdateSubmissionScore)
	submissions.Delete("/:id", handlers.ResetSubmission)
}
