package routes

import (
	"github.com/anjiri1684/smartscore/handlers"
	"github.com/anjiri1684/smartscore/middleware"
	"github.com/gofiber/fiber/v2"
)

func ExamRoutes(api fiber.Router) {
	api.Get("/exams", middleware.Protected(), handlers.ListExams)

	student := api.Group("/student", middleware.Protected(), middleware.StudentRequired())
	student.Post("/verify-exam", handlers.VerifyExam)
	student.Get("/exam/:examId", handlers.GetStudentExam)
	student.Post("/submit-exam", handlers.SubmitExam)
	student.Get("/submission/:examId", handlers.GetMySubmission)
	student.Get("/submission/:examId/slip", handlers.DownloadResultSlip)
}
