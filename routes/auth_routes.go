package routes

import (
	"github.com/anjiri1684/smartscore/handlers"
	"github.com/anjiri1684/smartscore/middleware"
	"github.com/gofiber/fiber/v2"
)

func AuthRoutes(api fiber.Router) {
	api.Post("/login", middleware.LoginRateLimiter(), handlers.LoginUser)
	api.Post("/change-password", middleware.Protected(), handlers.ChangePassword)
	api.Get("/me", middleware.Protected(), handlers.GetMe)
	api.Get("/ws", middleware.Protected(), handlers.WebsocketUpgrade, handlers.EventStream)
}
