package handlers

import (
	"strings"

	"github.com/anjiri1684/smartscore/database"
	"github.com/anjiri1684/smartscore/middleware"
	"github.com/anjiri1684/smartscore/models"
	"github.com/anjiri1684/smartscore/services"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

func LoginUser(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	var user models.User
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}

	t, err := middleware.GenerateToken(&user)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create token"})
	}

	return c.JSON(fiber.Map{
		"token":      t,
		"role":       user.Role,
		"firstLogin": user.FirstLogin,
	})
}

// ChangePassword sets a new password and clears firstLogin. When the
// current password is supplied it must match.
func ChangePassword(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", principal.UserID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	if req.CurrentPassword != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Current password is incorrect"})
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash new password"})
	}

	err = database.DB.Model(&user).Updates(map[string]interface{}{
		"password":    string(hashedPassword),
		"first_login": false,
	}).Error
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Password updated successfully"})
}

func GetMe(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var user models.User
	err = database.DB.
		Preload("Grade").
		Preload("TeachingGrades").
		First(&user, "id = ?", principal.UserID).Error
	if err != nil {
		return respondError(c, services.NotFoundError("User not found"))
	}
	return c.JSON(user)
}
