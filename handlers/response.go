package handlers

import (
	"errors"
	"log"

	"github.com/anjiri1684/smartscore/middleware"
	"github.com/anjiri1684/smartscore/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = validator.New()

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindAuthentication:
		return fiber.StatusUnauthorized
	case services.KindAuthorization, services.KindForbidden:
		return fiber.StatusForbidden
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError renders any service error as {"error": message}. Import
// failures also carry the per-row report.
func respondError(c *fiber.Ctx, err error) error {
	var failure *services.ImportFailure
	if errors.As(err, &failure) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":      failure.Error(),
			"details":    failure.Rows,
			"totalRows":  failure.TotalRows,
			"errorCount": failure.ErrorCount,
		})
	}

	status := statusFor(services.KindOf(err))
	message := err.Error()
	var appErr *services.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status == fiber.StatusInternalServerError {
		log.Printf("🔥 %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{"error": message})
}

func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return services.ValidationError("Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return services.ValidationError("%s", err.Error())
	}
	return nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, services.ValidationError("Invalid %s", name)
	}
	return id, nil
}

func currentUser(c *fiber.Ctx) (middleware.Principal, error) {
	principal, ok := middleware.CurrentUser(c)
	if !ok {
		return principal, services.AuthenticationError("Invalid or expired token")
	}
	return principal, nil
}
