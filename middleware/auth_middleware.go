package middleware

import (
	"strings"
	"time"

	config "github.com/anjiri1684/smartscore/configs"
	"github.com/anjiri1684/smartscore/models"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Principal is the authenticated caller as carried by the session token.
type Principal struct {
	UserID     uuid.UUID
	Role       string
	FirstLogin bool
}

// Protected verifies the bearer token. The websocket endpoint cannot set
// headers from a browser, so a token query parameter is accepted too.
func Protected() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(config.JWTSecret()),
		TokenLookup:  "header:Authorization,query:token",
		AuthScheme:   "Bearer",
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing or malformed token"})
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
}

// GenerateToken signs a session token for the user.
func GenerateToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":     user.ID.String(),
		"role":        user.Role,
		"first_login": user.FirstLogin,
		"exp":         time.Now().Add(config.JWTTTL()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWTSecret()))
}

// CurrentUser reads the principal that Protected stored on the context.
func CurrentUser(c *fiber.Ctx) (Principal, bool) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return Principal{}, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, false
	}
	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return Principal{}, false
	}
	role, _ := claims["role"].(string)
	firstLogin, _ := claims["first_login"].(bool)
	return Principal{UserID: userID, Role: role, FirstLogin: firstLogin}, true
}

// RequireRoles lets the request through only when the caller's role is in
// the allowed set.
func RequireRoles(roles ...string) fiber.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	message := "Forbidden: " + strings.ToLower(strings.Join(roles, " or ")) + " access required"

	return func(c *fiber.Ctx) error {
		principal, ok := CurrentUser(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		}
		if !allowed[principal.Role] {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": message})
		}
		return c.Next()
	}
}

func AdminRequired() fiber.Handler   { return RequireRoles(models.RoleAdmin) }
func TeacherRequired() fiber.Handler { return RequireRoles(models.RoleTeacher) }
func StudentRequired() fiber.Handler { return RequireRoles(models.RoleStudent) }
