// middleware/auth.go
package middleware

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/selveresta/projectQuestBot/logger"
)

// OpsAuthMiddleware validates the Bearer token on the campaign-ops API.
// The status surface exposes participant standings, so it is never open.
func OpsAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("OPS_API_TOKEN")
	if expectedToken == "" {
		logger.Fatal("OPS_API_TOKEN is not set, the ops API cannot authenticate callers")
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication token missing",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != expectedToken {
			logger.Warn("rejected ops API request", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authentication token",
			})
		}

		return c.Next()
	}
}
