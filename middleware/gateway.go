package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ServiceAuthMiddleware validates the Bearer token presented by the ladder
// frontend gateway. The status API carries operational detail and never goes
// out unauthenticated.
func ServiceAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("LADDER_SERVICE_TOKEN")
	if expectedToken == "" {
		log.Fatal("❌ LADDER_SERVICE_TOKEN is not set, service cannot authenticate callers")
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			log.Printf("🚫 [AUTH] Missing Authorization header for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication token missing",
			})
		}

		// Accept "Bearer <token>" or the raw token value
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if token != expectedToken {
			log.Printf("❌ [AUTH] Invalid token for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authentication token",
			})
		}

		return c.Next()
	}
}
