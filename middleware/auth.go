package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	// AddressHeader carries the verified wallet or tg:<id> identity.
	AddressHeader = "X-User-Address"
	AddressLocal  = "address"
)

// UserContextMiddleware reads the identity set by the Gateway. Routes it
// guards require one.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		address := strings.TrimSpace(c.Get(AddressHeader))
		if address == "" {
			zap.L().Warn("[USER_CTX] address required but missing", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing " + AddressHeader + ": request must come through gateway with auth context",
			})
		}
		if len(address) > 128 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "address too long"})
		}

		c.Locals(AddressLocal, address)
		return c.Next()
	}
}

// Address returns the identity stored by UserContextMiddleware.
func Address(c *fiber.Ctx) string {
	address, _ := c.Locals(AddressLocal).(string)
	return address
}
