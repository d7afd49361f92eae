package handlers

import (
	"time"

	"activity-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupNonceRoutes exposes the challenge store to the gateway's sign-in flow.
func SetupNonceRoutes(app *fiber.App, nonces *services.NonceStore) {
	internal := app.Group("/internal/nonces")

	internal.Post("/", func(c *fiber.Ctx) error {
		var body struct {
			Address    string `json:"address"`
			Message    string `json:"message"`
			TTLSeconds int    `json:"ttlSeconds"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badBody(c, err)
		}
		if body.TTLSeconds == 0 {
			body.TTLSeconds = 300
		}
		issued, err := nonces.Store(c.UserContext(), body.Address, body.Message, time.Duration(body.TTLSeconds)*time.Second)
		if err != nil {
			return respondError(c, "failed to issue nonce", err)
		}
		return c.Status(fiber.StatusCreated).JSON(issued)
	})

	internal.Post("/consume", func(c *fiber.Ctx) error {
		var body struct {
			Address string `json:"address"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badBody(c, err)
		}
		issued, err := nonces.ConsumeOnce(c.UserContext(), body.Address)
		if err != nil {
			return respondError(c, "failed to consume nonce", err)
		}
		return c.JSON(issued)
	})
}
