package handlers

import (
	"activity-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRulesRoutes(app *fiber.App, rules services.RulesTable) {
	app.Get("/rules", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"rules": rules})
	})
}
