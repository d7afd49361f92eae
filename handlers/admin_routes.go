package handlers

import (
	"activity-reward-system/middleware"
	"activity-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAdminRoutes(app *fiber.App, adminService *services.AdminService, adminSecret string) {
	admin := app.Group("/admin", middleware.AdminSecretMiddleware(adminSecret))

	admin.Post("/reset", func(c *fiber.Ctx) error {
		summary, err := adminService.Reset(c.UserContext())
		if err != nil {
			return respondError(c, "reset failed", err)
		}
		return c.JSON(summary)
	})
}
