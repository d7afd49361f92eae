package handlers

import (
	"strings"

	"activity-reward-system/middleware"
	"activity-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupActivityRoutes(app *fiber.App, activityService *services.ActivityService, userService *services.UserService) {
	// Applied per route: public routes share the root prefix.
	userCtx := middleware.UserContextMiddleware()

	app.Post("/activity/submit", userCtx, func(c *fiber.Ctx) error {
		var claim services.SessionClaim
		if err := c.BodyParser(&claim); err != nil {
			return badBody(c, err)
		}
		if key := strings.TrimSpace(c.Get("Idempotency-Key")); key != "" && claim.ClientSessionID == "" {
			claim.ClientSessionID = key
		}

		result, err := activityService.Submit(c.UserContext(), middleware.Address(c), claim)
		if err != nil {
			return respondError(c, "failed to submit session", err)
		}
		return c.JSON(result)
	})

	// older clients
	app.Post("/activity/add", userCtx, func(c *fiber.Ctx) error {
		var payload services.LegacyPayload
		if err := c.BodyParser(&payload); err != nil {
			return badBody(c, err)
		}
		result, err := activityService.AddLegacy(c.UserContext(), middleware.Address(c), payload)
		if err != nil {
			return respondError(c, "failed to add activity", err)
		}
		return c.JSON(result)
	})

	app.Get("/me", userCtx, func(c *fiber.Ctx) error {
		profile, err := activityService.Profile(c.UserContext(), middleware.Address(c))
		if err != nil {
			return respondError(c, "failed to load profile", err)
		}
		return c.JSON(profile)
	})

	app.Get("/me/sessions", userCtx, func(c *fiber.Ctx) error {
		receipts, err := activityService.RecentSessions(c.UserContext(), middleware.Address(c), c.QueryInt("limit", 20))
		if err != nil {
			return respondError(c, "failed to load sessions", err)
		}
		return c.JSON(fiber.Map{"sessions": receipts})
	})

	app.Get("/me/sessions/stream", userCtx, activityService.StreamSessionsSSE)

	app.Put("/me/name", userCtx, func(c *fiber.Ctx) error {
		var body struct {
			DisplayName string `json:"displayName"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badBody(c, err)
		}
		user, err := userService.SetDisplayName(c.UserContext(), middleware.Address(c), body.DisplayName)
		if err != nil {
			return respondError(c, "failed to set display name", err)
		}
		return c.JSON(fiber.Map{"address": user.Address, "displayName": user.DisplayName})
	})
}
