package handlers

import (
	"errors"

	"activity-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, leaderboardService *services.LeaderboardService, userService *services.UserService) {
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		q, err := services.ParseLeaderboardQuery(c.Query("window"), c.Query("metric"), c.Query("game"), c.QueryInt("limit", 0))
		if err != nil {
			return respondError(c, "invalid leaderboard query", err)
		}
		result, err := leaderboardService.Query(c.UserContext(), q)
		if err != nil {
			return respondError(c, "failed to load leaderboard", err)
		}
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.JSON(result)
	})

	app.Get("/users/search", func(c *fiber.Ctx) error {
		users, err := userService.SearchUsers(c.UserContext(), c.Query("q"), c.QueryInt("limit", 50))
		if err != nil {
			return respondError(c, "search failed", err)
		}
		type UserSummary struct {
			Address     string  `json:"address"`
			DisplayName *string `json:"displayName"`
			RewardTotal int64   `json:"rewardTotal"`
		}
		res := make([]UserSummary, len(users))
		for i, u := range users {
			res[i] = UserSummary{Address: u.Address, DisplayName: u.DisplayName, RewardTotal: u.RewardTotal}
		}
		return c.JSON(res)
	})

	app.Get("/users/:address", func(c *fiber.Ctx) error {
		user, err := userService.GetUser(c.UserContext(), c.Params("address"))
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
			}
			return respondError(c, "failed to load user", err)
		}
		return c.JSON(fiber.Map{
			"address":        user.Address,
			"displayName":    user.DisplayName,
			"lifetimeTotals": user.Totals(),
		})
	})
}
