package handlers

import (
	"github.com/gofiber/fiber/v2"

	"wesnoth-ladder-system/middleware"
	"wesnoth-ladder-system/services"
)

// RegisterStatusRoutes mounts the read-only pipeline inspection API under /s,
// behind the service token, plus an open health probe.
func RegisterStatusRoutes(app *fiber.App, status *services.StatusService) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	group := app.Group("/s", middleware.ServiceAuthMiddleware())

	group.Get("/replays", status.ListReplays)
	group.Get("/replays/:id", status.GetReplay)
	group.Get("/matches/:id", status.GetMatch)
	group.Get("/players/:nickname", status.GetPlayer)
	group.Get("/players/:nickname/statistics", status.GetPlayerStatistics)
	group.Get("/pipeline/status", status.GetPipelineStatus)
}
