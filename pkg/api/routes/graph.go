package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/subway/pkg/app"
)

func GraphRouter(router fiber.Router, application *app.App) {
	router.Get("/stats", func(c *fiber.Ctx) error {
		graph, err := application.CurrentGraph()
		if err != nil {
			return sendError(c, fiber.StatusServiceUnavailable, err.Error())
		}

		return c.JSON(fiber.Map{
			"built_at": graph.BuiltAt(),
			"stats":    graph.Stats(),
		})
	})
}
