package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/subway/pkg/app"
)

func FeedsRouter(router fiber.Router, application *app.App) {
	router.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"partitions": application.Feeds.Status(),
		})
	})
}
