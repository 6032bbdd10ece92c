package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/subway/pkg/app"
)

func APIVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": app.Version,
	})
}
