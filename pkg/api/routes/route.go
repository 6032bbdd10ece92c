package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/subway/pkg/app"
	"github.com/travigo/subway/pkg/routing"
)

func RouteRouter(router fiber.Router, application *app.App) {
	router.Get("/", func(c *fiber.Ctx) error {
		return getRoute(c, application)
	})
}

func getRoute(c *fiber.Ctx, application *app.App) error {
	start := c.Query("start")
	end := c.Query("end")

	if start == "" || end == "" {
		return sendError(c, fiber.StatusBadRequest, "Parameters start and end are required")
	}

	path, err := application.Route(start, end)
	if errors.Is(err, routing.ErrNotFound) {
		return sendError(c, fiber.StatusNotFound, "No path found")
	} else if errors.Is(err, app.ErrGraphNotLoaded) {
		return sendError(c, fiber.StatusServiceUnavailable, err.Error())
	} else if err != nil {
		return sendError(c, fiber.StatusInternalServerError, err.Error())
	}

	pathReduced, err := reduce(c, path)
	if err != nil {
		return sendError(c, fiber.StatusInternalServerError, "Sherrif could not reduce Path")
	}

	return c.JSON(pathReduced)
}
