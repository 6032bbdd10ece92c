package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/subway/pkg/app"
	"github.com/travigo/subway/pkg/search"
)

const minimumQueryLength = 2

func StationsRouter(router fiber.Router, application *app.App) {
	router.Get("/", func(c *fiber.Ctx) error {
		return searchStations(c, application)
	})
	router.Get("/all", func(c *fiber.Ctx) error {
		return listStations(c, application)
	})
}

func searchStations(c *fiber.Ctx, application *app.App) error {
	query := c.Query("q")
	if len(query) < minimumQueryLength {
		return sendError(c, fiber.StatusBadRequest, "Parameter q must be at least 2 characters")
	}

	limit := c.QueryInt("limit", search.DefaultLimit)

	results, err := reduce(c, application.SearchStations(query, limit))
	if err != nil {
		return sendError(c, fiber.StatusInternalServerError, "Sherrif could not reduce Stations")
	}

	return c.JSON(fiber.Map{
		"results": results,
	})
}

func listStations(c *fiber.Ctx, application *app.App) error {
	stations, err := reduce(c, application.AllStations())
	if err != nil {
		return sendError(c, fiber.StatusInternalServerError, "Sherrif could not reduce Stations")
	}

	return c.JSON(fiber.Map{
		"stations": stations,
	})
}
