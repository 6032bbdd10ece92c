package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/subway/pkg/app"
	"github.com/travigo/subway/pkg/realtime/arrivals"
)

func ArrivalsRouter(router fiber.Router, application *app.App) {
	router.Get("/:station", func(c *fiber.Ctx) error {
		return getArrivals(c, application)
	})
}

func getArrivals(c *fiber.Ctx, application *app.App) error {
	stationID := c.Params("station")

	stationArrivals, err := application.ArrivalsFor(c.UserContext(), stationID)
	if errors.Is(err, arrivals.ErrNoPartitions) {
		return sendError(c, fiber.StatusServiceUnavailable, err.Error())
	} else if errors.Is(err, arrivals.ErrEmptyStation) {
		return sendError(c, fiber.StatusBadRequest, err.Error())
	} else if err != nil {
		return sendError(c, fiber.StatusInternalServerError, err.Error())
	}

	arrivalsReduced, err := reduce(c, stationArrivals)
	if err != nil {
		return sendError(c, fiber.StatusInternalServerError, "Sherrif could not reduce Arrivals")
	}

	return c.JSON(fiber.Map{
		"station_id": stationID,
		"arrivals":   arrivalsReduced,
	})
}
