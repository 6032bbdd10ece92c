package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/subway/pkg/api/routes"
	"github.com/travigo/subway/pkg/app"
)

func NewServer(application *app.App) *fiber.App {
	webApp := fiber.New(fiber.Config{
		AppName: "subway",
	})
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.StationsRouter(group.Group("/stations"), application)
	routes.RouteRouter(group.Group("/route"), application)
	routes.ArrivalsRouter(group.Group("/arrivals"), application)
	routes.GraphRouter(group.Group("/graph"), application)
	routes.FeedsRouter(group.Group("/feeds"), application)

	return webApp
}

func SetupServer(listen string, application *app.App) error {
	return NewServer(application).Listen(listen)
}
