package api

import (
	"github.com/rs/zerolog/log"
	"github.com/travigo/subway/pkg/app"
	"github.com/travigo/subway/pkg/config"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "web-api",
		Usage: "Provides the route planner and live arrivals web API",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					application, err := app.New(c.Context, cfg)
					if err != nil {
						return err
					}
					application.Start(c.Context)

					log.Info().Str("listen", c.String("listen")).Msg("Starting web api")

					return SetupServer(c.String("listen"), application)
				},
			},
		},
	}
}
