package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/subway/pkg/api"
	"github.com/travigo/subway/pkg/dataimporter"
	"github.com/travigo/subway/pkg/journeygraph"
	"github.com/travigo/subway/pkg/planner"
	"github.com/travigo/subway/pkg/realtime"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("SUBWAY_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("SUBWAY_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:        "subway",
		Description: "Metro route planner and live arrivals - single binary running all the services",

		Commands: []*cli.Command{
			api.RegisterCLI(),
			planner.RegisterCLI(),
			realtime.RegisterCLI(),
			dataimporter.RegisterCLI(),
			journeygraph.RegisterCLI(),
		},
	}

	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
