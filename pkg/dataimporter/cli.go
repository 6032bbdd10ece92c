package dataimporter

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/travigo/subway/pkg/config"
	"github.com/travigo/subway/pkg/timetable"
	"github.com/travigo/subway/pkg/transitgraph"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "data-importer",
		Usage: "Download and check GTFS timetables",
		Subcommands: []*cli.Command{
			{
				Name:  "download",
				Usage: "Download the GTFS timetable to a local file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "URL of the GTFS zip, defaults to SUBWAY_GTFS_SOURCE",
					},
					&cli.StringFlag{
						Name:     "output",
						Usage:    "file to write the timetable to",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					source, err := sourceFromFlags(c)
					if err != nil {
						return err
					}

					output, err := os.Create(c.String("output"))
					if err != nil {
						return err
					}
					defer output.Close()

					return timetable.Download(c.Context, source, output)
				},
			},
			{
				Name:  "validate",
				Usage: "Load a GTFS timetable and report what the graph builder made of it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "zip, directory or URL of the timetable, defaults to SUBWAY_GTFS_SOURCE",
					},
					&cli.StringFlag{
						Name:  "policy",
						Usage: "edge weight policy: first, fastest or mean",
					},
				},
				Action: func(c *cli.Context) error {
					source, err := sourceFromFlags(c)
					if err != nil {
						return err
					}

					policy, err := transitgraph.ParsePolicy(c.String("policy"))
					if err != nil {
						return err
					}

					_, stats, err := timetable.LoadGraph(c.Context, source, transitgraph.Options{Policy: policy})
					if err != nil {
						return err
					}

					log.Info().
						Int("segments", stats.Segments).
						Int("malformed_rows", stats.SkippedMalformedRows).
						Int("duplicate_stops", stats.SkippedDuplicateStops).
						Int("malformed_times", stats.SkippedMalformedTimes).
						Int("unknown_trips", stats.SkippedUnknownTrips).
						Int("unknown_routes", stats.SkippedUnknownRoutes).
						Int("unknown_stops", stats.SkippedUnknownStops).
						Int("skipped_transfers", stats.SkippedTransfers).
						Int("dangling_parents", stats.DanglingParents).
						Msg("Timetable validated")

					return nil
				},
			},
		},
	}
}

func sourceFromFlags(c *cli.Context) (string, error) {
	if source := c.String("source"); source != "" {
		return source, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}

	return cfg.GTFSSource, nil
}
