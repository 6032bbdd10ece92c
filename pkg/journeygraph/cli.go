package journeygraph

import (
	"github.com/travigo/subway/pkg/config"
	"github.com/travigo/subway/pkg/timetable"
	"github.com/travigo/subway/pkg/transitgraph"
	"github.com/travigo/subway/pkg/util"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "journeygraph",
		Usage: "Export the transit graph to neo4j",
		Subcommands: []*cli.Command{
			{
				Name:  "export",
				Usage: "build the graph from the configured timetable and write it to neo4j",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "database",
						Value: "neo4j",
						Usage: "neo4j database name",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Value: defaultBatchSize,
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					policy, err := transitgraph.ParsePolicy(cfg.EdgeWeightPolicy)
					if err != nil {
						return err
					}

					graph, _, err := timetable.LoadGraph(c.Context, cfg.GTFSSource, transitgraph.Options{Policy: policy})
					if err != nil {
						return err
					}

					driver, err := Connect(c.Context, util.GetEnvironmentVariables())
					if err != nil {
						return err
					}
					defer driver.Close(c.Context)

					exporter := &Exporter{
						Driver:    driver,
						Database:  c.String("database"),
						BatchSize: c.Int("batch-size"),
					}

					return exporter.Export(c.Context, graph)
				},
			},
		},
	}
}
