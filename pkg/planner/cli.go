package planner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kr/pretty"
	"github.com/travigo/subway/pkg/config"
	"github.com/travigo/subway/pkg/realtime/arrivals"
	"github.com/travigo/subway/pkg/realtime/feedcache"
	"github.com/travigo/subway/pkg/routing"
	"github.com/travigo/subway/pkg/search"
	"github.com/travigo/subway/pkg/timetable"
	"github.com/travigo/subway/pkg/transitgraph"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	rawFlag := &cli.BoolFlag{
		Name:  "raw",
		Usage: "dump the full result structure",
	}

	return &cli.Command{
		Name:  "planner",
		Usage: "Query routes, stations and live arrivals from the command line",
		Subcommands: []*cli.Command{
			{
				Name:  "route",
				Usage: "find the fastest path between two stops",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "start", Required: true, Usage: "origin stop id"},
					&cli.StringFlag{Name: "end", Required: true, Usage: "destination stop id"},
					rawFlag,
				},
				Action: func(c *cli.Context) error {
					graph, err := loadGraph(c)
					if err != nil {
						return err
					}

					return PlanRoute(os.Stdout, graph, c.String("start"), c.String("end"), c.Bool("raw"))
				},
			},
			{
				Name:  "arrivals",
				Usage: "list upcoming arrivals at a station",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "station", Required: true, Usage: "station id, matched as a prefix of platform ids"},
					rawFlag,
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					resolver := arrivals.NewResolver(feedcache.NewFromConfig(cfg, nil))
					stationArrivals, err := resolver.ArrivalsFor(c.Context, c.String("station"))
					if err != nil {
						return err
					}

					if c.Bool("raw") {
						pretty.Println(stationArrivals)
						return nil
					}

					PrintArrivals(os.Stdout, stationArrivals)
					return nil
				},
			},
			{
				Name:  "search",
				Usage: "search stations by name",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Required: true},
					&cli.IntFlag{Name: "limit", Value: search.DefaultLimit},
				},
				Action: func(c *cli.Context) error {
					graph, err := loadGraph(c)
					if err != nil {
						return err
					}

					for _, station := range search.Search(graph, c.String("query"), c.Int("limit")) {
						fmt.Printf("%-8s %s\n", station.ID, station.Name)
					}
					return nil
				},
			},
		},
	}
}

func loadGraph(c *cli.Context) (*transitgraph.Graph, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	policy, err := transitgraph.ParsePolicy(cfg.EdgeWeightPolicy)
	if err != nil {
		return nil, err
	}

	graph, _, err := timetable.LoadGraph(c.Context, cfg.GTFSSource, transitgraph.Options{Policy: policy})
	return graph, err
}

// PlanRoute prints the fastest path between two stops. No path is an answer rather than
// a failure so it is printed and nil is returned.
func PlanRoute(w io.Writer, graph *transitgraph.Graph, startID string, endID string, raw bool) error {
	path, err := routing.Route(graph, startID, endID)
	if errors.Is(err, routing.ErrNotFound) {
		fmt.Fprintf(w, "No path found from %s to %s\n", startID, endID)
		return nil
	} else if err != nil {
		return err
	}

	if raw {
		pretty.Fprintf(w, "%# v\n", path)
		return nil
	}

	PrintPath(w, path)
	return nil
}

// PrintPath writes one line per hop followed by the total journey time
func PrintPath(w io.Writer, path *routing.Path) {
	for _, hop := range path.Hops {
		via := ""
		if len(hop.Routes) > 0 {
			via = " via " + strings.Join(hop.Routes, ",")
		}

		fmt.Fprintf(w, "%s (%s) -> %s (%s) %ds [%s%s]\n", hop.FromName, hop.From, hop.ToName, hop.To, hop.Seconds, hop.Kind, via)
	}

	fmt.Fprintf(w, "Total: %s\n", FormatDuration(path.TotalSeconds))
}

func PrintArrivals(w io.Writer, stationArrivals []arrivals.Arrival) {
	if len(stationArrivals) == 0 {
		fmt.Fprintln(w, "No upcoming arrivals")
		return
	}

	for _, arrival := range stationArrivals {
		fmt.Fprintf(w, "%-4s %-6s %-7s %d min\n", arrival.Route, arrival.StopID, arrival.Direction, arrival.MinutesAway)
	}
}

func FormatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
}
