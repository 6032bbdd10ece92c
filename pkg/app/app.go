// Package app wires the transit graph, realtime feeds and refresh loop into the single
// context shared by the API and CLI
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/subway/pkg/config"
	"github.com/travigo/subway/pkg/realtime/arrivals"
	"github.com/travigo/subway/pkg/realtime/feedcache"
	"github.com/travigo/subway/pkg/redis_client"
	"github.com/travigo/subway/pkg/routing"
	"github.com/travigo/subway/pkg/search"
	"github.com/travigo/subway/pkg/timetable"
	"github.com/travigo/subway/pkg/transitgraph"
)

const Version = "v0.1"

var ErrGraphNotLoaded = errors.New("transit graph not loaded")

type App struct {
	Config    *config.Config
	Graph     *transitgraph.Holder
	Feeds     *feedcache.Cache
	Arrivals  *arrivals.Resolver
	Refresher *timetable.Refresher
}

// New builds the application from configuration, loading the timetable and connecting
// to redis when it is configured
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	options, err := graphOptions(cfg)
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if err := redis_client.Connect(); err == nil {
		redisClient = redis_client.Client
		log.Info().Msg("Sharing realtime feeds through redis")
	} else if !errors.Is(err, redis_client.ErrNotConfigured) {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	application := NewWithFeeds(cfg, feedcache.NewFromConfig(cfg, redisClient))

	graph, _, err := timetable.LoadGraph(ctx, cfg.GTFSSource, options)
	if err != nil {
		return nil, err
	}
	application.Graph.Store(graph)

	interval, enabled, err := timetable.ParseInterval(cfg.GTFSRefresh)
	if err != nil {
		return nil, err
	}
	if enabled {
		application.Refresher = timetable.NewRefresher(cfg.GTFSSource, options, application.Graph, interval)
	}

	return application, nil
}

// NewWithFeeds creates an application with no graph loaded yet
func NewWithFeeds(cfg *config.Config, feeds *feedcache.Cache) *App {
	return &App{
		Config:   cfg,
		Graph:    &transitgraph.Holder{},
		Feeds:    feeds,
		Arrivals: arrivals.NewResolver(feeds),
	}
}

// Start runs background work such as the timetable refresher until ctx is done
func (a *App) Start(ctx context.Context) {
	if a.Refresher != nil {
		go a.Refresher.Run(ctx)
	}
}

func (a *App) CurrentGraph() (*transitgraph.Graph, error) {
	graph := a.Graph.Load()
	if graph == nil {
		return nil, ErrGraphNotLoaded
	}

	return graph, nil
}

func (a *App) Route(startID string, endID string) (*routing.Path, error) {
	graph, err := a.CurrentGraph()
	if err != nil {
		return nil, err
	}

	return routing.Route(graph, startID, endID)
}

func (a *App) SearchStations(query string, limit int) []search.Station {
	return search.Search(a.Graph.Load(), query, limit)
}

func (a *App) AllStations() []search.Station {
	return search.All(a.Graph.Load())
}

func (a *App) ArrivalsFor(ctx context.Context, stationID string) ([]arrivals.Arrival, error) {
	return a.Arrivals.ArrivalsFor(ctx, stationID)
}

func graphOptions(cfg *config.Config) (transitgraph.Options, error) {
	policy, err := transitgraph.ParsePolicy(cfg.EdgeWeightPolicy)
	if err != nil {
		return transitgraph.Options{}, err
	}

	return transitgraph.Options{Policy: policy}, nil
}
