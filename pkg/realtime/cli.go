package realtime

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/travigo/subway/pkg/config"
	"github.com/travigo/subway/pkg/realtime/feedcache"
	"github.com/travigo/subway/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "realtime",
		Usage: "Realtime feed sources",
		Subcommands: []*cli.Command{
			{
				Name:  "poll",
				Usage: "keep every feed partition fresh in the shared redis tier",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "health-listen",
						Value: ":3333",
						Usage: "listen target for the health server, empty to disable",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					var redisClient *redis.Client
					if err := redis_client.Connect(); err == nil {
						redisClient = redis_client.Client
					} else if !errors.Is(err, redis_client.ErrNotConfigured) {
						return err
					}

					feeds := feedcache.NewFromConfig(cfg, redisClient)

					if listen := c.String("health-listen"); listen != "" {
						go StartHealthServer(listen, feeds, redisClient)
					}

					poller := &Poller{Feeds: feeds, Interval: cfg.FeedTTL}
					poller.Run(c.Context)

					return nil
				},
			},
		},
	}
}
