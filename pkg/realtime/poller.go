// Package realtime keeps the GTFS-realtime feed partitions warm so API replicas sharing
// the redis tier rarely fetch upstream themselves
package realtime

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/subway/pkg/config"
	"github.com/travigo/subway/pkg/realtime/feedcache"
)

type PollResult struct {
	Partition string
	Entities  int
	Err       error
}

type Poller struct {
	Feeds    *feedcache.Cache
	Interval time.Duration
}

// Poll refreshes every partition concurrently and reports how each one went
func (p *Poller) Poll(ctx context.Context) []PollResult {
	partitions := p.Feeds.Partitions()
	if len(partitions) == 0 {
		return nil
	}

	resultPool := pool.NewWithResults[PollResult]().WithMaxGoroutines(len(partitions))
	for _, partitionID := range partitions {
		partitionID := partitionID
		resultPool.Go(func() PollResult {
			feed, err := p.Feeds.GetFeed(ctx, partitionID)
			if err != nil {
				return PollResult{Partition: partitionID, Err: err}
			}

			return PollResult{Partition: partitionID, Entities: len(feed.GetEntity())}
		})
	}

	return resultPool.Wait()
}

// Run polls immediately and then every interval until ctx is done
func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = config.DefaultFeedTTL
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		failed := 0
		for _, result := range p.Poll(ctx) {
			if result.Err != nil {
				failed++
				log.Warn().Err(result.Err).Str("partition", result.Partition).Msg("Partition poll failed")
				continue
			}
			log.Debug().Str("partition", result.Partition).Int("entities", result.Entities).Msg("Partition polled")
		}
		log.Info().Int("partitions", len(p.Feeds.Partitions())).Int("failed", failed).Msg("Polled realtime feeds")

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
