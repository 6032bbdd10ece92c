// Package feedcache fetches GTFS-realtime feeds per partition and keeps each one for a
// short TTL. A partition is refreshed by at most one fetch at a time and stale data is
// never returned.
package feedcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/subway/pkg/config"
	"golang.org/x/sync/singleflight"
	"google.golang.org/protobuf/proto"
)

var (
	ErrUnknownPartition = errors.New("unknown feed partition")
	ErrUnavailable      = errors.New("feed unavailable")
)

type entry struct {
	fetchedAt time.Time
	feed      *gtfsrt.FeedMessage
}

type PartitionStatus struct {
	ID        string    `json:"id"`
	FetchedAt time.Time `json:"fetched_at"`
	Fresh     bool      `json:"fresh"`
}

type Cache struct {
	partitions  []string
	sources     map[string]Source
	ttl         time.Duration
	timeout     time.Duration
	now         func() time.Time
	redisClient *redis.Client
	shared      *sharedTier

	group   singleflight.Group
	mutex   sync.RWMutex
	entries map[string]*entry
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Cache) { c.timeout = timeout }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithRedis adds a shared tier checked before the upstream source. A nil client is ignored.
func WithRedis(client *redis.Client) Option {
	return func(c *Cache) { c.redisClient = client }
}

// New creates a cache over the given partitions, which are reported in the order given
func New(partitions []string, sources map[string]Source, options ...Option) *Cache {
	c := &Cache{
		partitions: partitions,
		sources:    sources,
		ttl:        config.DefaultFeedTTL,
		timeout:    config.DefaultFeedTimeout,
		now:        time.Now,
		entries:    map[string]*entry{},
	}

	for _, option := range options {
		option(c)
	}

	if c.redisClient != nil {
		c.shared = newSharedTier(c.redisClient, c.ttl)
	}

	return c
}

// NewFromConfig creates HTTP sources for every configured partition
func NewFromConfig(cfg *config.Config, redisClient *redis.Client) *Cache {
	sources := map[string]Source{}
	for _, partition := range cfg.FeedPartitions {
		sources[partition.ID] = NewHTTPSource(partition.URL, cfg.FeedAPIKey)
	}

	return New(
		cfg.PartitionIDs(),
		sources,
		WithTTL(cfg.FeedTTL),
		WithTimeout(cfg.FeedTimeout),
		WithRedis(redisClient),
	)
}

func (c *Cache) Partitions() []string {
	return c.partitions
}

// GetFeed returns the partition's feed if it is fresh, otherwise refreshes it. Waiting on
// an in-flight refresh stops when ctx is done but the refresh itself carries on.
func (c *Cache) GetFeed(ctx context.Context, partitionID string) (*gtfsrt.FeedMessage, error) {
	source, exists := c.sources[partitionID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPartition, partitionID)
	}

	if feed := c.fresh(partitionID); feed != nil {
		return feed, nil
	}

	resultChannel := c.group.DoChan(partitionID, func() (interface{}, error) {
		return c.refresh(partitionID, source)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, partitionID, ctx.Err())
	case result := <-resultChannel:
		if result.Err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, partitionID, result.Err)
		}
		return result.Val.(*gtfsrt.FeedMessage), nil
	}
}

// Status reports when each partition was last fetched
func (c *Cache) Status() []PartitionStatus {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := c.now()
	statuses := make([]PartitionStatus, 0, len(c.partitions))
	for _, partitionID := range c.partitions {
		status := PartitionStatus{ID: partitionID}
		if cached, exists := c.entries[partitionID]; exists {
			status.FetchedAt = cached.fetchedAt
			status.Fresh = now.Sub(cached.fetchedAt) < c.ttl
		}
		statuses = append(statuses, status)
	}

	return statuses
}

func (c *Cache) fresh(partitionID string) *gtfsrt.FeedMessage {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	cached, exists := c.entries[partitionID]
	if !exists || c.now().Sub(cached.fetchedAt) >= c.ttl {
		return nil
	}

	return cached.feed
}

func (c *Cache) store(partitionID string, fetchedAt time.Time, feed *gtfsrt.FeedMessage) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[partitionID] = &entry{fetchedAt: fetchedAt, feed: feed}
}

func (c *Cache) refresh(partitionID string, source Source) (*gtfsrt.FeedMessage, error) {
	// A refresh may have completed between the freshness check and joining the group
	if feed := c.fresh(partitionID); feed != nil {
		return feed, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if c.shared != nil {
		if fetchedAt, body, found := c.shared.get(ctx, partitionID); found && c.now().Sub(fetchedAt) < c.ttl {
			feed, err := decodeFeed(body)
			if err == nil {
				log.Debug().Str("partition", partitionID).Msg("Using shared feed")
				c.store(partitionID, fetchedAt, feed)
				return feed, nil
			}
			log.Warn().Err(err).Str("partition", partitionID).Msg("Discarding undecodable shared feed")
		}
	}

	startTime := time.Now()
	body, err := source.Fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Str("partition", partitionID).Msg("Failed to fetch feed")
		return nil, err
	}

	feed, err := decodeFeed(body)
	if err != nil {
		log.Warn().Err(err).Str("partition", partitionID).Msg("Failed to decode feed")
		return nil, err
	}

	fetchedAt := c.now()
	c.store(partitionID, fetchedAt, feed)

	log.Debug().
		Str("partition", partitionID).
		Int("entities", len(feed.GetEntity())).
		Dur("duration", time.Since(startTime)).
		Msg("Refreshed feed")

	if c.shared != nil {
		if err := c.shared.set(ctx, partitionID, fetchedAt, body); err != nil {
			log.Warn().Err(err).Str("partition", partitionID).Msg("Failed to share feed")
		}
	}

	return feed, nil
}

func decodeFeed(body []byte) (*gtfsrt.FeedMessage, error) {
	feed := &gtfsrt.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	return feed, nil
}
