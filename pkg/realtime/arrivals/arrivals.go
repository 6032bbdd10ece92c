// Package arrivals resolves upcoming train arrivals at a station from the cached
// GTFS-realtime feeds
package arrivals

import (
	"context"
	"errors"
	"strings"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/exp/slices"
)

var (
	ErrNoPartitions = errors.New("no feed partitions configured")
	ErrEmptyStation = errors.New("station id is empty")
)

const (
	DirectionNorth   = "N"
	DirectionSouth   = "S"
	DirectionUnknown = "unknown"
)

type Arrival struct {
	Route        string `json:"route" groups:"basic,detailed"`
	StopID       string `json:"stopId" groups:"basic,detailed"`
	Direction    string `json:"direction" groups:"basic,detailed"`
	EpochSeconds int64  `json:"epochSeconds" groups:"basic,detailed"`
	MinutesAway  int64  `json:"minutesAway" groups:"basic,detailed"`
}

// Feeds is satisfied by feedcache.Cache
type Feeds interface {
	Partitions() []string
	GetFeed(ctx context.Context, partitionID string) (*gtfsrt.FeedMessage, error)
}

type Resolver struct {
	feeds Feeds
	now   func() time.Time
}

func NewResolver(feeds Feeds) *Resolver {
	return &Resolver{
		feeds: feeds,
		now:   time.Now,
	}
}

func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// ArrivalsFor returns future arrivals at every platform whose id starts with stationID,
// soonest first. Partitions that cannot be fetched are left out of the result.
func (r *Resolver) ArrivalsFor(ctx context.Context, stationID string) ([]Arrival, error) {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return nil, ErrEmptyStation
	}

	partitions := r.feeds.Partitions()
	if len(partitions) == 0 {
		return nil, ErrNoPartitions
	}

	now := r.now().Unix()

	p := pool.NewWithResults[[]Arrival]().WithMaxGoroutines(len(partitions))
	for _, partitionID := range partitions {
		partitionID := partitionID
		p.Go(func() []Arrival {
			feed, err := r.feeds.GetFeed(ctx, partitionID)
			if err != nil {
				log.Warn().Err(err).Str("partition", partitionID).Msg("Skipping unavailable partition")
				return nil
			}

			return Extract(feed, stationID, now)
		})
	}

	arrivals := []Arrival{}
	for _, partitionArrivals := range p.Wait() {
		arrivals = append(arrivals, partitionArrivals...)
	}
	Sort(arrivals)

	return arrivals, nil
}

// Extract pulls the arrivals for a station out of a single feed, dropping anything at or
// before now. Predictions without an arrival time use the departure time.
func Extract(feed *gtfsrt.FeedMessage, stationID string, now int64) []Arrival {
	var arrivals []Arrival

	for _, entity := range feed.GetEntity() {
		tripUpdate := entity.GetTripUpdate()
		if tripUpdate == nil {
			continue
		}

		routeID := tripUpdate.GetTrip().GetRouteId()

		for _, update := range tripUpdate.GetStopTimeUpdate() {
			stopID := update.GetStopId()
			if !strings.HasPrefix(stopID, stationID) {
				continue
			}

			epoch := update.GetArrival().GetTime()
			if epoch == 0 {
				epoch = update.GetDeparture().GetTime()
			}
			if epoch <= now {
				continue
			}

			arrivals = append(arrivals, Arrival{
				Route:        routeID,
				StopID:       stopID,
				Direction:    Direction(stopID),
				EpochSeconds: epoch,
				MinutesAway:  (epoch - now) / 60,
			})
		}
	}

	return arrivals
}

// Direction is the N or S platform suffix of a stop id
func Direction(stopID string) string {
	switch {
	case strings.HasSuffix(stopID, DirectionNorth):
		return DirectionNorth
	case strings.HasSuffix(stopID, DirectionSouth):
		return DirectionSouth
	default:
		return DirectionUnknown
	}
}

// Sort orders by epoch, then route, then stop id
func Sort(arrivals []Arrival) {
	slices.SortStableFunc(arrivals, func(a, b Arrival) int {
		if a.EpochSeconds != b.EpochSeconds {
			if a.EpochSeconds < b.EpochSeconds {
				return -1
			}
			return 1
		}
		if c := strings.Compare(a.Route, b.Route); c != 0 {
			return c
		}
		return strings.Compare(a.StopID, b.StopID)
	})
}
