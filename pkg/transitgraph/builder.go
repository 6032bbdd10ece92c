package transitgraph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/subway/pkg/gtfs"
	"golang.org/x/exp/slices"
)

const (
	DefaultTransferSeconds = 180
	PlatformAccessSeconds  = 30
)

var ErrUnknownPolicy = errors.New("unknown edge weight policy")

// Policy picks which duration represents a (from, to, route) group of trip segments
type Policy string

const (
	PolicyFirst   Policy = "first"
	PolicyFastest Policy = "fastest"
	PolicyMean    Policy = "mean"
)

func ParsePolicy(policy string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(policy))) {
	case "", PolicyFirst:
		return PolicyFirst, nil
	case PolicyFastest:
		return PolicyFastest, nil
	case PolicyMean:
		return PolicyMean, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

type Options struct {
	Policy Policy
}

type BuildStats struct {
	Stops         int `json:"stops"`
	Edges         int `json:"edges"`
	TransitEdges  int `json:"transit_edges"`
	TransferEdges int `json:"transfer_edges"`
	PlatformEdges int `json:"platform_edges"`
	Segments      int `json:"segments"`

	SkippedMalformedRows  int `json:"skipped_malformed_rows"`
	SkippedDuplicateStops int `json:"skipped_duplicate_stops"`
	SkippedMalformedTimes int `json:"skipped_malformed_times"`
	SkippedUnknownTrips   int `json:"skipped_unknown_trips"`
	SkippedUnknownRoutes  int `json:"skipped_unknown_routes"`
	SkippedUnknownStops   int `json:"skipped_unknown_stops"`
	SkippedTransfers      int `json:"skipped_transfers"`
	DanglingParents       int `json:"dangling_parents"`

	Policy   Policy        `json:"policy"`
	Duration time.Duration `json:"duration"`
}

type segmentKey struct {
	from  string
	to    string
	route string
}

type segmentGroup struct {
	first int
	min   int
	total int
	count int
}

func (s *segmentGroup) add(duration int) {
	if s.count == 0 {
		s.first = duration
		s.min = duration
	} else if duration < s.min {
		s.min = duration
	}

	s.total += duration
	s.count++
}

func (s *segmentGroup) weight(policy Policy) int {
	switch policy {
	case PolicyFastest:
		return s.min
	case PolicyMean:
		return s.total / s.count
	default:
		return s.first
	}
}

// Build constructs a new graph from the schedule. Bad rows are skipped and counted in
// the returned stats, only an unusable schedule or option is an error.
func Build(schedule *gtfs.Schedule, options Options) (*Graph, BuildStats, error) {
	startTime := time.Now()

	if schedule == nil {
		return nil, BuildStats{}, errors.New("nil schedule")
	}

	policy, err := ParsePolicy(string(options.Policy))
	if err != nil {
		return nil, BuildStats{}, err
	}

	graph := NewGraph()
	stats := BuildStats{Policy: policy, SkippedMalformedRows: schedule.SkippedRows}

	addStops(graph, schedule.Stops, &stats)
	addTransitEdges(graph, schedule, policy, &stats)
	addTransferEdges(graph, schedule.Transfers, &stats)
	addPlatformEdges(graph, &stats)

	graph.finalise()

	for _, edge := range graph.edges {
		switch edge.Kind {
		case KindTransit:
			stats.TransitEdges++
		case KindTransfer:
			stats.TransferEdges++
		default:
			stats.PlatformEdges++
		}
	}
	stats.Stops = graph.StopCount()
	stats.Edges = graph.EdgeCount()
	stats.Duration = time.Since(startTime)

	graph.stats = stats
	graph.builtAt = time.Now()

	log.Info().
		Int("stops", stats.Stops).
		Int("edges", stats.Edges).
		Int("transit", stats.TransitEdges).
		Int("transfer", stats.TransferEdges).
		Int("platform", stats.PlatformEdges).
		Str("policy", string(policy)).
		Dur("duration", stats.Duration).
		Msg("Built transit graph")

	return graph, stats, nil
}

func addStops(graph *Graph, stops []gtfs.Stop, stats *BuildStats) {
	for _, stop := range stops {
		added := graph.AddStop(Stop{
			ID:           stop.ID,
			Name:         stop.Name,
			Latitude:     stop.Latitude,
			Longitude:    stop.Longitude,
			LocationType: strings.TrimSpace(stop.Type),
			ParentID:     strings.TrimSpace(stop.Parent),
		})

		if !added {
			stats.SkippedDuplicateStops++
			log.Warn().Str("stop", stop.ID).Msg("Duplicate stop id, keeping first")
		}
	}
}

func addTransitEdges(graph *Graph, schedule *gtfs.Schedule, policy Policy, stats *BuildStats) {
	routes := map[string]bool{}
	for _, route := range schedule.Routes {
		routes[route.ID] = true
	}

	tripRoutes := map[string]string{}
	for _, trip := range schedule.Trips {
		tripRoutes[trip.ID] = trip.RouteID
	}

	tripStopTimes := map[string][]*gtfs.StopTime{}
	for i := range schedule.StopTimes {
		stopTime := &schedule.StopTimes[i]
		tripStopTimes[stopTime.TripID] = append(tripStopTimes[stopTime.TripID], stopTime)
	}

	tripIDs := make([]string, 0, len(tripStopTimes))
	for tripID := range tripStopTimes {
		tripIDs = append(tripIDs, tripID)
	}
	slices.Sort(tripIDs)

	groups := map[segmentKey]*segmentGroup{}
	var groupOrder []segmentKey

	for _, tripID := range tripIDs {
		stopTimes := tripStopTimes[tripID]
		slices.SortStableFunc(stopTimes, func(a, b *gtfs.StopTime) int {
			return a.StopSequence - b.StopSequence
		})

		routeID, tripExists := tripRoutes[tripID]
		if !tripExists {
			stats.SkippedUnknownTrips += len(stopTimes) - 1
			log.Debug().Str("trip", tripID).Msg("Stop times reference unknown trip")
			continue
		}
		if !routes[routeID] {
			stats.SkippedUnknownRoutes += len(stopTimes) - 1
			log.Debug().Str("trip", tripID).Str("route", routeID).Msg("Trip references unknown route")
			continue
		}

		for i := 0; i+1 < len(stopTimes); i++ {
			from := stopTimes[i]
			to := stopTimes[i+1]

			if !graph.HasStop(from.StopID) || !graph.HasStop(to.StopID) {
				stats.SkippedUnknownStops++
				log.Debug().Str("trip", tripID).Str("from", from.StopID).Str("to", to.StopID).Msg("Segment references unknown stop")
				continue
			}

			duration, err := gtfs.SegmentDuration(from.DepartureOrArrival(), to.ArrivalOrDeparture())
			if err != nil {
				stats.SkippedMalformedTimes++
				log.Debug().Err(err).Str("trip", tripID).Int("sequence", from.StopSequence).Msg("Skipping segment")
				continue
			}

			key := segmentKey{from: from.StopID, to: to.StopID, route: routeID}
			group, exists := groups[key]
			if !exists {
				group = &segmentGroup{}
				groups[key] = group
				groupOrder = append(groupOrder, key)
			}
			group.add(duration)
			stats.Segments++
		}
	}

	for _, key := range groupOrder {
		graph.Upsert(Edge{
			From:   key.from,
			To:     key.to,
			Weight: groups[key].weight(policy),
			Kind:   KindTransit,
			Routes: []string{key.route},
		})
	}
}

func addTransferEdges(graph *Graph, transfers []gtfs.Transfer, stats *BuildStats) {
	for _, transfer := range transfers {
		if transfer.TransferType != gtfs.TransferTypeRecommended && transfer.TransferType != gtfs.TransferTypeMinimumTime {
			continue
		}

		if transfer.FromStopID == transfer.ToStopID {
			log.Debug().Str("stop", transfer.FromStopID).Msg("Ignoring same stop transfer")
			continue
		}

		if !graph.HasStop(transfer.FromStopID) || !graph.HasStop(transfer.ToStopID) {
			stats.SkippedTransfers++
			log.Warn().Str("from", transfer.FromStopID).Str("to", transfer.ToStopID).Msg("Transfer references unknown stop")
			continue
		}

		weight := DefaultTransferSeconds
		if minTransferTime := strings.TrimSpace(transfer.MinTransferTime); minTransferTime != "" {
			parsed, err := strconv.Atoi(minTransferTime)
			if err != nil || parsed < 0 {
				stats.SkippedTransfers++
				log.Warn().Str("from", transfer.FromStopID).Str("to", transfer.ToStopID).Str("min_transfer_time", minTransferTime).Msg("Invalid transfer time")
				continue
			}
			weight = parsed
		}

		graph.Upsert(Edge{
			From:   transfer.FromStopID,
			To:     transfer.ToStopID,
			Weight: weight,
			Kind:   KindTransfer,
		})
	}
}

func addPlatformEdges(graph *Graph, stats *BuildStats) {
	for _, stop := range graph.Stops() {
		if stop.ParentID == "" {
			continue
		}

		if !graph.HasStop(stop.ParentID) {
			stats.DanglingParents++
			log.Warn().Str("stop", stop.ID).Str("parent", stop.ParentID).Msg("Parent station not found")
			continue
		}

		graph.Upsert(Edge{From: stop.ParentID, To: stop.ID, Weight: PlatformAccessSeconds, Kind: KindParentToChild})
		graph.Upsert(Edge{From: stop.ID, To: stop.ParentID, Weight: PlatformAccessSeconds, Kind: KindChildToParent})
	}
}
