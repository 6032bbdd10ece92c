package timetable

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	iso8601 "github.com/senseyeio/duration"
	"github.com/travigo/subway/pkg/transitgraph"
)

var ErrInvalidInterval = errors.New("invalid refresh interval")

type LoadFunc func(ctx context.Context, source string, options transitgraph.Options) (*transitgraph.Graph, transitgraph.BuildStats, error)

// Refresher rebuilds the graph from its source and swaps it into the holder. A failed
// rebuild leaves the current graph in place.
type Refresher struct {
	Source   string
	Options  transitgraph.Options
	Holder   *transitgraph.Holder
	Interval iso8601.Duration

	Load LoadFunc
}

// ParseInterval reads an ISO-8601 duration such as P1D. An empty string disables
// refreshing and returns ok false.
func ParseInterval(interval string) (iso8601.Duration, bool, error) {
	interval = strings.TrimSpace(interval)
	if interval == "" {
		return iso8601.Duration{}, false, nil
	}

	duration, err := iso8601.ParseISO8601(interval)
	if err != nil {
		return iso8601.Duration{}, false, fmt.Errorf("%w: %q: %w", ErrInvalidInterval, interval, err)
	}

	now := time.Now()
	if !duration.Shift(now).After(now) {
		return iso8601.Duration{}, false, fmt.Errorf("%w: %q is not positive", ErrInvalidInterval, interval)
	}

	return duration, true, nil
}

func NewRefresher(source string, options transitgraph.Options, holder *transitgraph.Holder, interval iso8601.Duration) *Refresher {
	return &Refresher{
		Source:   source,
		Options:  options,
		Holder:   holder,
		Interval: interval,
		Load:     LoadGraph,
	}
}

func (r *Refresher) Refresh(ctx context.Context) error {
	startTime := time.Now()

	graph, stats, err := r.Load(ctx, r.Source, r.Options)
	if err != nil {
		return err
	}

	r.Holder.Swap(graph)

	log.Info().
		Str("source", r.Source).
		Int("stops", stats.Stops).
		Int("edges", stats.Edges).
		Dur("duration", time.Since(startTime)).
		Msg("Swapped in new transit graph")

	return nil
}

// Run refreshes on every interval until ctx is done
func (r *Refresher) Run(ctx context.Context) {
	for {
		now := time.Now()
		next := r.Interval.Shift(now)

		log.Debug().Time("next", next).Msg("Scheduled timetable refresh")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := r.Refresh(ctx); err != nil {
			log.Error().Err(err).Str("source", r.Source).Msg("Timetable refresh failed, keeping current graph")
		}
	}
}
