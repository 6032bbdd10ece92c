package transitgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/subway/pkg/gtfs"
)

func stationScenario() *gtfs.Schedule {
	return &gtfs.Schedule{
		Stops: []gtfs.Stop{
			{ID: "A", Name: "Alpha", Type: "1"},
			{ID: "A1", Name: "Alpha Platform", Parent: "A"},
			{ID: "B", Name: "Bravo", Type: "1"},
		},
		Routes: []gtfs.Route{{ID: "X"}},
		Trips:  []gtfs.Trip{{ID: "T1", RouteID: "X"}},
		StopTimes: []gtfs.StopTime{
			{TripID: "T1", StopID: "B", StopSequence: 2, ArrivalTime: "00:12:30", DepartureTime: "00:13:00"},
			{TripID: "T1", StopID: "A1", StopSequence: 1, ArrivalTime: "00:09:30", DepartureTime: "00:10:00"},
		},
		Transfers: []gtfs.Transfer{
			{FromStopID: "A", ToStopID: "B", TransferType: gtfs.TransferTypeMinimumTime},
		},
	}
}

func TestBuildStationScenario(t *testing.T) {
	graph, stats, err := Build(stationScenario(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, graph.StopCount())
	assert.Equal(t, 3, stats.Stops)
	assert.Equal(t, PolicyFirst, stats.Policy)

	transit, exists := graph.Edge("A1", "B", KindTransit)
	require.True(t, exists)
	assert.Equal(t, 150, transit.Weight)
	assert.Equal(t, []string{"X"}, transit.Routes)

	transfer, exists := graph.Edge("A", "B", KindTransfer)
	require.True(t, exists)
	assert.Equal(t, DefaultTransferSeconds, transfer.Weight)
	assert.Empty(t, transfer.Routes)

	down, exists := graph.Edge("A", "A1", KindParentToChild)
	require.True(t, exists)
	assert.Equal(t, PlatformAccessSeconds, down.Weight)

	up, exists := graph.Edge("A1", "A", KindChildToParent)
	require.True(t, exists)
	assert.Equal(t, PlatformAccessSeconds, up.Weight)

	assert.Equal(t, 4, stats.Edges)
	assert.Equal(t, 1, stats.TransitEdges)
	assert.Equal(t, 1, stats.TransferEdges)
	assert.Equal(t, 2, stats.PlatformEdges)
}

func TestBuildDayWrap(t *testing.T) {
	schedule := stationScenario()
	schedule.StopTimes = []gtfs.StopTime{
		{TripID: "T1", StopID: "A1", StopSequence: 1, DepartureTime: "23:58:00", ArrivalTime: "23:58:00"},
		{TripID: "T1", StopID: "B", StopSequence: 2, ArrivalTime: "24:01:30", DepartureTime: "24:02:00"},
	}

	graph, _, err := Build(schedule, Options{})
	require.NoError(t, err)

	edge, exists := graph.Edge("A1", "B", KindTransit)
	require.True(t, exists)
	assert.Equal(t, 210, edge.Weight)
}

func TestBuildWeightPolicies(t *testing.T) {
	schedule := stationScenario()
	schedule.Trips = []gtfs.Trip{{ID: "T1", RouteID: "X"}, {ID: "T2", RouteID: "X"}, {ID: "T3", RouteID: "X"}}
	schedule.StopTimes = []gtfs.StopTime{
		{TripID: "T2", StopID: "A1", StopSequence: 1, DepartureTime: "08:00:00"},
		{TripID: "T2", StopID: "B", StopSequence: 2, ArrivalTime: "08:01:00"},
		{TripID: "T1", StopID: "A1", StopSequence: 1, DepartureTime: "07:00:00"},
		{TripID: "T1", StopID: "B", StopSequence: 2, ArrivalTime: "07:03:00"},
		{TripID: "T3", StopID: "A1", StopSequence: 1, DepartureTime: "09:00:00"},
		{TripID: "T3", StopID: "B", StopSequence: 2, ArrivalTime: "09:02:00"},
	}

	tests := []struct {
		policy   Policy
		expected int
	}{
		{PolicyFirst, 180},
		{PolicyFastest, 60},
		{PolicyMean, 120},
	}

	for _, test := range tests {
		graph, stats, err := Build(schedule, Options{Policy: test.policy})
		require.NoError(t, err)
		assert.Equal(t, test.policy, stats.Policy)
		assert.Equal(t, 3, stats.Segments)

		edge, exists := graph.Edge("A1", "B", KindTransit)
		require.True(t, exists)
		assert.Equal(t, test.expected, edge.Weight, string(test.policy))
	}
}

func TestBuildMergesRoutes(t *testing.T) {
	schedule := stationScenario()
	schedule.Routes = []gtfs.Route{{ID: "X"}, {ID: "Y"}}
	schedule.Trips = []gtfs.Trip{{ID: "T1", RouteID: "Y"}, {ID: "T2", RouteID: "X"}}
	schedule.StopTimes = []gtfs.StopTime{
		{TripID: "T1", StopID: "A1", StopSequence: 1, DepartureTime: "07:00:00"},
		{TripID: "T1", StopID: "B", StopSequence: 2, ArrivalTime: "07:04:00"},
		{TripID: "T2", StopID: "A1", StopSequence: 1, DepartureTime: "07:00:00"},
		{TripID: "T2", StopID: "B", StopSequence: 2, ArrivalTime: "07:02:00"},
	}

	graph, stats, err := Build(schedule, Options{})
	require.NoError(t, err)

	edge, exists := graph.Edge("A1", "B", KindTransit)
	require.True(t, exists)
	assert.Equal(t, 120, edge.Weight)
	assert.Equal(t, []string{"X", "Y"}, edge.Routes)
	assert.Equal(t, 1, stats.TransitEdges)
}

func TestBuildSkipsBadData(t *testing.T) {
	schedule := stationScenario()
	schedule.Stops = append(schedule.Stops,
		gtfs.Stop{ID: "C1", Name: "Orphan", Parent: "C"},
		gtfs.Stop{ID: "A", Name: "Alpha Again"},
	)
	schedule.Trips = append(schedule.Trips, gtfs.Trip{ID: "T2", RouteID: "MISSING"})
	schedule.StopTimes = append(schedule.StopTimes,
		gtfs.StopTime{TripID: "T2", StopID: "A1", StopSequence: 1, DepartureTime: "07:00:00"},
		gtfs.StopTime{TripID: "T2", StopID: "B", StopSequence: 2, ArrivalTime: "07:02:00"},
		gtfs.StopTime{TripID: "GHOST", StopID: "A1", StopSequence: 1, DepartureTime: "07:00:00"},
		gtfs.StopTime{TripID: "GHOST", StopID: "B", StopSequence: 2, ArrivalTime: "07:02:00"},
		gtfs.StopTime{TripID: "T1", StopID: "Z", StopSequence: 3, ArrivalTime: "00:15:00"},
		gtfs.StopTime{TripID: "T1", StopID: "A1", StopSequence: 4, ArrivalTime: "bad"},
		gtfs.StopTime{TripID: "T1", StopID: "B", StopSequence: 5, ArrivalTime: "00:20:00"},
	)
	schedule.Transfers = append(schedule.Transfers,
		gtfs.Transfer{FromStopID: "A", ToStopID: "NOWHERE", TransferType: gtfs.TransferTypeRecommended},
		gtfs.Transfer{FromStopID: "B", ToStopID: "B", TransferType: gtfs.TransferTypeMinimumTime},
		gtfs.Transfer{FromStopID: "B", ToStopID: "A", TransferType: gtfs.TransferTypeNotPossible},
	)

	schedule.SkippedRows = 2

	graph, stats, err := Build(schedule, Options{})
	require.NoError(t, err)

	stop, _ := graph.Stop("A")
	assert.Equal(t, "Alpha", stop.Name)
	assert.Equal(t, 2, stats.SkippedMalformedRows)
	assert.Equal(t, 1, stats.SkippedDuplicateStops)
	assert.Equal(t, 1, stats.DanglingParents)
	assert.Equal(t, 1, stats.SkippedUnknownRoutes)
	assert.Equal(t, 1, stats.SkippedUnknownTrips)
	assert.Equal(t, 2, stats.SkippedUnknownStops)
	assert.Equal(t, 1, stats.SkippedMalformedTimes)
	assert.Equal(t, 1, stats.SkippedTransfers)

	_, exists := graph.Edge("B", "A", KindTransfer)
	assert.False(t, exists)
	_, exists = graph.Edge("B", "B", KindTransfer)
	assert.False(t, exists)
	_, exists = graph.Edge("C1", "C", KindChildToParent)
	assert.False(t, exists)

	for _, edge := range graph.Edges() {
		assert.GreaterOrEqual(t, edge.Weight, 0)
	}
}

func TestBuildTransferTime(t *testing.T) {
	schedule := stationScenario()
	schedule.Transfers = []gtfs.Transfer{
		{FromStopID: "A", ToStopID: "B", TransferType: gtfs.TransferTypeMinimumTime, MinTransferTime: "300"},
		{FromStopID: "A", ToStopID: "B", TransferType: gtfs.TransferTypeRecommended, MinTransferTime: "240"},
		{FromStopID: "B", ToStopID: "A", TransferType: gtfs.TransferTypeRecommended, MinTransferTime: "abc"},
	}

	graph, stats, err := Build(schedule, Options{})
	require.NoError(t, err)

	edge, exists := graph.Edge("A", "B", KindTransfer)
	require.True(t, exists)
	assert.Equal(t, 240, edge.Weight)

	_, exists = graph.Edge("B", "A", KindTransfer)
	assert.False(t, exists)
	assert.Equal(t, 1, stats.SkippedTransfers)
}

func TestBuildIsIdempotent(t *testing.T) {
	first, _, err := Build(stationScenario(), Options{})
	require.NoError(t, err)
	second, _, err := Build(stationScenario(), Options{})
	require.NoError(t, err)

	assert.Equal(t, first.Stops(), second.Stops())
	assert.Equal(t, first.Edges(), second.Edges())
}

func sharedSegmentScenario() *gtfs.Schedule {
	return &gtfs.Schedule{
		Stops: []gtfs.Stop{
			{ID: "A", Name: "Alpha", Type: "1"},
			{ID: "A1", Name: "Alpha Platform", Parent: "A"},
			{ID: "B", Name: "Bravo", Type: "1"},
			{ID: "B1", Name: "Bravo Platform", Parent: "B"},
		},
		Routes: []gtfs.Route{{ID: "X"}, {ID: "Y"}},
		Trips: []gtfs.Trip{
			{ID: "T1", RouteID: "X"},
			{ID: "T2", RouteID: "X"},
			{ID: "T3", RouteID: "Y"},
			{ID: "T4", RouteID: "Y"},
		},
		StopTimes: []gtfs.StopTime{
			{TripID: "T1", StopID: "A1", StopSequence: 1, DepartureTime: "08:00:00"},
			{TripID: "T1", StopID: "B1", StopSequence: 2, ArrivalTime: "08:02:00"},
			{TripID: "T2", StopID: "A1", StopSequence: 1, DepartureTime: "09:00:00"},
			{TripID: "T2", StopID: "B1", StopSequence: 2, ArrivalTime: "09:01:00"},
			{TripID: "T3", StopID: "A1", StopSequence: 1, DepartureTime: "10:00:00"},
			{TripID: "T3", StopID: "B1", StopSequence: 2, ArrivalTime: "10:01:30"},
			{TripID: "T4", StopID: "A1", StopSequence: 1, DepartureTime: "11:00:00"},
			{TripID: "T4", StopID: "B1", StopSequence: 2, ArrivalTime: "11:02:30"},
		},
		Transfers: []gtfs.Transfer{
			{FromStopID: "A", ToStopID: "B", TransferType: gtfs.TransferTypeMinimumTime, MinTransferTime: "200"},
			{FromStopID: "A", ToStopID: "B", TransferType: gtfs.TransferTypeRecommended},
		},
	}
}

func reversed[T any](items []T) []T {
	out := make([]T, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		out = append(out, items[i])
	}
	return out
}

func TestBuildIsOrderIndependent(t *testing.T) {
	for _, policy := range []Policy{PolicyFirst, PolicyFastest, PolicyMean} {
		t.Run(string(policy), func(t *testing.T) {
			shuffled := sharedSegmentScenario()
			shuffled.Stops = reversed(shuffled.Stops)
			shuffled.Trips = reversed(shuffled.Trips)
			shuffled.StopTimes = reversed(shuffled.StopTimes)
			shuffled.Transfers = reversed(shuffled.Transfers)

			ordered, _, err := Build(sharedSegmentScenario(), Options{Policy: policy})
			require.NoError(t, err)
			other, _, err := Build(shuffled, Options{Policy: policy})
			require.NoError(t, err)

			assert.Equal(t, ordered.Edges(), other.Edges())
			assert.Equal(t, ordered.Stops(), other.Stops())

			edge, exists := other.Edge("A1", "B1", KindTransit)
			require.True(t, exists)
			assert.Equal(t, []string{"X", "Y"}, edge.Routes)

			transfer, exists := other.Edge("A", "B", KindTransfer)
			require.True(t, exists)
			assert.Equal(t, 180, transfer.Weight)
		})
	}
}

func TestBuildSingleParentChildPair(t *testing.T) {
	schedule := stationScenario()
	schedule.Stops = append(schedule.Stops,
		gtfs.Stop{ID: "A2", Name: "Alpha Platform 2", Parent: "A"},
	)

	graph, _, err := Build(schedule, Options{})
	require.NoError(t, err)

	for _, child := range []string{"A1", "A2"} {
		var down, up int
		for _, edge := range graph.Edges() {
			if edge.From == "A" && edge.To == child && edge.Kind == KindParentToChild {
				down++
			}
			if edge.From == child && edge.To == "A" && edge.Kind == KindChildToParent {
				up++
			}
		}
		assert.Equal(t, 1, down, child)
		assert.Equal(t, 1, up, child)
	}
}

func TestBuildUnknownPolicy(t *testing.T) {
	_, _, err := Build(stationScenario(), Options{Policy: "slowest"})
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestOutgoingIsSorted(t *testing.T) {
	schedule := stationScenario()
	schedule.Stops = append(schedule.Stops, gtfs.Stop{ID: "A0", Name: "Alpha Platform 0", Parent: "A"})

	graph, _, err := Build(schedule, Options{})
	require.NoError(t, err)

	var destinations []string
	for _, edge := range graph.Outgoing("A") {
		destinations = append(destinations, edge.To)
	}
	assert.Equal(t, []string{"A0", "A1", "B"}, destinations)
}
