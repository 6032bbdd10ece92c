package gtfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"00:00:00", 0},
		{"00:10:00", 600},
		{"23:58:00", 86280},
		{"24:01:30", 86490},
		{"25:30:00", 91800},
		{"5:07:09", 18429},
		{" 12:00:00 ", 43200},
	}

	for _, test := range tests {
		seconds, err := ParseTimeOfDay(test.input)
		require.NoError(t, err, test.input)
		assert.Equal(t, test.expected, seconds, test.input)
	}
}

func TestParseTimeOfDayMalformed(t *testing.T) {
	for _, input := range []string{"", "12:00", "12:00:00:00", "aa:00:00", "12:60:00", "12:00:61", "-1:00:00", "12::00"} {
		_, err := ParseTimeOfDay(input)
		assert.ErrorIs(t, err, ErrMalformedTime, input)
	}
}

func TestSegmentDuration(t *testing.T) {
	duration, err := SegmentDuration("00:10:00", "00:12:30")
	require.NoError(t, err)
	assert.Equal(t, 150, duration)

	// Unbounded hours mean no wrap is needed across midnight
	duration, err = SegmentDuration("23:58:00", "24:01:30")
	require.NoError(t, err)
	assert.Equal(t, 210, duration)

	// Inconsistent day boundary gets a full day added
	duration, err = SegmentDuration("23:59:00", "00:01:00")
	require.NoError(t, err)
	assert.Equal(t, 120, duration)

	_, err = SegmentDuration("bad", "00:01:00")
	assert.ErrorIs(t, err, ErrMalformedTime)
}

func TestStopTimeFallbacks(t *testing.T) {
	stopTime := StopTime{ArrivalTime: "08:00:00"}
	assert.Equal(t, "08:00:00", stopTime.DepartureOrArrival())
	assert.Equal(t, "08:00:00", stopTime.ArrivalOrDeparture())

	stopTime = StopTime{DepartureTime: "08:01:00"}
	assert.Equal(t, "08:01:00", stopTime.ArrivalOrDeparture())

	stopTime = StopTime{ArrivalTime: "08:00:00", DepartureTime: "08:01:00"}
	assert.Equal(t, "08:01:00", stopTime.DepartureOrArrival())
	assert.Equal(t, "08:00:00", stopTime.ArrivalOrDeparture())
}
