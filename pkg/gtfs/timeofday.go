package gtfs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const SecondsPerDay = 86400

var ErrMalformedTime = errors.New("malformed time of day")

// ParseTimeOfDay converts a HH:MM:SS service day time into seconds since the start of the
// service day. Hours are unbounded so 25:30:00 is 91800 rather than wrapping.
func ParseTimeOfDay(timestamp string) (int, error) {
	splitTimestamp := strings.Split(strings.TrimSpace(timestamp), ":")
	if len(splitTimestamp) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, timestamp)
	}

	var parts [3]int
	for i, part := range splitTimestamp {
		if part == "" {
			return 0, fmt.Errorf("%w: %q", ErrMalformedTime, timestamp)
		}

		value, err := strconv.Atoi(part)
		if err != nil || value < 0 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedTime, timestamp)
		}
		parts[i] = value
	}

	if parts[1] > 59 || parts[2] > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, timestamp)
	}

	return parts[0]*3600 + parts[1]*60 + parts[2], nil
}

// SegmentDuration is the ride time from departing one stop to arriving at the next. Negative
// differences are a day boundary inconsistency and get a full day added.
func SegmentDuration(departure string, arrival string) (int, error) {
	departureSeconds, err := ParseTimeOfDay(departure)
	if err != nil {
		return 0, err
	}
	arrivalSeconds, err := ParseTimeOfDay(arrival)
	if err != nil {
		return 0, err
	}

	duration := arrivalSeconds - departureSeconds
	if duration < 0 {
		duration += SecondsPerDay
	}

	return duration, nil
}

// DepartureOrArrival returns the departure time, falling back to arrival when it is blank
func (s *StopTime) DepartureOrArrival() string {
	if strings.TrimSpace(s.DepartureTime) != "" {
		return s.DepartureTime
	}
	return s.ArrivalTime
}

// ArrivalOrDeparture returns the arrival time, falling back to departure when it is blank
func (s *StopTime) ArrivalOrDeparture() string {
	if strings.TrimSpace(s.ArrivalTime) != "" {
		return s.ArrivalTime
	}
	return s.DepartureTime
}
