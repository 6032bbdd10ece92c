package gtfs

import "strings"

type Stop struct {
	ID           string  `csv:"stop_id"`
	Code         string  `csv:"stop_code"`
	Name         string  `csv:"stop_name"`
	Description  string  `csv:"stop_desc"`
	Latitude     float64 `csv:"stop_lat"`
	Longitude    float64 `csv:"stop_lon"`
	ZoneID       string  `csv:"zone_id"`
	URL          string  `csv:"stop_url"`
	Type         string  `csv:"location_type"`
	Parent       string  `csv:"parent_station"`
	PlatformCode string  `csv:"platform_code"`
}

const StopTypeStation = "1"

// IsStation reports whether a stop is a top-level station rather than a platform. Feeds
// that leave location_type blank still mark their parentless stops as stations.
func IsStation(locationType string, parent string) bool {
	locationType = strings.TrimSpace(locationType)
	return strings.TrimSpace(parent) == "" && (locationType == "" || locationType == StopTypeStation)
}

func (s *Stop) IsStation() bool {
	return IsStation(s.Type, s.Parent)
}

type Route struct {
	ID         string `csv:"route_id"`
	AgencyID   string `csv:"agency_id"`
	ShortName  string `csv:"route_short_name"`
	LongName   string `csv:"route_long_name"`
	Colour     string `csv:"route_color"`
	TextColour string `csv:"route_text_color"`
	Type       int    `csv:"route_type"`
}

type Trip struct {
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	ID          string `csv:"trip_id"`
	Headsign    string `csv:"trip_headsign"`
	DirectionID string `csv:"direction_id"`
	ShapeID     string `csv:"shape_id"`
}

type StopTime struct {
	TripID        string `csv:"trip_id"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	StopID        string `csv:"stop_id"`
	StopSequence  int    `csv:"stop_sequence"`
	PickupType    int8   `csv:"pickup_type"`
	DropOffType   int8   `csv:"drop_off_type"`
}

// Transfer keeps min_transfer_time as text as the column is nullable
type Transfer struct {
	FromStopID      string `csv:"from_stop_id"`
	ToStopID        string `csv:"to_stop_id"`
	TransferType    int    `csv:"transfer_type"`
	MinTransferTime string `csv:"min_transfer_time"`
}

const (
	TransferTypeRecommended = 0
	TransferTypeTimed       = 1
	TransferTypeMinimumTime = 2
	TransferTypeNotPossible = 3
)
