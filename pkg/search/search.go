// Package search finds stations by name
package search

import (
	"strings"

	"github.com/travigo/subway/pkg/transitgraph"
	"golang.org/x/exp/slices"
)

const DefaultLimit = 10

type Station struct {
	ID        string  `json:"id" groups:"basic,detailed"`
	Name      string  `json:"name" groups:"basic,detailed"`
	Latitude  float64 `json:"lat" groups:"basic,detailed"`
	Longitude float64 `json:"lon" groups:"basic,detailed"`
}

// Search does a case-insensitive substring match against station names. Names starting
// with the query come first, then the rest alphabetically.
func Search(graph *transitgraph.Graph, query string, limit int) []Station {
	results := []Station{}

	query = strings.ToLower(strings.TrimSpace(query))
	if graph == nil || query == "" {
		return results
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	type match struct {
		station Station
		prefix  bool
	}
	var matches []match

	for _, stop := range graph.Stops() {
		if !stop.IsStation() {
			continue
		}

		name := strings.ToLower(stop.Name)
		if !strings.Contains(name, query) {
			continue
		}

		matches = append(matches, match{
			station: newStation(stop),
			prefix:  strings.HasPrefix(name, query),
		})
	}

	slices.SortStableFunc(matches, func(a, b match) int {
		if a.prefix != b.prefix {
			if a.prefix {
				return -1
			}
			return 1
		}
		return compareStations(a.station, b.station)
	})

	for _, m := range matches {
		if len(results) == limit {
			break
		}
		results = append(results, m.station)
	}

	return results
}

// All lists every station ordered by name
func All(graph *transitgraph.Graph) []Station {
	stations := []Station{}
	if graph == nil {
		return stations
	}

	for _, stop := range graph.Stops() {
		if stop.IsStation() {
			stations = append(stations, newStation(stop))
		}
	}
	slices.SortStableFunc(stations, compareStations)

	return stations
}

func newStation(stop *transitgraph.Stop) Station {
	return Station{
		ID:        stop.ID,
		Name:      stop.Name,
		Latitude:  stop.Latitude,
		Longitude: stop.Longitude,
	}
}

func compareStations(a, b Station) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
