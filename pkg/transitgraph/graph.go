// Package transitgraph holds the directed weighted graph of stops built from a GTFS schedule
package transitgraph

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/travigo/subway/pkg/gtfs"
	"golang.org/x/exp/slices"
)

type Kind string

const (
	KindTransit       Kind = "transit"
	KindTransfer      Kind = "transfer"
	KindParentToChild Kind = "parent_to_child"
	KindChildToParent Kind = "child_to_parent"
)

type Stop struct {
	ID           string  `groups:"basic,detailed"`
	Name         string  `groups:"basic,detailed"`
	Latitude     float64 `groups:"detailed"`
	Longitude    float64 `groups:"detailed"`
	LocationType string  `groups:"detailed"`
	ParentID     string  `groups:"detailed"`
}

func (s *Stop) IsStation() bool {
	return gtfs.IsStation(s.LocationType, s.ParentID)
}

// Edge weights are in seconds. Routes is only populated for transit edges.
type Edge struct {
	From   string
	To     string
	Weight int
	Kind   Kind
	Routes []string
}

type EdgeKey struct {
	From string
	To   string
	Kind Kind
}

func (e *Edge) Key() EdgeKey {
	return EdgeKey{From: e.From, To: e.To, Kind: e.Kind}
}

type Graph struct {
	stops     map[string]*Stop
	edges     map[EdgeKey]*Edge
	adjacency map[string][]*Edge

	stats   BuildStats
	builtAt time.Time
}

func NewGraph() *Graph {
	return &Graph{
		stops:     map[string]*Stop{},
		edges:     map[EdgeKey]*Edge{},
		adjacency: map[string][]*Edge{},
	}
}

// AddStop inserts the stop, returning false if the id is already present
func (g *Graph) AddStop(stop Stop) bool {
	if _, exists := g.stops[stop.ID]; exists {
		return false
	}

	g.stops[stop.ID] = &stop
	return true
}

func (g *Graph) Stop(id string) (*Stop, bool) {
	stop, exists := g.stops[id]
	return stop, exists
}

func (g *Graph) HasStop(id string) bool {
	_, exists := g.stops[id]
	return exists
}

// Stops returns every stop ordered by id
func (g *Graph) Stops() []*Stop {
	stops := make([]*Stop, 0, len(g.stops))
	for _, stop := range g.stops {
		stops = append(stops, stop)
	}
	slices.SortFunc(stops, func(a, b *Stop) int {
		return strings.Compare(a.ID, b.ID)
	})

	return stops
}

func (g *Graph) Edge(from string, to string, kind Kind) (*Edge, bool) {
	edge, exists := g.edges[EdgeKey{From: from, To: to, Kind: kind}]
	return edge, exists
}

// Edges returns every edge ordered by from, to and kind
func (g *Graph) Edges() []*Edge {
	edges := make([]*Edge, 0, len(g.edges))
	for _, edge := range g.edges {
		edges = append(edges, edge)
	}
	slices.SortFunc(edges, compareEdges)

	return edges
}

// Outgoing is the adjacency list for a stop, sorted by destination then kind
func (g *Graph) Outgoing(id string) []*Edge {
	return g.adjacency[id]
}

func (g *Graph) StopCount() int { return len(g.stops) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

func (g *Graph) Stats() BuildStats  { return g.stats }
func (g *Graph) BuiltAt() time.Time { return g.builtAt }

// Upsert folds an edge into the graph. An existing edge with the same key keeps the
// lower of the two weights and, for transit edges, the union of both route sets.
func (g *Graph) Upsert(edge Edge) {
	key := edge.Key()

	existing, exists := g.edges[key]
	if !exists {
		inserted := edge
		inserted.Routes = nil
		if edge.Kind == KindTransit {
			inserted.Routes = mergeRoutes(nil, edge.Routes)
		}

		g.edges[key] = &inserted
		g.adjacency[inserted.From] = append(g.adjacency[inserted.From], &inserted)
		return
	}

	if edge.Weight < existing.Weight {
		existing.Weight = edge.Weight
	}
	if edge.Kind == KindTransit {
		existing.Routes = mergeRoutes(existing.Routes, edge.Routes)
	}
}

// finalise sorts every adjacency list so traversal order never depends on map iteration
func (g *Graph) finalise() {
	for _, outgoing := range g.adjacency {
		slices.SortFunc(outgoing, compareEdges)
	}
}

func mergeRoutes(existing []string, routes []string) []string {
	merged := append([]string{}, existing...)
	for _, route := range routes {
		if route != "" && !slices.Contains(merged, route) {
			merged = append(merged, route)
		}
	}
	slices.Sort(merged)

	return merged
}

func compareEdges(a, b *Edge) int {
	if c := strings.Compare(a.From, b.From); c != 0 {
		return c
	}
	if c := strings.Compare(a.To, b.To); c != 0 {
		return c
	}
	return strings.Compare(string(a.Kind), string(b.Kind))
}

// Holder lets a rebuilt graph replace the live one while queries keep using whichever
// graph they loaded
type Holder struct {
	graph atomic.Pointer[Graph]
}

func (h *Holder) Load() *Graph {
	return h.graph.Load()
}

func (h *Holder) Store(graph *Graph) {
	h.graph.Store(graph)
}

// Swap installs the new graph and returns the previous one, which may be nil
func (h *Holder) Swap(graph *Graph) *Graph {
	return h.graph.Swap(graph)
}
