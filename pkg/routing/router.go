// Package routing finds least cost paths over a transit graph
package routing

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/travigo/subway/pkg/transitgraph"
)

var ErrNotFound = errors.New("no route found")

type Hop struct {
	From              string            `json:"from" groups:"basic,detailed"`
	To                string            `json:"to" groups:"basic,detailed"`
	FromName          string            `json:"fromName" groups:"basic,detailed"`
	ToName            string            `json:"toName" groups:"basic,detailed"`
	Seconds           int               `json:"seconds" groups:"basic,detailed"`
	CumulativeSeconds int               `json:"cumulativeSeconds" groups:"basic,detailed"`
	Kind              transitgraph.Kind `json:"kind" groups:"basic,detailed"`
	Routes            []string          `json:"routes" groups:"basic,detailed"`
}

type Path struct {
	TotalSeconds int   `json:"totalSeconds" groups:"basic,detailed"`
	Hops         []Hop `json:"hops" groups:"basic,detailed"`
}

// Route runs Dijkstra from start to end. Unknown stops and unreachable destinations
// both return ErrNotFound.
func Route(graph *transitgraph.Graph, startID string, endID string) (*Path, error) {
	if graph == nil {
		return nil, fmt.Errorf("%w: no graph loaded", ErrNotFound)
	}
	if !graph.HasStop(startID) {
		return nil, fmt.Errorf("%w: unknown stop %q", ErrNotFound, startID)
	}
	if !graph.HasStop(endID) {
		return nil, fmt.Errorf("%w: unknown stop %q", ErrNotFound, endID)
	}

	if startID == endID {
		return &Path{Hops: []Hop{}}, nil
	}

	distances := map[string]int{startID: 0}
	previous := map[string]*transitgraph.Edge{}
	settled := map[string]bool{}

	queue := &priorityQueue{}
	queue.push(startID, 0)

	for queue.Len() > 0 {
		current := heap.Pop(queue).(*queueItem)
		if settled[current.stopID] {
			continue
		}
		settled[current.stopID] = true

		if current.stopID == endID {
			break
		}

		for _, edge := range graph.Outgoing(current.stopID) {
			if settled[edge.To] {
				continue
			}

			distance := current.distance + edge.Weight
			if existing, seen := distances[edge.To]; seen && distance >= existing {
				continue
			}

			distances[edge.To] = distance
			previous[edge.To] = edge
			queue.push(edge.To, distance)
		}
	}

	if !settled[endID] {
		return nil, fmt.Errorf("%w: %s to %s", ErrNotFound, startID, endID)
	}

	return buildPath(graph, previous, startID, endID), nil
}

func buildPath(graph *transitgraph.Graph, previous map[string]*transitgraph.Edge, startID string, endID string) *Path {
	var edges []*transitgraph.Edge
	for stopID := endID; stopID != startID; {
		edge := previous[stopID]
		edges = append(edges, edge)
		stopID = edge.From
	}

	path := &Path{Hops: make([]Hop, 0, len(edges))}
	for i := len(edges) - 1; i >= 0; i-- {
		edge := edges[i]
		path.TotalSeconds += edge.Weight

		routes := []string{}
		if edge.Kind == transitgraph.KindTransit {
			routes = append(routes, edge.Routes...)
		}

		path.Hops = append(path.Hops, Hop{
			From:              edge.From,
			To:                edge.To,
			FromName:          stopName(graph, edge.From),
			ToName:            stopName(graph, edge.To),
			Seconds:           edge.Weight,
			CumulativeSeconds: path.TotalSeconds,
			Kind:              edge.Kind,
			Routes:            routes,
		})
	}

	return path
}

func stopName(graph *transitgraph.Graph, id string) string {
	if stop, exists := graph.Stop(id); exists {
		return stop.Name
	}
	return ""
}
