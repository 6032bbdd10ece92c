// Package journeygraph copies the transit graph into neo4j so it can be explored with Cypher
package journeygraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
	"github.com/travigo/subway/pkg/transitgraph"
)

const defaultBatchSize = 500

type Exporter struct {
	Driver    neo4j.DriverWithContext
	Database  string
	BatchSize int
}

func Connect(ctx context.Context, env map[string]string) (neo4j.DriverWithContext, error) {
	uri := env["SUBWAY_NEO4J_URI"]
	if uri == "" {
		uri = "neo4j://localhost"
	}

	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(env["SUBWAY_NEO4J_USER"], env["SUBWAY_NEO4J_PASSWORD"], ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}

	return driver, nil
}

// Export replaces the contents of the database with the stops and edges of graph
func (e *Exporter) Export(ctx context.Context, graph *transitgraph.Graph) error {
	session := e.Driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: e.Database})
	defer session.Close(ctx)

	if _, err := session.Run(ctx, "MATCH (s:Stop) DETACH DELETE s", map[string]any{}); err != nil {
		return fmt.Errorf("clear graph: %w", err)
	}

	batchSize := e.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	stops := stopRecords(graph)
	for _, batch := range batches(stops, batchSize) {
		if err := e.write(ctx, session, "UNWIND $rows AS row CREATE (:Stop {id: row.id, name: row.name, latitude: row.latitude, longitude: row.longitude, parent: row.parent})", batch); err != nil {
			return fmt.Errorf("write stops: %w", err)
		}
	}
	log.Info().Int("stops", len(stops)).Msg("Exported stops")

	for kind, edges := range edgeRecords(graph) {
		query := fmt.Sprintf(
			"UNWIND $rows AS row MATCH (a:Stop {id: row.from}), (b:Stop {id: row.to}) CREATE (a)-[:%s {weight: row.weight, routes: row.routes}]->(b)",
			relationshipType(kind),
		)

		for _, batch := range batches(edges, batchSize) {
			if err := e.write(ctx, session, query, batch); err != nil {
				return fmt.Errorf("write %s edges: %w", kind, err)
			}
		}
		log.Info().Str("kind", string(kind)).Int("edges", len(edges)).Msg("Exported edges")
	}

	return nil
}

func (e *Exporter) write(ctx context.Context, session neo4j.SessionWithContext, query string, rows []any) error {
	_, err := session.ExecuteWrite(ctx,
		func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, map[string]any{"rows": rows})
			return nil, err
		})

	return err
}

func stopRecords(graph *transitgraph.Graph) []any {
	var records []any
	for _, stop := range graph.Stops() {
		records = append(records, map[string]any{
			"id":        stop.ID,
			"name":      stop.Name,
			"latitude":  stop.Latitude,
			"longitude": stop.Longitude,
			"parent":    stop.ParentID,
		})
	}

	return records
}

func edgeRecords(graph *transitgraph.Graph) map[transitgraph.Kind][]any {
	records := map[transitgraph.Kind][]any{}
	for _, edge := range graph.Edges() {
		routes := []any{}
		for _, route := range edge.Routes {
			routes = append(routes, route)
		}

		records[edge.Kind] = append(records[edge.Kind], map[string]any{
			"from":   edge.From,
			"to":     edge.To,
			"weight": int64(edge.Weight),
			"routes": routes,
		})
	}

	return records
}

// relationshipType maps an edge kind onto a Cypher relationship label
func relationshipType(kind transitgraph.Kind) string {
	return strings.ToUpper(string(kind))
}

func batches(records []any, size int) [][]any {
	var result [][]any
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		result = append(result, records[start:end])
	}

	return result
}
