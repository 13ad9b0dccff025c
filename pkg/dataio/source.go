package dataio

import (
	"context"
	"fmt"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/orneryd/edgepredict/pkg/graph"
)

// EdgeSource yields the raw, ordered edge list for a pipeline run.
type EdgeSource interface {
	Edges(ctx context.Context) ([]graph.Edge, error)
	Name() string
}

// FileSource reads a tab-separated adjacency file.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return s.Path }

func (s FileSource) Edges(ctx context.Context) ([]graph.Edge, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	edges, err := ReadEdges(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return edges, nil
}

// DefaultNeo4jQuery returns every FOLLOWS relationship as integer id pairs.
const DefaultNeo4jQuery = `
	MATCH (a)-[:FOLLOWS]->(b)
	RETURN a.id AS source, b.id AS sink
	ORDER BY source, sink
`

// Neo4jConfig holds Neo4j connection configuration.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
	// Query must return integer columns named source and sink.
	Query string
}

// Neo4jSource loads edges from a Neo4j database over Bolt.
type Neo4jSource struct {
	driver   neo4j.DriverWithContext
	database string
	query    string
}

// NewNeo4jSource connects and verifies connectivity.
func NewNeo4jSource(ctx context.Context, cfg Neo4jConfig) (*Neo4jSource, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}

	query := cfg.Query
	if query == "" {
		query = DefaultNeo4jQuery
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jSource{driver: driver, database: database, query: query}, nil
}

func (s *Neo4jSource) Name() string { return "neo4j:" + s.database }

// Close closes the Neo4j connection.
func (s *Neo4jSource) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jSource) Edges(ctx context.Context) ([]graph.Edge, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, s.query, nil)
		if err != nil {
			return nil, err
		}

		var edges []graph.Edge
		for result.Next(ctx) {
			e, err := edgeFromValues(result.Record().AsMap())
			if err != nil {
				return nil, err
			}
			edges = append(edges, e)
		}
		return edges, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	return result.([]graph.Edge), nil
}

func edgeFromValues(values map[string]any) (graph.Edge, error) {
	source, err := nodeIDValue(values, "source")
	if err != nil {
		return graph.Edge{}, err
	}
	sink, err := nodeIDValue(values, "sink")
	if err != nil {
		return graph.Edge{}, err
	}
	return graph.Edge{Source: source, Sink: sink}, nil
}

func nodeIDValue(values map[string]any, key string) (graph.NodeID, error) {
	v, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("record has no %q column", key)
	}
	switch id := v.(type) {
	case int64:
		return graph.NodeID(id), nil
	case int:
		return graph.NodeID(id), nil
	case float64:
		if id != float64(int64(id)) {
			return 0, fmt.Errorf("column %q: %v is not an integer id", key, id)
		}
		return graph.NodeID(id), nil
	default:
		return 0, fmt.Errorf("column %q: unsupported id type %T", key, v)
	}
}
