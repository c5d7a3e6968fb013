package source

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/Aman-CERP/graphindex/pkg/graph"
)

// Neo4jConfig holds connection settings.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string // default "neo4j"
}

// Neo4jSource reads entities from a Neo4j database.
type Neo4jSource struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ Source = (*Neo4jSource)(nil)

// NewNeo4jSource creates a driver for cfg. No connection is made until the first query.
func NewNeo4jSource(cfg Neo4jConfig) (*Neo4jSource, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}

	return &Neo4jSource{driver: driver, database: database}, nil
}

// Verify checks connectivity.
func (s *Neo4jSource) Verify(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Walk streams every node or relationship in the database.
func (s *Neo4jSource) Walk(ctx context.Context, kind graph.Kind, fn WalkFunc) error {
	query, key, err := walkQuery(kind)
	if err != nil {
		return err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	res, err := session.Run(ctx, query, nil)
	if err != nil {
		return fmt.Errorf("walk %s: %w", kind, err)
	}

	for res.Next(ctx) {
		value, ok := res.Record().Get(key)
		if !ok {
			continue
		}
		e, err := toEntity(value)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return res.Err()
}

// Lookup finds the first entity whose property, in string form, equals value.
// Document IDs are strings, so both sides are compared as strings and an
// integer key 42 matches "42".
func (s *Neo4jSource) Lookup(ctx context.Context, kind graph.Kind, property string, value any) (graph.Entity, error) {
	query, err := lookupQuery(kind)
	if err != nil {
		return nil, err
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"property": property,
			"value":    fmt.Sprint(value),
		})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, nil
		}
		v, _ := records[0].Get("e")
		return v, nil
	})
	if err != nil {
		return nil, fmt.Errorf("lookup %s %s=%v: %w", kind, property, value, err)
	}
	if result == nil {
		return nil, ErrNotFound
	}
	return toEntity(result)
}

// Close closes the driver.
func (s *Neo4jSource) Close() error {
	return s.driver.Close(context.Background())
}

func lookupQuery(kind graph.Kind) (string, error) {
	switch kind {
	case graph.KindNode:
		return `MATCH (n) WHERE toString(n[$property]) = $value RETURN n AS e LIMIT 1`, nil
	case graph.KindRelationship:
		return `MATCH ()-[r]->() WHERE toString(r[$property]) = $value RETURN r AS e LIMIT 1`, nil
	default:
		return "", fmt.Errorf("unsupported entity kind %s", kind)
	}
}

func walkQuery(kind graph.Kind) (query, key string, err error) {
	switch kind {
	case graph.KindNode:
		return `MATCH (n) RETURN n`, "n", nil
	case graph.KindRelationship:
		return `MATCH ()-[r]->() RETURN r`, "r", nil
	default:
		return "", "", fmt.Errorf("unsupported entity kind %s", kind)
	}
}

func toEntity(value any) (graph.Entity, error) {
	switch v := value.(type) {
	case dbtype.Node:
		return &graph.Node{
			ID:        v.Id,
			ElementID: v.ElementId,
			Labels:    v.Labels,
			Props:     convertProps(v.Props),
		}, nil
	case dbtype.Relationship:
		return &graph.Relationship{
			ID:             v.Id,
			ElementID:      v.ElementId,
			Type:           v.Type,
			StartElementID: v.StartElementId,
			EndElementID:   v.EndElementId,
			Props:          convertProps(v.Props),
		}, nil
	default:
		return nil, fmt.Errorf("unexpected graph value %T", value)
	}
}

// convertProps rewrites driver-specific values into plain Go values.
func convertProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = convertValue(v)
	}
	return out
}

func convertValue(v any) any {
	switch val := v.(type) {
	case dbtype.Date:
		return val.Time()
	case dbtype.LocalDateTime:
		return val.Time()
	case dbtype.LocalTime:
		return val.Time()
	case dbtype.Time:
		return val.Time()
	case dbtype.Duration:
		return val.String()
	case dbtype.Point2D:
		return val.String()
	case dbtype.Point3D:
		return val.String()
	case time.Time:
		return val
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = convertValue(e)
		}
		return out
	default:
		return v
	}
}
