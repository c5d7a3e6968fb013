package source

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/graphindex/pkg/graph"
	"github.com/Aman-CERP/graphindex/pkg/search"
)

func fixture() *MemorySource {
	return NewMemorySource(
		&graph.Node{ElementID: "n1", Labels: []string{"Person"}, Props: map[string]any{"uuid": "a", "name": "Alice"}},
		&graph.Node{ElementID: "n2", Labels: []string{"Person"}, Props: map[string]any{"uuid": int64(2), "name": "Bob"}},
		&graph.Relationship{ElementID: "r1", Type: "KNOWS", Props: map[string]any{"uuid": "k"}},
	)
}

// =============================================================================
// MemorySource Tests
// =============================================================================

func TestMemorySource_Walk(t *testing.T) {
	src := fixture()

	var nodes []string
	err := src.Walk(context.Background(), graph.KindNode, func(e graph.Entity) error {
		nodes = append(nodes, e.(*graph.Node).ElementID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, nodes)

	var rels int
	err = src.Walk(context.Background(), graph.KindRelationship, func(graph.Entity) error {
		rels++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rels)
}

func TestMemorySource_Walk_StopsOnError(t *testing.T) {
	stop := errors.New("stop")
	var seen int

	err := fixture().Walk(context.Background(), graph.KindNode, func(graph.Entity) error {
		seen++
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestMemorySource_Lookup(t *testing.T) {
	src := fixture()
	ctx := context.Background()

	e, err := src.Lookup(ctx, graph.KindNode, "uuid", "a")
	require.NoError(t, err)
	assert.Equal(t, "n1", e.(*graph.Node).ElementID)

	// Keys come back from the index as strings.
	e, err = src.Lookup(ctx, graph.KindNode, "uuid", "2")
	require.NoError(t, err)
	assert.Equal(t, "n2", e.(*graph.Node).ElementID)

	_, err = src.Lookup(ctx, graph.KindRelationship, "uuid", "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, search.ErrNotFound)
}

// =============================================================================
// CachedSource Tests
// =============================================================================

// countingSource counts Lookup calls on the wrapped source.
type countingSource struct {
	Source
	lookups atomic.Int32
}

func (c *countingSource) Lookup(ctx context.Context, kind graph.Kind, property string, value any) (graph.Entity, error) {
	c.lookups.Add(1)
	return c.Source.Lookup(ctx, kind, property, value)
}

func TestCachedSource_CachesHits(t *testing.T) {
	// Given: a cached source over a counting source
	inner := &countingSource{Source: fixture()}
	cached := NewCachedSource(inner, 0)
	ctx := context.Background()

	// When: looking up the same key twice
	first, err := cached.Lookup(ctx, graph.KindNode, "uuid", "a")
	require.NoError(t, err)
	second, err := cached.Lookup(ctx, graph.KindNode, "uuid", "a")
	require.NoError(t, err)

	// Then: the inner source is queried once
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), inner.lookups.Load())
	assert.Equal(t, 1, cached.Len())
}

func TestCachedSource_DoesNotCacheMisses(t *testing.T) {
	inner := &countingSource{Source: fixture()}
	cached := NewCachedSource(inner, 4)
	ctx := context.Background()

	_, err := cached.Lookup(ctx, graph.KindNode, "uuid", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cached.Lookup(ctx, graph.KindNode, "uuid", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int32(2), inner.lookups.Load())
	assert.Equal(t, 0, cached.Len())
}

func TestCachedSource_KeyIncludesKind(t *testing.T) {
	inner := &countingSource{Source: fixture()}
	cached := NewCachedSource(inner, 4)
	ctx := context.Background()

	_, err := cached.Lookup(ctx, graph.KindRelationship, "uuid", "k")
	require.NoError(t, err)
	_, err = cached.Lookup(ctx, graph.KindNode, "uuid", "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(2), inner.lookups.Load())
}

// =============================================================================
// Neo4j conversion Tests
// =============================================================================

func TestToEntity_Node(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	e, err := toEntity(dbtype.Node{
		Id:        7,
		ElementId: "4:abc:7",
		Labels:    []string{"Person"},
		Props: map[string]any{
			"uuid": "a",
			"born": dbtype.Date(day),
			"tags": []any{"x", dbtype.Date(day)},
		},
	})
	require.NoError(t, err)

	n, ok := e.(*graph.Node)
	require.True(t, ok)
	assert.Equal(t, int64(7), n.ID)
	assert.Equal(t, "4:abc:7", n.ElementID)
	assert.Equal(t, []string{"Person"}, n.Labels)
	assert.Equal(t, day, n.Props["born"])
	assert.Equal(t, []any{"x", day}, n.Props["tags"])
}

func TestToEntity_Relationship(t *testing.T) {
	e, err := toEntity(dbtype.Relationship{
		Id:             3,
		ElementId:      "5:abc:3",
		StartElementId: "4:abc:1",
		EndElementId:   "4:abc:2",
		Type:           "KNOWS",
		Props:          map[string]any{"since": int64(2020)},
	})
	require.NoError(t, err)

	r, ok := e.(*graph.Relationship)
	require.True(t, ok)
	assert.Equal(t, "KNOWS", r.Type)
	assert.Equal(t, "4:abc:1", r.StartElementID)
	assert.Equal(t, "4:abc:2", r.EndElementID)
	assert.Equal(t, int64(2020), r.Props["since"])
}

func TestToEntity_Unexpected(t *testing.T) {
	_, err := toEntity("not a graph value")
	assert.Error(t, err)
}

func TestNewNeo4jSource_RequiresURI(t *testing.T) {
	_, err := NewNeo4jSource(Neo4jConfig{})
	assert.Error(t, err)
}

// Lookups compare the property as a string so integer keys resolve
func TestLookupQuery_ComparesAsString(t *testing.T) {
	tests := []struct {
		kind graph.Kind
		want string
	}{
		{graph.KindNode, "toString(n[$property]) = $value"},
		{graph.KindRelationship, "toString(r[$property]) = $value"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			query, err := lookupQuery(tt.kind)
			require.NoError(t, err)
			assert.Contains(t, query, tt.want)
		})
	}

	_, err := lookupQuery(graph.Kind(9))
	assert.Error(t, err)
}
