package mapping

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/graphindex/pkg/graph"
)

func newConfigured(t *testing.T, options map[string]string, opts ...Option) *Mapper {
	t.Helper()
	m, err := New(PerKindIndex, opts...)
	require.NoError(t, err)
	m.Configure(options)
	return m
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNew_NilNamer_ReturnsError(t *testing.T) {
	// Given: no index namer

	// When: creating a mapper
	m, err := New(nil)

	// Then: ErrNilIndexNamer
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrNilIndexNamer)
}

func TestMapper_BeforeConfigure_ReturnsErrNotConfigured(t *testing.T) {
	// Given: an unconfigured mapper
	m, err := New(PerKindIndex)
	require.NoError(t, err)
	node := &graph.Node{Props: map[string]any{"uuid": "a"}}

	// When/Then: every configuration-dependent operation fails
	_, err = m.Key(node)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = m.MapToDocument(node)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = m.IndexFor(graph.KindNode)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = m.Normalize("x")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = m.KeyProperty()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

// =============================================================================
// Configure Tests
// =============================================================================

// TS01: empty options resolve to defaults
func TestMapper_Configure_EmptyOptions_UsesDefaults(t *testing.T) {
	// Given/When: configured with no options
	m := newConfigured(t, map[string]string{})

	// Then: defaults apply
	cfg, err := m.Config()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	key, err := m.KeyProperty()
	require.NoError(t, err)
	assert.Equal(t, "uuid", key)

	nodeIndex, err := m.IndexFor(graph.KindNode)
	require.NoError(t, err)
	assert.Equal(t, "neo4j-index-node", nodeIndex)
}

// TS02: blank index falls back to the default prefix
func TestMapper_Configure_BlankIndex_FallsBack(t *testing.T) {
	m := newConfigured(t, map[string]string{"index": "   "})

	name, err := m.IndexFor(graph.KindRelationship)
	require.NoError(t, err)
	assert.Equal(t, "neo4j-index-relationship", name)
}

// TS03: second Configure is ignored
func TestMapper_Configure_SecondCallIgnored(t *testing.T) {
	// Given: a mapper configured once, logging to a buffer
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := newConfigured(t, map[string]string{"index": "first"}, WithLogger(logger))

	// When: configuring again
	m.Configure(map[string]string{"index": "second"})

	// Then: the first configuration holds and the attempt is logged
	cfg, err := m.Config()
	require.NoError(t, err)
	assert.Equal(t, "first", cfg.IndexPrefix)
	assert.Contains(t, buf.String(), "mapping_reconfigure_ignored")
}

func TestMapper_Configure_ConcurrentCallsPickOne(t *testing.T) {
	m, err := New(PerKindIndex, WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, prefix := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			m.Configure(map[string]string{"index": p})
		}(prefix)
	}
	wg.Wait()

	cfg, err := m.Config()
	require.NoError(t, err)
	assert.Contains(t, []string{"a", "b", "c", "d"}, cfg.IndexPrefix)
}

// =============================================================================
// Key Tests
// =============================================================================

func TestMapper_Key(t *testing.T) {
	m := newConfigured(t, map[string]string{})

	tests := []struct {
		name  string
		props map[string]any
		want  string
	}{
		{name: "string key", props: map[string]any{"uuid": "abc"}, want: "abc"},
		{name: "integer key", props: map[string]any{"uuid": int64(42)}, want: "42"},
		{name: "missing key", props: map[string]any{"name": "Alice"}, want: MissingKey},
		{name: "nil key", props: map[string]any{"uuid": nil}, want: "null"},
		{name: "nil properties", props: nil, want: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Key(&graph.Node{Props: tt.props})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapper_Key_CustomKeyProperty(t *testing.T) {
	m := newConfigured(t, map[string]string{"keyProperty": " id "})

	got, err := m.Key(&graph.Relationship{Type: "KNOWS", Props: map[string]any{"id": "r-1", "uuid": "ignored"}})
	require.NoError(t, err)
	assert.Equal(t, "r-1", got)
}

func TestMapper_Key_NilEntity(t *testing.T) {
	m := newConfigured(t, nil)

	_, err := m.Key(nil)
	assert.ErrorIs(t, err, ErrNilEntity)

	_, err = m.Key((*graph.Node)(nil))
	assert.ErrorIs(t, err, ErrNilEntity)
}

// =============================================================================
// MapToDocument Tests
// =============================================================================

// TS04: worked example with forced strings
func TestMapper_MapToDocument_ForceStrings_Example(t *testing.T) {
	// Given: forceStrings and a node with key, scalar and array properties
	m := newConfigured(t, map[string]string{"forceStrings": "TRUE"})
	node := &graph.Node{
		Labels: []string{"Person"},
		Props: map[string]any{
			"uuid": "abc",
			"name": "Alice",
			"age":  int64(30),
			"tags": []string{"x", "y"},
		},
	}

	// When: mapping
	doc, err := m.MapToDocument(node)
	require.NoError(t, err)

	// Then: key is excluded and everything else is a string
	assert.Equal(t, Document{
		"name": "Alice",
		"age":  "30",
		"tags": []any{"x", "y"},
	}, doc)
}

// TS04b: the same example without forceStrings keeps scalar types
func TestMapper_MapToDocument_Example(t *testing.T) {
	// Given: default options and {"uuid":"abc","name":"Alice","tags":["x","y"]}
	m := newConfigured(t, nil)
	node := &graph.Node{
		Labels: []string{"Person"},
		Props: map[string]any{
			"uuid": "abc",
			"name": "Alice",
			"tags": []string{"x", "y"},
		},
	}

	// When: mapping
	doc, err := m.MapToDocument(node)
	require.NoError(t, err)

	// Then: the key is dropped and the sequence is rebuilt as []any
	assert.Equal(t, Document{
		"name": "Alice",
		"tags": []any{"x", "y"},
	}, doc)
}

// TS05: key property never appears in the document
func TestMapper_MapToDocument_ExcludesKey(t *testing.T) {
	for _, keyProp := range []string{"uuid", "id", "name"} {
		t.Run(keyProp, func(t *testing.T) {
			m := newConfigured(t, map[string]string{"keyProperty": keyProp})
			node := &graph.Node{Props: map[string]any{"uuid": "u", "id": int64(1), "name": "n", "other": true}}

			doc, err := m.MapToDocument(node)
			require.NoError(t, err)

			assert.NotContains(t, doc, keyProp)
			assert.Len(t, doc, 3)
		})
	}
}

// TS06: without forceStrings values pass through unchanged
func TestMapper_MapToDocument_NoForceStrings_KeepsTypes(t *testing.T) {
	m := newConfigured(t, map[string]string{"forceStrings": "yes"})
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rel := &graph.Relationship{
		Type: "RATED",
		Props: map[string]any{
			"uuid":   "r1",
			"stars":  4.5,
			"count":  int64(7),
			"public": true,
			"at":     ts,
			"scores": []int64{1, 2, 3},
		},
	}

	doc, err := m.MapToDocument(rel)
	require.NoError(t, err)

	assert.Equal(t, 4.5, doc["stars"])
	assert.Equal(t, int64(7), doc["count"])
	assert.Equal(t, true, doc["public"])
	assert.Equal(t, ts, doc["at"])
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, doc["scores"])
}

func TestMapper_MapToDocument_ForceStrings_ArrayOrderAndLength(t *testing.T) {
	m := newConfigured(t, map[string]string{"forceStrings": "true"})
	values := []float64{3.5, 1, 2.25, 1}

	doc, err := m.MapToDocument(&graph.Node{Props: map[string]any{"v": values}})
	require.NoError(t, err)

	got, ok := doc["v"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"3.5", "1", "2.25", "1"}, got)
}

func TestMapper_MapToDocument_ForceStrings_Time(t *testing.T) {
	m := newConfigured(t, map[string]string{"forceStrings": "true"})
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	doc, err := m.MapToDocument(&graph.Node{Props: map[string]any{"at": ts}})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z", doc["at"])
}

func TestMapper_MapToDocument_EmptyProperties(t *testing.T) {
	m := newConfigured(t, nil)

	doc, err := m.MapToDocument(&graph.Node{})
	require.NoError(t, err)
	assert.NotNil(t, doc)
	assert.Empty(t, doc)
}

func TestMapper_MapToDocument_UnsupportedValues(t *testing.T) {
	m := newConfigured(t, nil)

	tests := []struct {
		name  string
		value any
	}{
		{name: "map", value: map[string]any{"a": 1}},
		{name: "nested sequence", value: [][]string{{"a"}}},
		{name: "nil element", value: []any{"a", nil}},
		{name: "struct", value: struct{ A int }{A: 1}},
		{name: "nil", value: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.MapToDocument(&graph.Node{Props: map[string]any{"bad": tt.value}})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedValue)

			var uve *UnsupportedValueError
			require.True(t, errors.As(err, &uve))
			assert.Equal(t, "bad", uve.Property)
		})
	}
}

func TestMapper_MapToDocument_DoesNotMutateEntity(t *testing.T) {
	m := newConfigured(t, map[string]string{"forceStrings": "true"}, WithEnricher(LabelEnricher{}))
	tags := []string{"x"}
	node := &graph.Node{Labels: []string{"A"}, Props: map[string]any{"uuid": "1", "tags": tags}}

	doc, err := m.MapToDocument(node)
	require.NoError(t, err)
	doc["tags"].([]any)[0] = "changed"
	doc[FieldLabels].([]string)[0] = "changed"

	assert.Equal(t, map[string]any{"uuid": "1", "tags": []string{"x"}}, node.Props)
	assert.Equal(t, []string{"A"}, node.Labels)
}

// TS07: enrichment overrides copied properties
func TestMapper_MapToDocument_EnricherOverrides(t *testing.T) {
	// Given: an enricher that sets "type" on relationships
	enricher := EnrichFuncs{
		Relationship: func(doc Document, r *graph.Relationship) {
			doc["type"] = "Person"
		},
	}
	m := newConfigured(t, nil, WithEnricher(enricher))
	rel := &graph.Relationship{Type: "KNOWS", Props: map[string]any{"type": "original", "uuid": "r"}}

	// When: mapping
	doc, err := m.MapToDocument(rel)
	require.NoError(t, err)

	// Then: the enriched value wins
	assert.Equal(t, "Person", doc["type"])
}

func TestMapper_MapToDocument_EnricherDispatchByKind(t *testing.T) {
	var nodes, rels int
	enricher := EnrichFuncs{
		Node:         func(Document, *graph.Node) { nodes++ },
		Relationship: func(Document, *graph.Relationship) { rels++ },
	}
	m := newConfigured(t, nil, WithEnricher(enricher))

	_, err := m.MapToDocument(&graph.Node{})
	require.NoError(t, err)
	_, err = m.MapToDocument(&graph.Relationship{})
	require.NoError(t, err)
	_, err = m.MapToDocument(&graph.Node{})
	require.NoError(t, err)

	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, rels)
}

func TestMapper_MapToDocument_NilEntity(t *testing.T) {
	m := newConfigured(t, nil)

	tests := []struct {
		name   string
		entity graph.Entity
	}{
		{"untyped nil", nil},
		{"nil node", (*graph.Node)(nil)},
		{"nil relationship", (*graph.Relationship)(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := m.MapToDocument(tt.entity)
				assert.ErrorIs(t, err, ErrNilEntity)
			})
		})
	}
}

// =============================================================================
// Normalize Tests
// =============================================================================

func TestMapper_Normalize(t *testing.T) {
	plain := newConfigured(t, nil)
	forced := newConfigured(t, map[string]string{"forceStrings": "true"})

	v, err := plain.Normalize(int32(5))
	require.NoError(t, err)
	assert.Equal(t, int32(5), v)

	v, err = forced.Normalize(int32(5))
	require.NoError(t, err)
	assert.Equal(t, "5", v)

	v, err = forced.Normalize(false)
	require.NoError(t, err)
	assert.Equal(t, "false", v)

	_, err = forced.Normalize([]string{"a"})
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestMapper_BypassInclusionPolicies(t *testing.T) {
	m, err := New(PerKindIndex)
	require.NoError(t, err)
	assert.False(t, m.BypassInclusionPolicies())

	m, err = New(PerKindIndex, WithBypassInclusionPolicies(true))
	require.NoError(t, err)
	assert.True(t, m.BypassInclusionPolicies())
}
