package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/graphindex/pkg/graph"
)

func TestIndexNamers(t *testing.T) {
	assert.Equal(t, "people-node", PerKindIndex("people", graph.KindNode))
	assert.Equal(t, "people-relationship", PerKindIndex("people", graph.KindRelationship))
	assert.Equal(t, "people", SharedIndex("people", graph.KindNode))
	assert.Equal(t, "people", SharedIndex("people", graph.KindRelationship))
}

func TestLabelEnricher(t *testing.T) {
	// Given: a node and a relationship
	node := &graph.Node{Labels: []string{"Person", "Admin"}}
	rel := &graph.Relationship{Type: "KNOWS"}

	// When: enriching empty documents
	nodeDoc := Document{}
	LabelEnricher{}.EnrichNode(nodeDoc, node)
	relDoc := Document{}
	LabelEnricher{}.EnrichRelationship(relDoc, rel)

	// Then: labels and type are added
	assert.Equal(t, []string{"Person", "Admin"}, nodeDoc[FieldLabels])
	assert.Equal(t, "KNOWS", relDoc[FieldType])
	assert.NotContains(t, relDoc, FieldLabels)
}

func TestEnrichFuncs_NilFuncsAreNoops(t *testing.T) {
	doc := Document{"a": 1}

	EnrichFuncs{}.EnrichNode(doc, &graph.Node{})
	EnrichFuncs{}.EnrichRelationship(doc, &graph.Relationship{})

	assert.Equal(t, Document{"a": 1}, doc)
}

func TestNewVariant(t *testing.T) {
	tests := []struct {
		variant   string
		nodeIndex string
		relIndex  string
		labels    bool
	}{
		{variant: "", nodeIndex: "g-node", relIndex: "g-relationship"},
		{variant: VariantDefault, nodeIndex: "g-node", relIndex: "g-relationship"},
		{variant: VariantAdvanced, nodeIndex: "g-node", relIndex: "g-relationship", labels: true},
		{variant: VariantShared, nodeIndex: "g", relIndex: "g", labels: true},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			m, err := NewVariant(tt.variant)
			require.NoError(t, err)
			m.Configure(map[string]string{"index": "g"})

			nodeIndex, err := m.IndexFor(graph.KindNode)
			require.NoError(t, err)
			relIndex, err := m.IndexFor(graph.KindRelationship)
			require.NoError(t, err)
			assert.Equal(t, tt.nodeIndex, nodeIndex)
			assert.Equal(t, tt.relIndex, relIndex)

			doc, err := m.MapToDocument(&graph.Node{Labels: []string{"L"}})
			require.NoError(t, err)
			_, hasLabels := doc[FieldLabels]
			assert.Equal(t, tt.labels, hasLabels)
		})
	}
}

func TestNewVariant_OptionsOverridePreset(t *testing.T) {
	m, err := NewVariant(VariantAdvanced, WithEnricher(nil), WithBypassInclusionPolicies(true))
	require.NoError(t, err)
	m.Configure(nil)

	doc, err := m.MapToDocument(&graph.Node{Labels: []string{"L"}})
	require.NoError(t, err)
	assert.Empty(t, doc)
	assert.True(t, m.BypassInclusionPolicies())
}

func TestNewVariant_Unknown(t *testing.T) {
	_, err := NewVariant("fancy")
	assert.ErrorIs(t, err, ErrUnknownVariant)
	assert.Contains(t, err.Error(), "fancy")
}
