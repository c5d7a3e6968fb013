package mapping

import (
	"errors"
	"fmt"

	"github.com/Aman-CERP/graphindex/pkg/graph"
)

// IndexNamer derives the index name for an entity kind from the configured prefix.
type IndexNamer func(prefix string, kind graph.Kind) string

// PerKindIndex writes nodes to "<prefix>-node" and relationships to "<prefix>-relationship".
func PerKindIndex(prefix string, kind graph.Kind) string {
	return prefix + "-" + kind.String()
}

// SharedIndex writes nodes and relationships to the same "<prefix>" index.
func SharedIndex(prefix string, _ graph.Kind) string {
	return prefix
}

// Enricher injects or overrides document fields after the generic property copy.
type Enricher interface {
	EnrichNode(doc Document, n *graph.Node)
	EnrichRelationship(doc Document, r *graph.Relationship)
}

// NopEnricher leaves documents untouched.
type NopEnricher struct{}

func (NopEnricher) EnrichNode(Document, *graph.Node)                 {}
func (NopEnricher) EnrichRelationship(Document, *graph.Relationship) {}

// Fields written by LabelEnricher.
const (
	FieldLabels = "_labels"
	FieldType   = "_type"
)

// LabelEnricher stores node labels under "_labels" and the relationship type under "_type".
type LabelEnricher struct{}

func (LabelEnricher) EnrichNode(doc Document, n *graph.Node) {
	labels := make([]string, len(n.Labels))
	copy(labels, n.Labels)
	doc[FieldLabels] = labels
}

func (LabelEnricher) EnrichRelationship(doc Document, r *graph.Relationship) {
	doc[FieldType] = r.Type
}

// EnrichFuncs adapts plain functions to Enricher. Nil functions are no-ops.
type EnrichFuncs struct {
	Node         func(doc Document, n *graph.Node)
	Relationship func(doc Document, r *graph.Relationship)
}

func (f EnrichFuncs) EnrichNode(doc Document, n *graph.Node) {
	if f.Node != nil {
		f.Node(doc, n)
	}
}

func (f EnrichFuncs) EnrichRelationship(doc Document, r *graph.Relationship) {
	if f.Relationship != nil {
		f.Relationship(doc, r)
	}
}

// Mapper variants selectable by name.
const (
	VariantDefault  = "default"
	VariantAdvanced = "advanced"
	VariantShared   = "shared"
)

// ErrUnknownVariant is returned by NewVariant for an unrecognised name.
var ErrUnknownVariant = errors.New("unknown mapping variant")

// NewVariant builds a preset Mapper:
//   - "default" (or ""): per-kind indexes, no enrichment
//   - "advanced": per-kind indexes, labels and relationship type added
//   - "shared": one index for both kinds, labels and relationship type added
//
// Additional options are applied after the preset and may override it.
func NewVariant(name string, opts ...Option) (*Mapper, error) {
	var namer IndexNamer
	var preset []Option

	switch name {
	case VariantDefault, "":
		namer = PerKindIndex
	case VariantAdvanced:
		namer = PerKindIndex
		preset = append(preset, WithEnricher(LabelEnricher{}))
	case VariantShared:
		namer = SharedIndex
		preset = append(preset, WithEnricher(LabelEnricher{}))
	default:
		return nil, fmt.Errorf("%w: %q (valid: default, advanced, shared)", ErrUnknownVariant, name)
	}

	return New(namer, append(preset, opts...)...)
}
