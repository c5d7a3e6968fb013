// Package source reads graph entities from a graph store.
package source

import (
	"context"

	"github.com/Aman-CERP/graphindex/pkg/graph"
	"github.com/Aman-CERP/graphindex/pkg/search"
)

// ErrNotFound is returned by Lookup when no entity matches.
// It is search.ErrNotFound so lookups can back search.Resolve directly.
var ErrNotFound = search.ErrNotFound

// WalkFunc is called for each entity. Returning an error stops the walk.
type WalkFunc func(e graph.Entity) error

// Source is a read-only view of a property graph.
type Source interface {
	// Walk calls fn for every entity of the given kind.
	Walk(ctx context.Context, kind graph.Kind, fn WalkFunc) error

	// Lookup returns the first entity of kind whose property equals value.
	Lookup(ctx context.Context, kind graph.Kind, property string, value any) (graph.Entity, error)

	// Close releases resources.
	Close() error
}
