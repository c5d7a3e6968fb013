package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/Aman-CERP/graphindex/pkg/graph"
)

// MemorySource is an in-memory Source, used in tests and for small imports.
type MemorySource struct {
	mu            sync.RWMutex
	nodes         []*graph.Node
	relationships []*graph.Relationship
}

var _ Source = (*MemorySource)(nil)

// NewMemorySource creates a source holding the given entities.
func NewMemorySource(entities ...graph.Entity) *MemorySource {
	s := &MemorySource{}
	s.Add(entities...)
	return s
}

// Add appends entities. Entities of unknown concrete types are ignored.
func (s *MemorySource) Add(entities ...graph.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		switch v := e.(type) {
		case *graph.Node:
			s.nodes = append(s.nodes, v)
		case *graph.Relationship:
			s.relationships = append(s.relationships, v)
		}
	}
}

// Walk visits entities in insertion order.
func (s *MemorySource) Walk(ctx context.Context, kind graph.Kind, fn WalkFunc) error {
	for _, e := range s.snapshot(kind) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the first entity whose property equals value.
func (s *MemorySource) Lookup(ctx context.Context, kind graph.Kind, property string, value any) (graph.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := fmt.Sprint(value)
	for _, e := range s.snapshot(kind) {
		v, ok := e.Properties()[property]
		if ok && v != nil && fmt.Sprint(v) == want {
			return e, nil
		}
	}
	return nil, ErrNotFound
}

// Close is a no-op.
func (s *MemorySource) Close() error { return nil }

func (s *MemorySource) snapshot(kind graph.Kind) []graph.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []graph.Entity
	switch kind {
	case graph.KindNode:
		out = make([]graph.Entity, 0, len(s.nodes))
		for _, n := range s.nodes {
			out = append(out, n)
		}
	case graph.KindRelationship:
		out = make([]graph.Entity, 0, len(s.relationships))
		for _, r := range s.relationships {
			out = append(out, r)
		}
	}
	return out
}
