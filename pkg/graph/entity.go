// Package graph defines the graph entities that are mapped into search documents.
//
// Entities are supplied by a graph store (see internal/source) and are treated as
// read-only: nothing in this module mutates their properties.
package graph

import "fmt"

// Kind distinguishes nodes from relationships.
type Kind int

const (
	// KindNode is a graph node.
	KindNode Kind = iota
	// KindRelationship is a graph relationship.
	KindRelationship
)

// Kinds lists every entity kind in provisioning order.
var Kinds = []Kind{KindNode, KindRelationship}

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindRelationship:
		return "relationship"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts "node" or "relationship" into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "node", "nodes":
		return KindNode, nil
	case "relationship", "relationships", "rel":
		return KindRelationship, nil
	default:
		return 0, fmt.Errorf("unknown entity kind %q (valid: node, relationship)", s)
	}
}

// Entity is a node or relationship: a bag of named properties.
type Entity interface {
	// Kind reports whether the entity is a node or a relationship.
	Kind() Kind

	// Properties returns the property map. Callers must not modify it.
	Properties() map[string]any
}

// Node is a graph node.
type Node struct {
	ID        int64
	ElementID string
	Labels    []string
	Props     map[string]any
}

// Kind implements Entity.
func (n *Node) Kind() Kind { return KindNode }

// Properties implements Entity. A nil node has no properties.
func (n *Node) Properties() map[string]any {
	if n == nil {
		return nil
	}
	return n.Props
}

// HasLabel reports whether the node carries label.
func (n *Node) HasLabel(label string) bool {
	if n == nil {
		return false
	}
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Relationship is a directed graph relationship.
type Relationship struct {
	ID             int64
	ElementID      string
	Type           string
	StartElementID string
	EndElementID   string
	Props          map[string]any
}

// Kind implements Entity.
func (r *Relationship) Kind() Kind { return KindRelationship }

// Properties implements Entity. A nil relationship has no properties.
func (r *Relationship) Properties() map[string]any {
	if r == nil {
		return nil
	}
	return r.Props
}

// IsNil reports whether e is nil or a nil *Node / *Relationship.
func IsNil(e Entity) bool {
	switch v := e.(type) {
	case nil:
		return true
	case *Node:
		return v == nil
	case *Relationship:
		return v == nil
	default:
		return false
	}
}

var (
	_ Entity = (*Node)(nil)
	_ Entity = (*Relationship)(nil)
)
