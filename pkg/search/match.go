// Package search turns backend hits into typed matches and attaches the graph
// entities they refer to.
package search

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/Aman-CERP/graphindex/internal/store"
)

// ErrItemAlreadySet is returned by SetItem when an item is already attached.
var ErrItemAlreadySet = errors.New("match item already set")

// Match is one search result: the matched key, its relevance score, and the
// entity it refers to once resolved.
type Match[T any] struct {
	uuid  string
	score *float64

	mu      sync.RWMutex
	item    T
	itemSet bool
}

// NewMatch creates an unresolved match. rawScore is kept when it is numeric
// (any Go integer or float type, or json.Number); anything else yields a nil score.
func NewMatch[T any](uuid string, rawScore any) *Match[T] {
	return &Match[T]{uuid: uuid, score: toScore(rawScore)}
}

// UUID returns the matched key.
func (m *Match[T]) UUID() string {
	return m.uuid
}

// Score returns the relevance score, or nil when the backend gave none.
func (m *Match[T]) Score() *float64 {
	if m.score == nil {
		return nil
	}
	s := *m.score
	return &s
}

// Item returns the attached entity and whether one is attached.
func (m *Match[T]) Item() (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.item, m.itemSet
}

// SetItem attaches the resolved entity. It can be called once.
func (m *Match[T]) SetItem(item T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.itemSet {
		return ErrItemAlreadySet
	}
	m.item = item
	m.itemSet = true
	return nil
}

// FromHits builds unresolved matches from backend hits, preserving order.
func FromHits[T any](hits []store.Hit) []*Match[T] {
	matches := make([]*Match[T], 0, len(hits))
	for _, h := range hits {
		matches = append(matches, NewMatch[T](h.ID, h.Score))
	}
	return matches
}

func toScore(raw any) *float64 {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}
