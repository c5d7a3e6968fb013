package search

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned by a ResolveFunc when the key no longer refers to an entity.
var ErrNotFound = errors.New("entity not found")

// ResolveFunc loads the entity for a matched key.
type ResolveFunc[T any] func(ctx context.Context, uuid string) (T, error)

// Resolve attaches entities to matches using up to parallelism concurrent lookups.
// Matches that already carry an item are skipped. ErrNotFound leaves a match
// unresolved; any other error cancels the remaining lookups and is returned.
// It returns the number of matches resolved by this call.
func Resolve[T any](ctx context.Context, matches []*Match[T], resolve ResolveFunc[T], parallelism int) (int, error) {
	if resolve == nil {
		return 0, errors.New("resolve func is required")
	}
	if parallelism < 1 {
		parallelism = 1
	}

	results := make([]bool, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, m := range matches {
		if _, ok := m.Item(); ok {
			continue
		}
		g.Go(func() error {
			item, err := resolve(gctx, m.UUID())
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("resolve %s: %w", m.UUID(), err)
			}
			if err := m.SetItem(item); err != nil {
				return nil
			}
			results[i] = true
			return nil
		})
	}

	err := g.Wait()

	resolved := 0
	for _, ok := range results {
		if ok {
			resolved++
		}
	}
	return resolved, err
}
