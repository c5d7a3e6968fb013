package source

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/graphindex/pkg/graph"
)

// DefaultLookupCacheSize is the default number of lookups to cache.
const DefaultLookupCacheSize = 1024

// CachedSource wraps a Source with an LRU cache for Lookup.
// Walk is passed through uncached. Misses (ErrNotFound) are not cached.
type CachedSource struct {
	inner Source
	cache *lru.Cache[string, graph.Entity]
}

var _ Source = (*CachedSource)(nil)

// NewCachedSource wraps inner. A non-positive size uses DefaultLookupCacheSize.
func NewCachedSource(inner Source, size int) *CachedSource {
	if size <= 0 {
		size = DefaultLookupCacheSize
	}
	cache, _ := lru.New[string, graph.Entity](size)
	return &CachedSource{inner: inner, cache: cache}
}

// Walk delegates to the wrapped source.
func (c *CachedSource) Walk(ctx context.Context, kind graph.Kind, fn WalkFunc) error {
	return c.inner.Walk(ctx, kind, fn)
}

// Lookup returns a cached entity if available, otherwise queries and caches.
func (c *CachedSource) Lookup(ctx context.Context, kind graph.Kind, property string, value any) (graph.Entity, error) {
	key := fmt.Sprintf("%s\x00%s\x00%v", kind, property, value)
	if e, ok := c.cache.Get(key); ok {
		return e, nil
	}

	e, err := c.inner.Lookup(ctx, kind, property, value)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, e)
	return e, nil
}

// Len returns the number of cached lookups.
func (c *CachedSource) Len() int {
	return c.cache.Len()
}

// Close purges the cache and closes the wrapped source.
func (c *CachedSource) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
