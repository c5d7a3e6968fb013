// Package store provides the search-index backends documents are written to:
// Bleve (default), SQLite FTS5 and Weaviate.
// This is the persistence layer for all indexed documents.
package store

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("backend is closed")

	// ErrIndexNotFound is returned when writing to or searching an index that does not exist.
	ErrIndexNotFound = errors.New("index not found")
)

// CreateResult is the outcome a backend reports for an index-creation request.
// A request that reached the backend but was refused has Succeeded false and a
// human-readable ErrorMessage; it is not a Go error.
type CreateResult struct {
	Succeeded    bool
	ErrorMessage string
}

// Document is a search document addressed by ID.
type Document struct {
	ID     string
	Fields map[string]any
}

// BulkResult summarizes a bulk write. Per-document failures do not fail the request.
type BulkResult struct {
	Indexed int
	Failed  map[string]string // document ID -> reason
}

// Hit is a single search result. Score is whatever the backend reported and may be nil.
type Hit struct {
	ID    string
	Score any
}

// Backend is the write side of a search index.
type Backend interface {
	// IndexExists reports whether the named index exists.
	IndexExists(ctx context.Context, name string) (bool, error)

	// CreateIndex creates the named index with backend defaults.
	// A refusal (including "already exists") is reported in CreateResult, not as an error.
	CreateIndex(ctx context.Context, name string) (CreateResult, error)

	// BulkIndex writes docs into the named index, replacing documents with the same ID.
	BulkIndex(ctx context.Context, name string, docs []*Document) (*BulkResult, error)

	// Close releases resources.
	Close() error
}

// Searcher is implemented by backends that can run keyword queries.
type Searcher interface {
	Search(ctx context.Context, name, query string, limit int) ([]Hit, error)
}

// Kind names a backend implementation.
type Kind string

const (
	// KindBleve uses Bleve v2 (default). One directory per index.
	KindBleve Kind = "bleve"

	// KindSQLite uses SQLite FTS5. One virtual table per index, single database file.
	KindSQLite Kind = "sqlite"

	// KindWeaviate uses a Weaviate server. One class per index.
	KindWeaviate Kind = "weaviate"
)

// alreadyExists is the refusal message local backends report for duplicate creates.
const alreadyExists = "index already exists"

func newBulkResult() *BulkResult {
	return &BulkResult{Failed: make(map[string]string)}
}
