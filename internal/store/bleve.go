package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// BleveBackend keeps one Bleve index per index name.
// With a root directory each index lives in <root>/<name>.bleve; without one
// indexes are memory-only and vanish on Close.
type BleveBackend struct {
	mu      sync.RWMutex
	root    string
	indexes map[string]bleve.Index
	closed  bool
	logger  *slog.Logger
}

var (
	_ Backend  = (*BleveBackend)(nil)
	_ Searcher = (*BleveBackend)(nil)
)

// NewBleveBackend creates a Bleve backend rooted at dir. An empty dir keeps everything in memory.
func NewBleveBackend(dir string, logger *slog.Logger) (*BleveBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &BleveBackend{
		root:    dir,
		indexes: make(map[string]bleve.Index),
		logger:  logger,
	}, nil
}

func (b *BleveBackend) indexPath(name string) string {
	return filepath.Join(b.root, name+".bleve")
}

// IndexExists reports whether the index is open or present on disk.
func (b *BleveBackend) IndexExists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, ErrClosed
	}

	idx, err := b.lookupLocked(name)
	if err != nil {
		return false, err
	}
	return idx != nil, nil
}

// CreateIndex creates an index with Bleve's default mapping.
func (b *BleveBackend) CreateIndex(ctx context.Context, name string) (CreateResult, error) {
	if err := ctx.Err(); err != nil {
		return CreateResult{}, err
	}
	if err := validateIndexName(name); err != nil {
		return CreateResult{Succeeded: false, ErrorMessage: err.Error()}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return CreateResult{}, ErrClosed
	}

	existing, err := b.lookupLocked(name)
	if err != nil {
		return CreateResult{}, err
	}
	if existing != nil {
		return CreateResult{Succeeded: false, ErrorMessage: alreadyExists}, nil
	}

	var idx bleve.Index
	if b.root == "" {
		idx, err = bleve.NewMemOnly(newIndexMapping())
	} else {
		if err := b.removeCorrupted(name); err != nil {
			return CreateResult{}, err
		}
		idx, err = bleve.New(b.indexPath(name), newIndexMapping())
	}
	if err != nil {
		return CreateResult{}, fmt.Errorf("failed to create index %s: %w", name, err)
	}

	b.indexes[name] = idx
	return CreateResult{Succeeded: true}, nil
}

// BulkIndex writes docs in a single Bleve batch.
func (b *BleveBackend) BulkIndex(ctx context.Context, name string, docs []*Document) (*BulkResult, error) {
	result := newBulkResult()
	if len(docs) == 0 {
		return result, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	idx, err := b.lookupLocked(name)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}

	batch := idx.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := batch.Index(doc.ID, doc.Fields); err != nil {
			result.Failed[doc.ID] = err.Error()
			continue
		}
		result.Indexed++
	}

	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("failed to execute batch: %w", err)
	}

	return result, nil
}

// Search runs a query-string query against every field of the index.
func (b *BleveBackend) Search(ctx context.Context, name, query string, limit int) ([]Hit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	if strings.TrimSpace(query) == "" {
		return []Hit{}, nil
	}

	idx, err := b.lookupLocked(name)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}

	req := bleve.NewSearchRequest(bleve.NewQueryStringQuery(query))
	req.Size = limit

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Close closes every open index.
func (b *BleveBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	for name, idx := range b.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close index %s: %w", name, err)
		}
	}
	b.indexes = nil
	return firstErr
}

// lookupLocked returns the open index for name, opening it from disk if needed.
// A nil index with a nil error means the index does not exist.
// Corrupted on-disk indexes are reported as absent and left in place; CreateIndex replaces them.
func (b *BleveBackend) lookupLocked(name string) (bleve.Index, error) {
	if idx, ok := b.indexes[name]; ok {
		return idx, nil
	}
	if b.root == "" {
		return nil, nil
	}

	path := b.indexPath(name)
	if !dirExists(path) {
		return nil, nil
	}

	if validErr := validateIndexIntegrity(path); validErr != nil {
		b.logger.Warn("bleve_index_corrupted",
			slog.String("index", name),
			slog.String("path", path),
			slog.String("error", validErr.Error()))
		return nil, nil
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", name, err)
	}

	b.indexes[name] = idx
	return idx, nil
}

// removeCorrupted deletes whatever is left at the index path before a create.
// Callers have already established that no valid index lives there.
func (b *BleveBackend) removeCorrupted(name string) error {
	path := b.indexPath(name)
	if !dirExists(path) {
		return nil
	}
	b.logger.Warn("bleve_index_replaced", slog.String("index", name), slog.String("path", path))
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("index %s corrupted and cannot remove: %w", name, err)
	}
	return nil
}

func newIndexMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = "standard"
	return m
}

// validateIndexIntegrity checks that index_meta.json exists and parses.
func validateIndexIntegrity(path string) error {
	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// validateIndexName rejects names that cannot be used as a file or table name.
func validateIndexName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("index name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid index name %q", name)
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
