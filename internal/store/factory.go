package store

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// Options selects and configures a backend.
type Options struct {
	// Kind is the backend implementation. Empty means bleve.
	Kind Kind

	// Path is the Bleve root directory or SQLite database file. Empty means in-memory.
	Path string

	// URL is the Weaviate server URL.
	URL string

	// Timeout bounds remote requests.
	Timeout time.Duration

	// BreakerFailures and BreakerCooldown configure the Weaviate circuit breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	Logger *slog.Logger
}

// NewBackend creates the backend named by opts.Kind.
//
// kind options:
//   - "bleve" (default): one Bleve index directory per index name
//   - "sqlite": one FTS5 table per index name in a single database
//   - "weaviate": one class per index name on a Weaviate server
func NewBackend(opts Options) (Backend, error) {
	switch opts.Kind {
	case KindBleve, "":
		return NewBleveBackend(opts.Path, opts.Logger)

	case KindSQLite:
		return NewSQLiteBackend(opts.Path)

	case KindWeaviate:
		return NewWeaviateBackend(WeaviateConfig{
			URL:             opts.URL,
			Timeout:         opts.Timeout,
			BreakerFailures: opts.BreakerFailures,
			BreakerCooldown: opts.BreakerCooldown,
			Logger:          opts.Logger,
		})

	default:
		return nil, fmt.Errorf("unknown backend: %s (valid options: bleve, sqlite, weaviate)", opts.Kind)
	}
}

// DefaultPath returns the on-disk location for a local backend under dataDir.
// Remote backends have no path.
func DefaultPath(dataDir string, kind Kind) string {
	switch kind {
	case KindSQLite:
		return filepath.Join(dataDir, "index.db")
	case KindWeaviate:
		return ""
	default:
		return filepath.Join(dataDir, "indexes")
	}
}
