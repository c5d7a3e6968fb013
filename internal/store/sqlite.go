package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteBackend keeps every index as an FTS5 virtual table in one database.
// Field values are flattened into a searchable content column; the original
// fields are stored as JSON next to it.
type SQLiteBackend struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var (
	_ Backend  = (*SQLiteBackend)(nil)
	_ Searcher = (*SQLiteBackend)(nil)
)

// NewSQLiteBackend opens (or creates) the database at path. An empty path is in-memory.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: required for :memory: and avoids writer contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	return &SQLiteBackend{db: db, path: path}, nil
}

// IndexExists checks sqlite_master for the index table.
func (s *SQLiteBackend) IndexExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}
	return s.tableExists(ctx, name)
}

// CreateIndex creates the FTS5 table for name.
func (s *SQLiteBackend) CreateIndex(ctx context.Context, name string) (CreateResult, error) {
	if err := validateIndexName(name); err != nil {
		return CreateResult{Succeeded: false, ErrorMessage: err.Error()}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return CreateResult{}, ErrClosed
	}

	exists, err := s.tableExists(ctx, name)
	if err != nil {
		return CreateResult{}, err
	}
	if exists {
		return CreateResult{Succeeded: false, ErrorMessage: alreadyExists}, nil
	}

	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE %s USING fts5(
		doc_id UNINDEXED,
		fields UNINDEXED,
		content,
		tokenize='unicode61'
	)`, quoteIdent(name))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return CreateResult{}, fmt.Errorf("failed to create index %s: %w", name, err)
	}

	return CreateResult{Succeeded: true}, nil
}

// BulkIndex replaces documents by ID inside one transaction.
// FTS5 has no REPLACE, so each document is deleted before it is inserted.
func (s *SQLiteBackend) BulkIndex(ctx context.Context, name string, docs []*Document) (*BulkResult, error) {
	result := newBulkResult()
	if len(docs) == 0 {
		return result, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	exists, err := s.tableExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	table := quoteIdent(name)
	deleteStmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE doc_id = ?`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf(`INSERT INTO %s(doc_id, fields, content) VALUES (?, ?, ?)`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer insertStmt.Close()

	for _, doc := range docs {
		fields, err := json.Marshal(doc.Fields)
		if err != nil {
			result.Failed[doc.ID] = fmt.Sprintf("encode fields: %v", err)
			continue
		}
		if _, err := deleteStmt.ExecContext(ctx, doc.ID); err != nil {
			return nil, fmt.Errorf("failed to delete existing document %s: %w", doc.ID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, doc.ID, string(fields), flattenFields(doc.Fields)); err != nil {
			return nil, fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
		result.Indexed++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return result, nil
}

// Search matches every query term (AND) and orders by BM25, best first.
func (s *SQLiteBackend) Search(ctx context.Context, name, query string, limit int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	terms := strings.Fields(query)
	if len(terms) == 0 {
		return []Hit{}, nil
	}

	exists, err := s.tableExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}

	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}

	table := quoteIdent(name)
	// bm25() is negative; lower is better.
	q := fmt.Sprintf(`SELECT doc_id, bm25(%s) AS score FROM %s WHERE %s MATCH ? ORDER BY score LIMIT ?`,
		table, table, table)

	rows, err := s.db.QueryContext(ctx, q, strings.Join(quoted, " "), limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		hits = append(hits, Hit{ID: id, Score: -score})
	}
	return hits, rows.Err()
}

// Close closes the database.
func (s *SQLiteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteBackend) tableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query schema: %w", err)
	}
	return count > 0, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// flattenFields renders field values as space-separated text in key order.
func flattenFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		appendText(&sb, fields[k])
	}
	return strings.TrimSpace(sb.String())
}

func appendText(sb *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		return
	case time.Time:
		sb.WriteString(val.Format(time.RFC3339))
	case []any:
		for _, e := range val {
			appendText(sb, e)
		}
		return
	case []string:
		for _, e := range val {
			appendText(sb, e)
		}
		return
	default:
		s, err := cast.ToStringE(val)
		if err != nil {
			s = fmt.Sprint(val)
		}
		sb.WriteString(s)
	}
	sb.WriteByte(' ')
}
