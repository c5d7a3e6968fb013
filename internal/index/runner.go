// Package index provides the sync Runner: it provisions indexes, walks the
// graph, maps entities to documents and bulk-writes them to the backend.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	gierrors "github.com/Aman-CERP/graphindex/internal/errors"
	"github.com/Aman-CERP/graphindex/internal/source"
	"github.com/Aman-CERP/graphindex/internal/store"
	"github.com/Aman-CERP/graphindex/internal/telemetry"
	"github.com/Aman-CERP/graphindex/pkg/graph"
	"github.com/Aman-CERP/graphindex/pkg/indexsync"
	"github.com/Aman-CERP/graphindex/pkg/mapping"
)

// DefaultBatchSize is the number of documents per bulk write.
const DefaultBatchSize = 500

// Mapper is the part of *mapping.Mapper the Runner uses.
type Mapper interface {
	Key(e graph.Entity) (string, error)
	MapToDocument(e graph.Entity) (mapping.Document, error)
	IndexFor(kind graph.Kind) (string, error)
	BypassInclusionPolicies() bool
}

// InclusionPolicy selects which entities are indexed.
// An empty list includes every entity of that kind.
type InclusionPolicy struct {
	NodeLabels        []string
	RelationshipTypes []string
}

// Includes reports whether e passes the policy. A node passes if it carries any listed label.
func (p InclusionPolicy) Includes(e graph.Entity) bool {
	switch v := e.(type) {
	case *graph.Node:
		if len(p.NodeLabels) == 0 {
			return true
		}
		for _, label := range p.NodeLabels {
			if v.HasLabel(label) {
				return true
			}
		}
		return false
	case *graph.Relationship:
		return len(p.RelationshipTypes) == 0 || slices.Contains(p.RelationshipTypes, v.Type)
	default:
		return true
	}
}

// RunnerConfig configures a sync run.
type RunnerConfig struct {
	// BatchSize is the number of documents per bulk write. Default: 500.
	BatchSize int

	// Retry configures bulk-write retries.
	Retry gierrors.RetryConfig

	// Policy restricts which entities are indexed unless the mapper bypasses policies.
	Policy InclusionPolicy
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	Backend      store.Backend
	Source       source.Source
	Mapper       Mapper
	Synchronizer *indexsync.Synchronizer

	// Metrics is optional.
	Metrics *telemetry.SyncMetrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Stats is the outcome of a sync run.
type Stats struct {
	Indexes  indexsync.Report
	Seen     int
	Excluded int
	Skipped  int
	Indexed  int
	Failed   int
	Duration time.Duration
}

// Runner executes sync runs.
type Runner struct {
	backend store.Backend
	source  source.Source
	mapper  Mapper
	sync    *indexsync.Synchronizer
	metrics *telemetry.SyncMetrics
	logger  *slog.Logger
	cfg     RunnerConfig
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies, cfg RunnerConfig) (*Runner, error) {
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if deps.Mapper == nil {
		return nil, fmt.Errorf("mapper is required")
	}
	if deps.Synchronizer == nil {
		return nil, fmt.Errorf("synchronizer is required")
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = gierrors.DefaultRetryConfig()
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		backend: deps.Backend,
		source:  deps.Source,
		mapper:  deps.Mapper,
		sync:    deps.Synchronizer,
		metrics: deps.Metrics,
		logger:  logger,
		cfg:     cfg,
	}, nil
}

// Ensure provisions the indexes without writing documents.
func (r *Runner) Ensure(ctx context.Context) (indexsync.Report, error) {
	report, err := r.sync.EnsureIndexesExist(ctx, r.backend)
	for _, state := range report {
		r.metrics.RecordIndexState(state.String())
	}
	return report, err
}

// Run provisions indexes, then indexes every included entity of every kind.
// Entities that cannot be mapped are skipped; documents the backend rejects are
// counted as failed. Only provisioning and transport errors abort the run.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()

	report, err := r.Ensure(ctx)
	if err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	stats := &Stats{Indexes: report}
	for _, kind := range graph.Kinds {
		if err := r.syncKind(ctx, kind, stats); err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}
	}

	stats.Duration = time.Since(start)
	r.metrics.RecordRun(time.Now(), stats.Duration)
	r.logger.Info("sync_complete",
		slog.Int("seen", stats.Seen),
		slog.Int("excluded", stats.Excluded),
		slog.Int("skipped", stats.Skipped),
		slog.Int("indexed", stats.Indexed),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

func (r *Runner) syncKind(ctx context.Context, kind graph.Kind, stats *Stats) error {
	index, err := r.mapper.IndexFor(kind)
	if err != nil {
		return err
	}

	bypass := r.mapper.BypassInclusionPolicies()
	batch := make([]*store.Document, 0, r.cfg.BatchSize)
	var seen, excluded, skipped int

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		indexed, failed, err := r.flush(ctx, index, batch)
		stats.Indexed += indexed
		stats.Failed += failed
		r.metrics.RecordDocuments(kind.String(), telemetry.OutcomeIndexed, indexed)
		r.metrics.RecordDocuments(kind.String(), telemetry.OutcomeFailed, failed)
		batch = batch[:0]
		return err
	}

	err = r.source.Walk(ctx, kind, func(e graph.Entity) error {
		seen++
		if !bypass && !r.cfg.Policy.Includes(e) {
			excluded++
			return nil
		}

		key, err := r.mapper.Key(e)
		if err != nil {
			return err
		}
		doc, err := r.mapper.MapToDocument(e)
		if err != nil {
			if errors.Is(err, mapping.ErrNotConfigured) {
				return err
			}
			skipped++
			r.logger.Warn("entity_skipped",
				slog.String("kind", kind.String()),
				slog.String("key", key),
				slog.String("error", err.Error()))
			return nil
		}

		batch = append(batch, &store.Document{ID: key, Fields: doc})
		if len(batch) >= r.cfg.BatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}

	stats.Seen += seen
	stats.Excluded += excluded
	stats.Skipped += skipped
	r.metrics.RecordDocuments(kind.String(), telemetry.OutcomeExcluded, excluded)
	r.metrics.RecordDocuments(kind.String(), telemetry.OutcomeSkipped, skipped)

	if err != nil {
		return fmt.Errorf("sync %s: %w", kind, err)
	}
	r.logger.Info("kind_synced",
		slog.String("kind", kind.String()),
		slog.String("index", index),
		slog.Int("seen", seen))
	return nil
}

// flush writes one batch with retries. A missing index fails the batch without aborting.
func (r *Runner) flush(ctx context.Context, index string, docs []*store.Document) (indexed, failed int, err error) {
	start := time.Now()
	res, err := gierrors.RetryWithResult(ctx, r.cfg.Retry, func() (*store.BulkResult, error) {
		res, err := r.backend.BulkIndex(ctx, index, docs)
		if errors.Is(err, store.ErrIndexNotFound) || errors.Is(err, store.ErrClosed) {
			return nil, gierrors.Permanent(err)
		}
		return res, err
	})
	r.metrics.RecordBatch(index, time.Since(start), err)

	if errors.Is(err, store.ErrIndexNotFound) {
		r.logger.Error("batch_failed",
			slog.String("index", index),
			slog.Int("documents", len(docs)),
			slog.String("error", err.Error()))
		return 0, len(docs), nil
	}
	if err != nil {
		return 0, 0, gierrors.BackendError(fmt.Sprintf("bulk write to %s failed", index), err)
	}

	for id, reason := range res.Failed {
		r.logger.Warn("document_rejected",
			slog.String("index", index),
			slog.String("key", id),
			slog.String("error", reason))
	}
	return res.Indexed, len(res.Failed), nil
}
