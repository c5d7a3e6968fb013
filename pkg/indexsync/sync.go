package indexsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/graphindex/internal/store"
	"github.com/Aman-CERP/graphindex/pkg/graph"
)

var (
	// ErrNilResolver is returned by New when no IndexResolver is given.
	ErrNilResolver = errors.New("index resolver is required")

	// ErrNilClient is returned when provisioning without a client.
	ErrNilClient = errors.New("index client is required")
)

// IndexResolver names the index for each entity kind. *mapping.Mapper implements it.
type IndexResolver interface {
	IndexFor(kind graph.Kind) (string, error)
}

// Client is the index-management surface of a search backend.
type Client interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string) (store.CreateResult, error)
}

// State is the provisioning outcome for one index.
type State int

const (
	// StateUnknown means provisioning did not complete.
	StateUnknown State = iota
	// StateExists means the index was already present; nothing was written.
	StateExists
	// StateCreated means the index was absent and the backend created it.
	StateCreated
	// StateCreateFailed means the backend refused to create the index.
	StateCreateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateExists:
		return "exists"
	case StateCreated:
		return "created"
	case StateCreateFailed:
		return "create_failed"
	default:
		return "unknown"
	}
}

// Report maps index name to its provisioning state.
type Report map[string]State

// Failed returns the sorted names whose creation was refused.
func (r Report) Failed() []string {
	return r.names(StateCreateFailed)
}

// Created returns the sorted names created in this run.
func (r Report) Created() []string {
	return r.names(StateCreated)
}

func (r Report) names(want State) []string {
	var out []string
	for name, state := range r {
		if state == want {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Synchronizer provisions the indexes an IndexResolver names.
type Synchronizer struct {
	resolver        IndexResolver
	parallelism     int
	continueOnError bool
	logger          *slog.Logger
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithParallelism bounds how many indexes are provisioned concurrently. Values < 1 mean 1.
func WithParallelism(n int) Option {
	return func(s *Synchronizer) {
		if n < 1 {
			n = 1
		}
		s.parallelism = n
	}
}

// WithContinueOnError attempts every index even after a transport error; errors are joined.
func WithContinueOnError(continueOnError bool) Option {
	return func(s *Synchronizer) {
		s.continueOnError = continueOnError
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Synchronizer.
func New(resolver IndexResolver, opts ...Option) (*Synchronizer, error) {
	if resolver == nil {
		return nil, ErrNilResolver
	}

	s := &Synchronizer{
		resolver:    resolver,
		parallelism: 2,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IndexNames returns the distinct index names for nodes then relationships.
func (s *Synchronizer) IndexNames() ([]string, error) {
	seen := make(map[string]struct{}, len(graph.Kinds))
	names := make([]string, 0, len(graph.Kinds))
	for _, kind := range graph.Kinds {
		name, err := s.resolver.IndexFor(kind)
		if err != nil {
			return nil, fmt.Errorf("resolve index for %s: %w", kind, err)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

// EnsureIndexesExist provisions every distinct index name once.
// By default the first transport error cancels the remaining work and is returned;
// with WithContinueOnError every name is attempted and all errors are joined.
// The report is returned in both cases.
func (s *Synchronizer) EnsureIndexesExist(ctx context.Context, client Client) (Report, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	names, err := s.IndexNames()
	if err != nil {
		return nil, err
	}

	report := make(Report, len(names))
	for _, name := range names {
		report[name] = StateUnknown
	}

	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	if s.continueOnError {
		g = &errgroup.Group{}
		gctx = ctx
	}
	g.SetLimit(s.parallelism)

	for _, name := range names {
		g.Go(func() error {
			state, err := s.EnsureIndex(gctx, client, name)

			mu.Lock()
			report[name] = state
			if err != nil {
				errs = append(errs, err)
			}
			mu.Unlock()

			if s.continueOnError {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	if len(errs) > 0 {
		return report, errors.Join(errs...)
	}

	s.logger.Info("indexes_ensured",
		slog.Int("total", len(names)),
		slog.Int("created", len(report.Created())),
		slog.Int("failed", len(report.Failed())))
	return report, nil
}

// EnsureIndex provisions a single index: check existence, create if absent.
func (s *Synchronizer) EnsureIndex(ctx context.Context, client Client, name string) (State, error) {
	if client == nil {
		return StateUnknown, ErrNilClient
	}
	if err := ctx.Err(); err != nil {
		return StateUnknown, err
	}

	exists, err := client.IndexExists(ctx, name)
	if err != nil {
		return StateUnknown, fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		s.logger.Info("index_exists", slog.String("index", name))
		return StateExists, nil
	}

	res, err := client.CreateIndex(ctx, name)
	if err != nil {
		return StateUnknown, fmt.Errorf("create index %s: %w", name, err)
	}
	if !res.Succeeded {
		s.logger.Error("index_create_failed",
			slog.String("index", name),
			slog.String("error", res.ErrorMessage))
		return StateCreateFailed, nil
	}

	s.logger.Info("index_created", slog.String("index", name))
	return StateCreated, nil
}
