package indexsync

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/graphindex/internal/store"
	"github.com/Aman-CERP/graphindex/pkg/graph"
	"github.com/Aman-CERP/graphindex/pkg/mapping"
)

// MockClient is an in-memory index client that records calls.
type MockClient struct {
	ExistsFn func(ctx context.Context, name string) (bool, error)
	CreateFn func(ctx context.Context, name string) (store.CreateResult, error)

	mu      sync.Mutex
	indexes map[string]bool

	existsCalled atomic.Int32
	createCalled atomic.Int32
}

func NewMockClient(existing ...string) *MockClient {
	m := &MockClient{indexes: make(map[string]bool)}
	for _, name := range existing {
		m.indexes[name] = true
	}
	return m
}

func (m *MockClient) IndexExists(ctx context.Context, name string) (bool, error) {
	m.existsCalled.Add(1)
	if m.ExistsFn != nil {
		return m.ExistsFn(ctx, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexes[name], nil
}

func (m *MockClient) CreateIndex(ctx context.Context, name string) (store.CreateResult, error) {
	m.createCalled.Add(1)
	if m.CreateFn != nil {
		return m.CreateFn(ctx, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexes[name] {
		return store.CreateResult{ErrorMessage: "index already exists"}, nil
	}
	m.indexes[name] = true
	return store.CreateResult{Succeeded: true}, nil
}

// staticResolver maps kinds to fixed names.
type staticResolver map[graph.Kind]string

func (r staticResolver) IndexFor(kind graph.Kind) (string, error) {
	name, ok := r[kind]
	if !ok {
		return "", errors.New("no index for kind")
	}
	return name, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newSync(t *testing.T, resolver IndexResolver, opts ...Option) *Synchronizer {
	t.Helper()
	s, err := New(resolver, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return s
}

func perKind() staticResolver {
	return staticResolver{graph.KindNode: "g-node", graph.KindRelationship: "g-relationship"}
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNew_NilResolver(t *testing.T) {
	s, err := New(nil)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrNilResolver)
}

func TestIndexNames_Deduplicates(t *testing.T) {
	shared := newSync(t, staticResolver{graph.KindNode: "g", graph.KindRelationship: "g"})
	names, err := shared.IndexNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"g"}, names)

	split := newSync(t, perKind())
	names, err = split.IndexNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"g-node", "g-relationship"}, names)
}

func TestIndexNames_ResolverError(t *testing.T) {
	s := newSync(t, staticResolver{graph.KindNode: "g"})
	_, err := s.IndexNames()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "relationship")
}

// =============================================================================
// EnsureIndexesExist Tests
// =============================================================================

// TS01: absent indexes are created
func TestEnsureIndexesExist_CreatesAbsent(t *testing.T) {
	// Given: no indexes
	client := NewMockClient()
	s := newSync(t, perKind())

	// When: ensuring
	report, err := s.EnsureIndexesExist(context.Background(), client)

	// Then: both indexes are created
	require.NoError(t, err)
	assert.Equal(t, Report{"g-node": StateCreated, "g-relationship": StateCreated}, report)
	assert.Equal(t, int32(2), client.createCalled.Load())
	assert.Empty(t, report.Failed())
}

// TS02: a second run creates nothing
func TestEnsureIndexesExist_Idempotent(t *testing.T) {
	client := NewMockClient()
	s := newSync(t, perKind())

	_, err := s.EnsureIndexesExist(context.Background(), client)
	require.NoError(t, err)
	creates := client.createCalled.Load()

	report, err := s.EnsureIndexesExist(context.Background(), client)
	require.NoError(t, err)

	assert.Equal(t, creates, client.createCalled.Load())
	assert.Equal(t, Report{"g-node": StateExists, "g-relationship": StateExists}, report)
}

// TS03: a shared index is checked and created once
func TestEnsureIndexesExist_SharedIndexOnce(t *testing.T) {
	client := NewMockClient()
	s := newSync(t, staticResolver{graph.KindNode: "g", graph.KindRelationship: "g"})

	report, err := s.EnsureIndexesExist(context.Background(), client)
	require.NoError(t, err)

	assert.Equal(t, int32(1), client.existsCalled.Load())
	assert.Equal(t, int32(1), client.createCalled.Load())
	assert.Equal(t, Report{"g": StateCreated}, report)
}

// TS04: a refused create is recorded and logged, not returned
func TestEnsureIndexesExist_RefusedCreate_NotFatal(t *testing.T) {
	// Given: a backend that refuses the relationship index
	var logs bytes.Buffer
	client := NewMockClient()
	client.CreateFn = func(ctx context.Context, name string) (store.CreateResult, error) {
		if name == "g-relationship" {
			return store.CreateResult{ErrorMessage: "mapping conflict"}, nil
		}
		return store.CreateResult{Succeeded: true}, nil
	}
	s, err := New(perKind(), WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	// When: ensuring
	report, err := s.EnsureIndexesExist(context.Background(), client)

	// Then: no error, the failure is in the report and the log
	require.NoError(t, err)
	assert.Equal(t, StateCreated, report["g-node"])
	assert.Equal(t, []string{"g-relationship"}, report.Failed())
	assert.Contains(t, logs.String(), "index_create_failed")
	assert.Contains(t, logs.String(), "mapping conflict")
}

// TS05: transport errors propagate
func TestEnsureIndexesExist_TransportError(t *testing.T) {
	boom := errors.New("connection refused")
	client := NewMockClient()
	client.ExistsFn = func(ctx context.Context, name string) (bool, error) {
		return false, boom
	}
	s := newSync(t, perKind(), WithParallelism(1))

	report, err := s.EnsureIndexesExist(context.Background(), client)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(0), client.createCalled.Load())
	assert.Equal(t, StateUnknown, report["g-node"])
}

func TestEnsureIndexesExist_ContinueOnError_AttemptsAll(t *testing.T) {
	boom := errors.New("timeout")
	client := NewMockClient()
	client.ExistsFn = func(ctx context.Context, name string) (bool, error) {
		if name == "g-node" {
			return false, boom
		}
		return false, nil
	}
	client.CreateFn = func(ctx context.Context, name string) (store.CreateResult, error) {
		return store.CreateResult{Succeeded: true}, nil
	}
	s := newSync(t, perKind(), WithContinueOnError(true), WithParallelism(1))

	report, err := s.EnsureIndexesExist(context.Background(), client)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateUnknown, report["g-node"])
	assert.Equal(t, StateCreated, report["g-relationship"])
}

func TestEnsureIndexesExist_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := NewMockClient()
	s := newSync(t, perKind())

	_, err := s.EnsureIndexesExist(ctx, client)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), client.existsCalled.Load())
}

func TestEnsureIndexesExist_NilClient(t *testing.T) {
	s := newSync(t, perKind())
	_, err := s.EnsureIndexesExist(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestEnsureIndexesExist_WithMapperAndBleve(t *testing.T) {
	// Given: a configured mapper and an in-memory Bleve backend
	m, err := mapping.New(mapping.PerKindIndex, mapping.WithLogger(quietLogger()))
	require.NoError(t, err)
	m.Configure(map[string]string{"index": "people"})

	backend, err := store.NewBleveBackend("", quietLogger())
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	s := newSync(t, m)

	// When: ensuring twice
	first, err := s.EnsureIndexesExist(context.Background(), backend)
	require.NoError(t, err)
	second, err := s.EnsureIndexesExist(context.Background(), backend)
	require.NoError(t, err)

	// Then: created once, then found
	assert.Equal(t, []string{"people-node", "people-relationship"}, first.Created())
	assert.Equal(t, Report{"people-node": StateExists, "people-relationship": StateExists}, second)
}

func TestEnsureIndexesExist_UnconfiguredMapper(t *testing.T) {
	m, err := mapping.New(mapping.PerKindIndex)
	require.NoError(t, err)
	s := newSync(t, m)

	_, err = s.EnsureIndexesExist(context.Background(), NewMockClient())
	assert.ErrorIs(t, err, mapping.ErrNotConfigured)
}

// =============================================================================
// EnsureIndex Tests
// =============================================================================

func TestEnsureIndex_States(t *testing.T) {
	s := newSync(t, perKind())
	ctx := context.Background()

	state, err := s.EnsureIndex(ctx, NewMockClient("x"), "x")
	require.NoError(t, err)
	assert.Equal(t, StateExists, state)

	state, err = s.EnsureIndex(ctx, NewMockClient(), "x")
	require.NoError(t, err)
	assert.Equal(t, StateCreated, state)

	createErr := errors.New("503")
	failing := NewMockClient()
	failing.CreateFn = func(context.Context, string) (store.CreateResult, error) {
		return store.CreateResult{}, createErr
	}
	state, err = s.EnsureIndex(ctx, failing, "x")
	assert.ErrorIs(t, err, createErr)
	assert.Equal(t, StateUnknown, state)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unknown", StateUnknown.String())
	assert.Equal(t, "exists", StateExists.String())
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "create_failed", StateCreateFailed.String())
}
