package mapping

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/Aman-CERP/graphindex/pkg/graph"
)

// MissingKey is the key returned for entities without a key-property value.
// Indexing under it is technically valid but almost always a data problem.
const MissingKey = "null"

var (
	// ErrNilIndexNamer is returned by New when no IndexNamer is given.
	ErrNilIndexNamer = errors.New("index namer is required")

	// ErrNotConfigured is returned by operations invoked before Configure.
	ErrNotConfigured = errors.New("mapper is not configured")

	// ErrNilEntity is returned when a nil entity is mapped.
	ErrNilEntity = errors.New("entity cannot be nil")
)

// Document is a search document: field name to normalized value.
type Document map[string]any

// Mapper converts entities to documents and names their indexes.
type Mapper struct {
	namer    IndexNamer
	enricher Enricher
	bypass   bool
	logger   *slog.Logger

	config atomic.Pointer[Config]
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithEnricher sets the enrichment hook run after the property copy.
// A nil enricher restores the no-op default.
func WithEnricher(e Enricher) Option {
	return func(m *Mapper) {
		if e == nil {
			e = NopEnricher{}
		}
		m.enricher = e
	}
}

// WithBypassInclusionPolicies marks the mapper's documents as exempt from inclusion policies.
func WithBypassInclusionPolicies(bypass bool) Option {
	return func(m *Mapper) {
		m.bypass = bypass
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Mapper) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates an unconfigured Mapper. Configure must be called before use.
//
// Returns ErrNilIndexNamer if namer is nil.
func New(namer IndexNamer, opts ...Option) (*Mapper, error) {
	if namer == nil {
		return nil, ErrNilIndexNamer
	}

	m := &Mapper{
		namer:    namer,
		enricher: NopEnricher{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Configure resolves options (see ParseConfig) and fixes the configuration.
// It never fails. Only the first call takes effect; later calls are logged and ignored.
func (m *Mapper) Configure(options map[string]string) {
	cfg := ParseConfig(options)
	if !m.config.CompareAndSwap(nil, &cfg) {
		m.logger.Warn("mapping_reconfigure_ignored",
			slog.String("index_prefix", m.config.Load().IndexPrefix))
		return
	}

	m.logger.Info("mapping_configured",
		slog.String("index_prefix", cfg.IndexPrefix),
		slog.String("key_property", cfg.KeyProperty),
		slog.Bool("force_strings", cfg.ForceStrings))
}

// Config returns the resolved configuration.
func (m *Mapper) Config() (Config, error) {
	cfg := m.config.Load()
	if cfg == nil {
		return Config{}, ErrNotConfigured
	}
	return *cfg, nil
}

// KeyProperty returns the property used as document ID.
func (m *Mapper) KeyProperty() (string, error) {
	cfg, err := m.Config()
	if err != nil {
		return "", err
	}
	return cfg.KeyProperty, nil
}

// Key returns the string form of the entity's key-property value.
// A missing or nil value yields MissingKey ("null") rather than an error.
func (m *Mapper) Key(e graph.Entity) (string, error) {
	cfg, err := m.Config()
	if err != nil {
		return "", err
	}
	if graph.IsNil(e) {
		return "", ErrNilEntity
	}

	v, ok := e.Properties()[cfg.KeyProperty]
	if !ok || v == nil {
		m.logger.Debug("mapping_key_missing",
			slog.String("key_property", cfg.KeyProperty),
			slog.String("kind", e.Kind().String()))
		return MissingKey, nil
	}

	return stringValue(v), nil
}

// MapToDocument copies every property except the key property into a new Document.
// Sequences are rebuilt element by element through Normalize and always come back
// as []any, whatever the source slice type; scalars are normalized directly.
// The enricher runs last, so its fields win over copied ones.
func (m *Mapper) MapToDocument(e graph.Entity) (Document, error) {
	cfg, err := m.Config()
	if err != nil {
		return nil, err
	}
	if graph.IsNil(e) {
		return nil, ErrNilEntity
	}

	props := e.Properties()
	doc := make(Document, len(props))
	for name, value := range props {
		if name == cfg.KeyProperty {
			continue
		}

		normalized, err := normalizeProperty(cfg, name, value)
		if err != nil {
			return nil, err
		}
		doc[name] = normalized
	}

	switch ent := e.(type) {
	case *graph.Node:
		m.enricher.EnrichNode(doc, ent)
	case *graph.Relationship:
		m.enricher.EnrichRelationship(doc, ent)
	}

	return doc, nil
}

// Normalize returns v unchanged, or its string representation when ForceStrings is set.
// Only scalars are accepted; sequences must be normalized element by element.
func (m *Mapper) Normalize(v any) (any, error) {
	cfg, err := m.Config()
	if err != nil {
		return nil, err
	}
	return normalizeScalar(cfg, "", v)
}

// IndexFor returns the index that entities of the given kind are written to.
func (m *Mapper) IndexFor(kind graph.Kind) (string, error) {
	cfg, err := m.Config()
	if err != nil {
		return "", err
	}
	return m.namer(cfg.IndexPrefix, kind), nil
}

// BypassInclusionPolicies reports whether documents from this mapper skip inclusion policies.
func (m *Mapper) BypassInclusionPolicies() bool {
	return m.bypass
}

func normalizeProperty(cfg Config, name string, value any) (any, error) {
	elems, ok := sequence(value)
	if !ok {
		return normalizeScalar(cfg, name, value)
	}

	out := make([]any, len(elems))
	for i, elem := range elems {
		if _, nested := sequence(elem); nested {
			return nil, &UnsupportedValueError{Property: name, Value: value, Reason: "nested sequence"}
		}
		v, err := normalizeScalar(cfg, name, elem)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func normalizeScalar(cfg Config, name string, value any) (any, error) {
	if !isScalar(value) {
		reason := "not a scalar"
		if value == nil {
			reason = "nil value"
		}
		return nil, &UnsupportedValueError{Property: name, Value: value, Reason: reason}
	}
	if cfg.ForceStrings {
		return stringValue(value), nil
	}
	return value, nil
}
