package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/spf13/cast"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// KeyProperty is the Weaviate property holding the document ID.
// Object IDs must be UUIDs, so the ID is derived and the key kept alongside.
const KeyProperty = "graphKey"

// WeaviateConfig configures the Weaviate backend.
type WeaviateConfig struct {
	// URL is the Weaviate server URL (e.g., "http://localhost:8080").
	URL string

	// Timeout bounds each HTTP request.
	// Default: 30s
	Timeout time.Duration

	// BreakerFailures is the number of consecutive failures that opens the breaker.
	// Default: 5
	BreakerFailures uint32

	// BreakerCooldown is how long the breaker stays open before half-opening.
	// Default: 30s
	BreakerCooldown time.Duration

	// Logger for backend operations.
	// Default: slog.Default()
	Logger *slog.Logger
}

func (c *WeaviateConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// WeaviateBackend maps each index to a Weaviate class. Every call runs behind a
// circuit breaker; refusals reported by the server do not trip it.
type WeaviateBackend struct {
	mu     sync.RWMutex
	client *weaviate.Client
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
	closed bool

	// claims maps a class name to the index name that first used it.
	claims map[string]string
}

var (
	_ Backend  = (*WeaviateBackend)(nil)
	_ Searcher = (*WeaviateBackend)(nil)
)

// NewWeaviateBackend creates a backend for the server at cfg.URL.
func NewWeaviateBackend(cfg WeaviateConfig) (*WeaviateBackend, error) {
	cfg.applyDefaults()

	host, scheme, err := splitURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:             host,
		Scheme:           scheme,
		ConnectionClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	logger := cfg.Logger.With(slog.String("component", "weaviate_backend"))
	st := gobreaker.Settings{
		Name:    "weaviate",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isRefusal(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_breaker_state_change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &WeaviateBackend{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(st),
		logger: logger,
		claims: make(map[string]string),
	}, nil
}

// IndexExists checks whether the index's class is in the schema.
func (w *WeaviateBackend) IndexExists(ctx context.Context, name string) (bool, error) {
	if err := w.checkOpen(); err != nil {
		return false, err
	}

	className := ClassName(name)
	if owner := w.claimedBy(className); owner != "" && owner != name {
		return false, nil
	}

	res, err := w.cb.Execute(func() (interface{}, error) {
		return w.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
	})
	if err != nil {
		return false, fmt.Errorf("check class %s: %w", className, err)
	}
	exists := res.(bool)
	if exists {
		w.claim(className, name)
	}
	return exists, nil
}

// CreateIndex creates the class with vectorization disabled. Properties beyond the
// key are added by Weaviate's auto-schema on first write.
func (w *WeaviateBackend) CreateIndex(ctx context.Context, name string) (CreateResult, error) {
	if err := w.checkOpen(); err != nil {
		return CreateResult{}, err
	}

	className := ClassName(name)
	if owner, ok := w.claim(className, name); !ok {
		w.logger.Warn("class_name_collision",
			slog.String("index", name),
			slog.String("class", className),
			slog.String("claimed_by", owner))
		return CreateResult{
			Succeeded:    false,
			ErrorMessage: fmt.Sprintf("class %s is already used by index %s", className, owner),
		}, nil
	}

	class := &models.Class{
		Class:       className,
		Description: fmt.Sprintf("Search documents for index %s", name),
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: KeyProperty, DataType: []string{"text"}, Description: "Graph entity key"},
		},
	}

	_, err := w.cb.Execute(func() (interface{}, error) {
		return nil, w.client.Schema().ClassCreator().WithClass(class).Do(ctx)
	})
	if err == nil {
		return CreateResult{Succeeded: true}, nil
	}

	var werr *fault.WeaviateClientError
	if errors.As(err, &werr) && isRefusal(werr) {
		return CreateResult{
			Succeeded:    false,
			ErrorMessage: fmt.Sprintf("status %d: %s", werr.StatusCode, werr.Msg),
		}, nil
	}
	return CreateResult{}, fmt.Errorf("create class %s: %w", class.Class, err)
}

// BulkIndex writes docs with the objects batcher. Per-object errors are collected in the result.
func (w *WeaviateBackend) BulkIndex(ctx context.Context, name string, docs []*Document) (*BulkResult, error) {
	result := newBulkResult()
	if len(docs) == 0 {
		return result, nil
	}
	if err := w.checkOpen(); err != nil {
		return nil, err
	}

	className := ClassName(name)
	if owner := w.claimedBy(className); owner != "" && owner != name {
		return nil, fmt.Errorf("%w: %s (class %s belongs to index %s)", ErrIndexNotFound, name, className, owner)
	}

	keys := make(map[strfmt.UUID]string, len(docs))
	objects := make([]*models.Object, 0, len(docs))
	for _, doc := range docs {
		props, err := objectProperties(doc)
		if err != nil {
			result.Failed[doc.ID] = err.Error()
			continue
		}
		id := ObjectID(name, doc.ID)
		keys[id] = doc.ID
		objects = append(objects, &models.Object{
			Class:      className,
			ID:         id,
			Properties: props,
		})
	}
	if len(objects) == 0 {
		return result, nil
	}

	res, err := w.cb.Execute(func() (interface{}, error) {
		return w.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("batch import into %s: %w", className, err)
	}

	for _, obj := range res.([]models.ObjectsGetResponse) {
		key := keys[obj.ID]
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			result.Failed[key] = obj.Result.Errors.Error[0].Message
			continue
		}
		result.Indexed++
	}

	return result, nil
}

// Search runs a BM25 query against the index's class.
func (w *WeaviateBackend) Search(ctx context.Context, name, query string, limit int) ([]Hit, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return []Hit{}, nil
	}

	className := ClassName(name)
	fields := []graphql.Field{
		{Name: KeyProperty},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "score"}}},
	}

	res, err := w.cb.Execute(func() (interface{}, error) {
		return w.client.GraphQL().Get().
			WithClassName(className).
			WithFields(fields...).
			WithBM25(w.client.GraphQL().Bm25ArgBuilder().WithQuery(query)).
			WithLimit(limit).
			Do(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", className, err)
	}

	resp := res.(*models.GraphQLResponse)
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("search %s: %s", className, resp.Errors[0].Message)
	}
	return parseHits(resp.Data, className), nil
}

// Close marks the backend closed. The HTTP client holds no resources that need releasing.
func (w *WeaviateBackend) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// claim records name as the owner of className. It reports the existing owner
// and false when a different index already holds the class.
func (w *WeaviateBackend) claim(className, name string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if owner, ok := w.claims[className]; ok && owner != name {
		return owner, false
	}
	w.claims[className] = name
	return name, true
}

func (w *WeaviateBackend) claimedBy(className string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.claims[className]
}

func (w *WeaviateBackend) checkOpen() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	return nil
}

// ClassName converts an index name into a valid Weaviate class name:
// non-alphanumeric runs split words, each word is capitalized, and a
// leading digit gets an "Index" prefix. "neo4j-index-node" becomes "Neo4jIndexNode".
func ClassName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var sb strings.Builder
	for _, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		sb.WriteString(string(runes))
	}

	out := sb.String()
	if out == "" || unicode.IsDigit([]rune(out)[0]) {
		out = "Index" + out
	}
	return out
}

// ObjectID derives a stable object UUID from the index name and document ID.
func ObjectID(index, docID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(index+"/"+docID)).String())
}

// PropertyName makes a document field name valid for Weaviate (/[_A-Za-z][_0-9A-Za-z]*/).
func PropertyName(field string) string {
	var sb strings.Builder
	for i, r := range field {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || r == '_'):
			sb.WriteRune(r)
		case r < unicode.MaxASCII && unicode.IsDigit(r):
			if i == 0 {
				sb.WriteRune('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}

// objectProperties builds the object's property map. Fields whose sanitized
// names collide with each other or with the key property are rejected.
func objectProperties(doc *Document) (map[string]interface{}, error) {
	fields := make([]string, 0, len(doc.Fields))
	for k := range doc.Fields {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	props := make(map[string]interface{}, len(doc.Fields)+1)
	origin := make(map[string]string, len(doc.Fields))
	for _, k := range fields {
		prop := PropertyName(k)
		if prop == KeyProperty {
			return nil, fmt.Errorf("field %q collides with key property %s", k, KeyProperty)
		}
		if prev, ok := origin[prop]; ok {
			return nil, fmt.Errorf("fields %q and %q both map to property %s", prev, k, prop)
		}
		origin[prop] = k

		v := doc.Fields[k]
		if t, ok := v.(time.Time); ok {
			v = t.Format(time.RFC3339Nano)
		}
		props[prop] = v
	}
	props[KeyProperty] = doc.ID
	return props, nil
}

func parseHits(data map[string]models.JSONObject, className string) []Hit {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return []Hit{}
	}
	objects, ok := get[className].([]interface{})
	if !ok {
		return []Hit{}
	}

	hits := make([]Hit, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		key, _ := m[KeyProperty].(string)
		var score any
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			score = additional["score"]
			// BM25 scores arrive as strings.
			if s, ok := score.(string); ok {
				if f, err := cast.ToFloat64E(s); err == nil {
					score = f
				}
			}
		}
		hits = append(hits, Hit{ID: key, Score: score})
	}
	return hits
}

// isRefusal reports whether err is the server answering with a client-side status
// (4xx): the request arrived and was rejected, so the transport is healthy.
func isRefusal(err error) bool {
	var werr *fault.WeaviateClientError
	if !errors.As(err, &werr) {
		return false
	}
	return werr.IsUnexpectedStatusCode && werr.StatusCode >= 400 && werr.StatusCode < 500
}

func splitURL(raw string) (host, scheme string, err error) {
	if strings.TrimSpace(raw) == "" {
		return "", "", fmt.Errorf("weaviate url must not be empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid weaviate url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("invalid weaviate url %q: missing host", raw)
	}
	return u.Host, u.Scheme, nil
}
