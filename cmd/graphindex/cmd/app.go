package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/graphindex/internal/config"
	gierrors "github.com/Aman-CERP/graphindex/internal/errors"
	"github.com/Aman-CERP/graphindex/internal/logging"
	"github.com/Aman-CERP/graphindex/internal/source"
	"github.com/Aman-CERP/graphindex/internal/store"
	"github.com/Aman-CERP/graphindex/pkg/indexsync"
	"github.com/Aman-CERP/graphindex/pkg/mapping"
)

// openSource connects to the graph database. Tests replace it.
var openSource = func(ctx context.Context, cfg config.GraphConfig) (source.Source, error) {
	src, err := source.NewNeo4jSource(source.Neo4jConfig{
		URI:      cfg.URI,
		Username: cfg.Username,
		Password: cfg.Password,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, gierrors.ConfigError("invalid graph connection settings", err)
	}
	if err := src.Verify(ctx); err != nil {
		_ = src.Close()
		return nil, gierrors.GraphError(fmt.Sprintf("cannot reach neo4j at %s", cfg.URI), err).
			WithSuggestion("check graph.uri and credentials, or set GRAPHINDEX_NEO4J_URI")
	}
	return src, nil
}

// app is the per-command wiring: configuration, logger and data directory.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	dataDir string
	cleanup func()
}

// newApp loads configuration from opts.configDir and builds the logger.
// With --debug, logs also go to ~/.graphindex/logs/graphindex.log.
func newApp(opts *rootOptions) (*app, error) {
	dir := opts.configDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = wd
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, gierrors.ConfigError("failed to load configuration", err).
			WithSuggestion("run 'graphindex config show --source defaults' to compare with the defaults")
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: cfg.Logging.WriteToStd,
	}
	if opts.debug {
		logCfg.Level = "debug"
		logCfg.FilePath = logging.DefaultLogPath()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		dataDir: defaultDataDir(),
		cleanup: cleanup,
	}, nil
}

func (a *app) Close() {
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".graphindex", "data")
	}
	return filepath.Join(home, ".graphindex", "data")
}

func (a *app) backendKind() store.Kind {
	return store.Kind(strings.ToLower(a.cfg.Backend.Kind))
}

// openBackend creates the configured backend. Local backends are guarded by a
// directory lock held until the returned release func runs.
func (a *app) openBackend() (store.Backend, func(), error) {
	kind := a.backendKind()
	path := a.cfg.Backend.Path
	if path == "" {
		path = store.DefaultPath(a.dataDir, kind)
	}

	var lock *store.DirLock
	if kind != store.KindWeaviate {
		lockDir := path
		if kind == store.KindSQLite {
			lockDir = filepath.Dir(path)
		}
		lock = store.NewDirLock(lockDir)
		if err := lock.TryLock(); err != nil {
			if errors.Is(err, store.ErrLocked) {
				return nil, nil, gierrors.New(gierrors.ErrCodeIndexLocked, "index directory is locked", err).
					WithDetail("path", lockDir).
					WithSuggestion("wait for the other graphindex process to finish")
			}
			return nil, nil, gierrors.New(gierrors.ErrCodePermission, "cannot lock index directory", err)
		}
	}

	backend, err := store.NewBackend(store.Options{
		Kind:            kind,
		Path:            path,
		URL:             a.cfg.Backend.URL,
		Timeout:         a.cfg.BackendTimeout(),
		BreakerFailures: uint32(a.cfg.Backend.BreakerFailures),
		BreakerCooldown: a.cfg.BreakerCooldown(),
		Logger:          a.logger,
	})
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, nil, gierrors.New(gierrors.ErrCodeBackendUnavailable, "failed to open search backend", err)
	}

	a.logger.Debug("backend_opened", slog.String("kind", string(kind)), slog.String("path", path))

	release := func() {
		if err := backend.Close(); err != nil {
			a.logger.Warn("backend_close_failed", slog.String("error", err.Error()))
		}
		if lock != nil {
			_ = lock.Unlock()
		}
	}
	return backend, release, nil
}

// newMapper builds and configures the mapper for the configured variant.
func (a *app) newMapper() (*mapping.Mapper, error) {
	m, err := mapping.NewVariant(strings.ToLower(a.cfg.Mapping.Variant),
		mapping.WithBypassInclusionPolicies(a.cfg.Mapping.BypassInclusionPolicies),
		mapping.WithLogger(a.logger),
	)
	if err != nil {
		return nil, gierrors.New(gierrors.ErrCodeUnknownVariant, "unknown mapping variant", err)
	}
	m.Configure(a.cfg.Mapping.Options())
	return m, nil
}

func (a *app) newSynchronizer(m *mapping.Mapper) (*indexsync.Synchronizer, error) {
	return indexsync.New(m,
		indexsync.WithParallelism(a.cfg.Sync.Parallelism),
		indexsync.WithContinueOnError(a.cfg.Sync.ContinueOnError),
		indexsync.WithLogger(a.logger),
	)
}
