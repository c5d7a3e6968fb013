package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/graphindex/internal/store"
	"github.com/Aman-CERP/graphindex/pkg/mapping"
)

// Config represents the complete graphindex configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Mapping MappingConfig `yaml:"mapping" json:"mapping"`
	Backend BackendConfig `yaml:"backend" json:"backend"`
	Graph   GraphConfig   `yaml:"graph" json:"graph"`
	Sync    SyncConfig    `yaml:"sync" json:"sync"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// MappingConfig configures how entities become documents.
type MappingConfig struct {
	// Variant selects the mapper preset: default, advanced or shared.
	Variant string `yaml:"variant" json:"variant"`

	// Index is the index-name prefix. Blank falls back to mapping.DefaultIndexPrefix.
	Index string `yaml:"index" json:"index"`

	// KeyProperty is the property used as document ID. Blank falls back to "uuid".
	KeyProperty string `yaml:"key_property" json:"key_property"`

	// ForceStrings stores every property value as its string representation.
	ForceStrings bool `yaml:"force_strings" json:"force_strings"`

	// BypassInclusionPolicies indexes every entity regardless of sync.node_labels
	// and sync.relationship_types.
	BypassInclusionPolicies bool `yaml:"bypass_inclusion_policies" json:"bypass_inclusion_policies"`
}

// BackendConfig configures the search backend.
type BackendConfig struct {
	// Kind is bleve (default), sqlite or weaviate.
	Kind string `yaml:"kind" json:"kind"`

	// Path is the Bleve directory or SQLite file. Empty uses the data directory.
	Path string `yaml:"path" json:"path"`

	// URL is the Weaviate endpoint.
	URL string `yaml:"url" json:"url"`

	// Timeout bounds each remote call, e.g. "30s".
	Timeout string `yaml:"timeout" json:"timeout"`

	// BreakerFailures is the consecutive failure count that opens the circuit.
	BreakerFailures int `yaml:"breaker_failures" json:"breaker_failures"`

	// BreakerCooldown is how long the circuit stays open, e.g. "30s".
	BreakerCooldown string `yaml:"breaker_cooldown" json:"breaker_cooldown"`
}

// GraphConfig configures the Neo4j connection.
type GraphConfig struct {
	URI      string `yaml:"uri" json:"uri"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
	Database string `yaml:"database" json:"database"`

	// LookupCacheSize bounds the entity cache used when resolving search matches.
	LookupCacheSize int `yaml:"lookup_cache_size" json:"lookup_cache_size"`
}

// SyncConfig configures a sync run.
type SyncConfig struct {
	BatchSize       int  `yaml:"batch_size" json:"batch_size"`
	Parallelism     int  `yaml:"parallelism" json:"parallelism"`
	ContinueOnError bool `yaml:"continue_on_error" json:"continue_on_error"`
	MaxRetries      int  `yaml:"max_retries" json:"max_retries"`

	// NodeLabels and RelationshipTypes restrict what is indexed. Empty includes all.
	NodeLabels        []string `yaml:"node_labels" json:"node_labels"`
	RelationshipTypes []string `yaml:"relationship_types" json:"relationship_types"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles   int    `yaml:"max_files" json:"max_files"`
	WriteToStd bool   `yaml:"write_to_stderr" json:"write_to_stderr"`
}

// Project config file names, .yaml first.
var projectConfigNames = []string{".graphindex.yaml", ".graphindex.yml"}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Mapping: MappingConfig{
			Variant:     mapping.VariantDefault,
			Index:       mapping.DefaultIndexPrefix,
			KeyProperty: mapping.DefaultKeyProperty,
		},
		Backend: BackendConfig{
			Kind:            string(store.KindBleve),
			URL:             "http://localhost:8080",
			Timeout:         "30s",
			BreakerFailures: 5,
			BreakerCooldown: "30s",
		},
		Graph: GraphConfig{
			URI:             "neo4j://localhost:7687",
			Username:        "neo4j",
			Database:        "neo4j",
			LookupCacheSize: 1024,
		},
		Sync: SyncConfig{
			BatchSize:   500,
			Parallelism: 2,
			MaxRetries:  3,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file.
func GetUserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "graphindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "graphindex", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// ProjectConfigPath returns the project config file in dir, or the default
// name when neither exists yet.
func ProjectConfigPath(dir string) string {
	for _, name := range projectConfigNames {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return path
		}
	}
	return filepath.Join(dir, projectConfigNames[0])
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/graphindex/config.yaml)
//  3. Project config (.graphindex.yaml in dir)
//  4. Environment variables (GRAPHINDEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path := ProjectConfigPath(dir); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML merges a YAML file into c. Keys absent from the file keep their current value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies GRAPHINDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("GRAPHINDEX_INDEX", &c.Mapping.Index)
	setString("GRAPHINDEX_KEY_PROPERTY", &c.Mapping.KeyProperty)
	setString("GRAPHINDEX_MAPPING", &c.Mapping.Variant)
	if v := os.Getenv("GRAPHINDEX_FORCE_STRINGS"); v != "" {
		c.Mapping.ForceStrings = strings.EqualFold(strings.TrimSpace(v), "true")
	}

	setString("GRAPHINDEX_BACKEND", &c.Backend.Kind)
	setString("GRAPHINDEX_BACKEND_PATH", &c.Backend.Path)
	setString("GRAPHINDEX_BACKEND_URL", &c.Backend.URL)

	setString("GRAPHINDEX_NEO4J_URI", &c.Graph.URI)
	setString("GRAPHINDEX_NEO4J_USERNAME", &c.Graph.Username)
	setString("GRAPHINDEX_NEO4J_PASSWORD", &c.Graph.Password)
	setString("GRAPHINDEX_NEO4J_DATABASE", &c.Graph.Database)

	setString("GRAPHINDEX_LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("GRAPHINDEX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.BatchSize = n
		}
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mapping.Variant) {
	case mapping.VariantDefault, mapping.VariantAdvanced, mapping.VariantShared, "":
	default:
		return fmt.Errorf("mapping.variant must be 'default', 'advanced' or 'shared', got %s", c.Mapping.Variant)
	}

	switch store.Kind(strings.ToLower(c.Backend.Kind)) {
	case store.KindBleve, store.KindSQLite:
	case store.KindWeaviate:
		if c.Backend.URL == "" {
			return fmt.Errorf("backend.url is required for the weaviate backend")
		}
	default:
		return fmt.Errorf("backend.kind must be 'bleve', 'sqlite' or 'weaviate', got %s", c.Backend.Kind)
	}

	if _, err := parseDuration("backend.timeout", c.Backend.Timeout); err != nil {
		return err
	}
	if _, err := parseDuration("backend.breaker_cooldown", c.Backend.BreakerCooldown); err != nil {
		return err
	}
	if c.Backend.BreakerFailures < 0 {
		return fmt.Errorf("backend.breaker_failures must be non-negative, got %d", c.Backend.BreakerFailures)
	}

	if c.Sync.BatchSize < 0 {
		return fmt.Errorf("sync.batch_size must be non-negative, got %d", c.Sync.BatchSize)
	}
	if c.Sync.Parallelism < 0 {
		return fmt.Errorf("sync.parallelism must be non-negative, got %d", c.Sync.Parallelism)
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync.max_retries must be non-negative, got %d", c.Sync.MaxRetries)
	}
	if c.Graph.LookupCacheSize < 0 {
		return fmt.Errorf("graph.lookup_cache_size must be non-negative, got %d", c.Graph.LookupCacheSize)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// Options returns the mapper option map. Trimming and defaulting of blank
// values is left to mapping.ParseConfig.
func (m MappingConfig) Options() map[string]string {
	return map[string]string{
		mapping.OptionIndex:        m.Index,
		mapping.OptionKeyProperty:  m.KeyProperty,
		mapping.OptionForceStrings: strconv.FormatBool(m.ForceStrings),
	}
}

// BackendTimeout returns the parsed backend timeout. Zero when unset.
func (c *Config) BackendTimeout() time.Duration {
	d, _ := parseDuration("backend.timeout", c.Backend.Timeout)
	return d
}

// BreakerCooldown returns the parsed circuit-breaker cooldown. Zero when unset.
func (c *Config) BreakerCooldown() time.Duration {
	d, _ := parseDuration("backend.breaker_cooldown", c.Backend.BreakerCooldown)
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like \"30s\", got %s", field, s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be non-negative, got %s", field, s)
	}
	return d, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
