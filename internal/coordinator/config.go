package coordinator

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envPrefix is the documented prefix for environment overrides of the
// configuration table (§4.8): SIFTD_WORKER_COUNT, SIFTD_DEBOUNCE_MS, etc.
const envPrefix = "SIFTD_"

// CacheSizes holds a capacity per query-cache tier (§4.7's three-tier
// cache, §4.8's cache_sizes option). Only L1 is read, as the size passed to
// query.NewCache; L2 and L3 are parsed but nothing reads them.
type CacheSizes struct {
	L1 int `yaml:"l1" json:"l1"`
	L2 int `yaml:"l2" json:"l2"`
	L3 int `yaml:"l3" json:"l3"`
}

// Config is the coordinator's configuration, a typed struct over exactly
// the options §4.8 lists — no dynamic dict, and Load rejects unknown keys
// at parse time (§9 "Configuration objects").
type Config struct {
	// IndexRoot is where persisted state lives: <IndexRoot>/<repo_id>/index.db,
	// <IndexRoot>/<repo_id>/vectors.hnsw, <IndexRoot>/config, <IndexRoot>/cache/.
	IndexRoot string `yaml:"index_root" json:"index_root"`

	WorkerCount       int        `yaml:"worker_count" json:"worker_count"`
	DebounceMS        int        `yaml:"debounce_ms" json:"debounce_ms"`
	QueueCapacity     int        `yaml:"queue_capacity" json:"queue_capacity"`
	SemanticEnabled   bool       `yaml:"semantic_enabled" json:"semantic_enabled"`
	EmbeddingModelID  string     `yaml:"embedding_model_id" json:"embedding_model_id"`
	ChunkTokenBudget  int        `yaml:"chunk_token_budget" json:"chunk_token_budget"`
	FuzzyCandidateCap int        `yaml:"fuzzy_candidate_cap" json:"fuzzy_candidate_cap"`
	CacheSizes        CacheSizes `yaml:"cache_sizes" json:"cache_sizes"`
	IgnoreGlobs       []string   `yaml:"ignore_globs" json:"ignore_globs"`
	ParserFallback    bool       `yaml:"parser_fallback" json:"parser_fallback"`
}

// DefaultConfig returns the out-of-the-box configuration.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	root := filepath.Join(os.TempDir(), ".siftd", "index")
	if err == nil {
		root = filepath.Join(home, ".siftd", "index")
	}
	return &Config{
		IndexRoot:         root,
		WorkerCount:       4,
		DebounceMS:        200,
		QueueCapacity:     10000,
		SemanticEnabled:   true,
		EmbeddingModelID:  "static",
		ChunkTokenBudget:  400,
		FuzzyCandidateCap: 10000,
		CacheSizes:        CacheSizes{L1: 1000, L2: 0, L3: 0},
		IgnoreGlobs:       []string{".git/**", "node_modules/**", "vendor/**", "dist/**", "build/**"},
		ParserFallback:    true,
	}
}

// Load reads <IndexRoot>/config if path is empty, or the file at path
// otherwise, merging it over DefaultConfig and then environment overrides.
// An empty/missing file is not an error — Load just returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = filepath.Join(cfg.IndexRoot, "config")
	}

	if data, err := os.ReadFile(path); err == nil {
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("coordinator: parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("coordinator: read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envPrefix + "INDEX_ROOT"); v != "" {
		c.IndexRoot = v
	}
	if v, ok := envInt(envPrefix + "WORKER_COUNT"); ok {
		c.WorkerCount = v
	}
	if v, ok := envInt(envPrefix + "DEBOUNCE_MS"); ok {
		c.DebounceMS = v
	}
	if v, ok := envInt(envPrefix + "QUEUE_CAPACITY"); ok {
		c.QueueCapacity = v
	}
	if v, ok := envBool(envPrefix + "SEMANTIC_ENABLED"); ok {
		c.SemanticEnabled = v
	}
	if v := os.Getenv(envPrefix + "EMBEDDING_MODEL_ID"); v != "" {
		c.EmbeddingModelID = v
	}
	if v, ok := envInt(envPrefix + "CHUNK_TOKEN_BUDGET"); ok {
		c.ChunkTokenBudget = v
	}
	if v, ok := envInt(envPrefix + "FUZZY_CANDIDATE_CAP"); ok {
		c.FuzzyCandidateCap = v
	}
	if v, ok := envBool(envPrefix + "PARSER_FALLBACK"); ok {
		c.ParserFallback = v
	}
	if v := os.Getenv(envPrefix + "IGNORE_GLOBS"); v != "" {
		c.IgnoreGlobs = strings.Split(v, ",")
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Validate checks the configuration's internal consistency.
func (c *Config) Validate() error {
	if c.IndexRoot == "" {
		return fmt.Errorf("coordinator: index_root is required")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("coordinator: worker_count must be >= 1")
	}
	if c.DebounceMS < 0 {
		return fmt.Errorf("coordinator: debounce_ms must be >= 0")
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("coordinator: queue_capacity must be >= 1")
	}
	if c.ChunkTokenBudget < 1 {
		return fmt.Errorf("coordinator: chunk_token_budget must be >= 1")
	}
	if c.FuzzyCandidateCap < 1 {
		return fmt.Errorf("coordinator: fuzzy_candidate_cap must be >= 1")
	}
	return nil
}

// WriteYAML persists cfg to <IndexRoot>/config.
func (c *Config) WriteYAML(path string) error {
	if path == "" {
		path = filepath.Join(c.IndexRoot, "config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("coordinator: create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("coordinator: marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
