// Package config handles edgepredict configuration via defaults, an optional
// YAML file and environment variables.
//
// Precedence, lowest to highest: DefaultConfig(), the YAML file given to
// LoadFile, EDGEPREDICT_* environment variables, then CLI flags applied by
// the caller. A .env file can seed the environment with LoadEnvFile.
//
// Example Usage:
//
//	cfg, err := config.LoadFile("edgepredict.yaml")
//	if err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return fmt.Errorf("invalid config: %w", err)
//	}
//
// Environment Variables:
//   - EDGEPREDICT_TRAINING_LIMIT=4000
//   - EDGEPREDICT_DEV_LIMIT=1000
//   - EDGEPREDICT_FEATURE_SET="full" or "jaccard" or "extended"
//   - EDGEPREDICT_NEIGHBOURS_K=10
//   - EDGEPREDICT_TIME_LIMIT=200s
//   - EDGEPREDICT_AUC_RESOLUTION=1000
//   - EDGEPREDICT_MAX_ATTEMPTS=1000000
//   - EDGEPREDICT_SEED=42
//
// For a complete list, see LoadFromEnv.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all edgepredict configuration.
//
// Configuration is organized into logical sections:
//   - Dataset: split sizes and negative sampling
//   - Features: feature set, extraction workers and cache
//   - Neighbours: top-k classifier settings
//   - Eval: ROC resolution and pass/fail thresholds
//   - Source: where edges come from (file or Neo4j)
//   - Output: where prediction files go (directory or S3)
//   - Logging, Metrics, Memory: ambient settings
type Config struct {
	Dataset    DatasetConfig    `yaml:"dataset"`
	Features   FeaturesConfig   `yaml:"features"`
	Neighbours NeighboursConfig `yaml:"neighbours"`
	Eval       EvalConfig       `yaml:"eval"`
	Source     SourceConfig     `yaml:"source"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Memory     MemoryConfig     `yaml:"memory"`
}

// DatasetConfig controls the train/dev split and fake-edge sampling.
type DatasetConfig struct {
	// TrainingLimit is the number of real edges in the training graph.
	TrainingLimit int `yaml:"training_limit"`
	// DevLimit is the number of real edges held out for validation.
	DevLimit int `yaml:"dev_limit"`
	// MaxAttempts bounds rejection sampling of fake edges.
	MaxAttempts int `yaml:"max_attempts"`
	// Pool picks fake-edge sources: "sources" or "all".
	Pool string `yaml:"pool"`
	// Seed drives the edge shuffle and sampling.
	Seed uint64 `yaml:"seed"`
}

// FeaturesConfig controls feature extraction.
type FeaturesConfig struct {
	// Set is "full" (28), "jaccard" (4) or "extended" (33).
	Set string `yaml:"set"`
	// Count, when non-zero, must match the width of Set.
	Count int `yaml:"count"`
	// Workers bounds parallel extraction.
	Workers int `yaml:"workers"`
	// CacheDir enables the badger feature cache when non-empty.
	CacheDir string `yaml:"cache_dir"`
}

// NeighboursConfig controls the top-k neighbour classifier.
type NeighboursConfig struct {
	K             int           `yaml:"k"`
	TimeLimit     time.Duration `yaml:"time_limit"`
	SnapThreshold float64       `yaml:"snap_threshold"`
}

// EvalConfig controls scoring.
type EvalConfig struct {
	// Resolution is the ROC/AUC threshold sweep size.
	Resolution  int     `yaml:"resolution"`
	MinAUC      float64 `yaml:"min_auc"`
	MinAccuracy float64 `yaml:"min_accuracy"`
}

// SourceConfig selects the edge source. Neo4jURI takes precedence over
// EdgeFile when both are set.
type SourceConfig struct {
	EdgeFile      string `yaml:"edge_file"`
	QueryFile     string `yaml:"query_file"`
	Neo4jURI      string `yaml:"neo4j_uri"`
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password"`
	Neo4jDatabase string `yaml:"neo4j_database"`
	Neo4jQuery    string `yaml:"neo4j_query"`
}

// OutputConfig controls where artefacts are written. S3Bucket switches the
// prediction store from Dir to S3.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Prefix   string `yaml:"prefix"`
	MaxFiles int    `yaml:"max_files"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
	S3Region string `yaml:"s3_region"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (DEBUG, INFO, WARN, ERROR)
	Level string `yaml:"level"`
	// Format (json, text)
	Format string `yaml:"format"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// PushgatewayURL enables pushing run metrics when non-empty.
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// MemoryConfig holds Go runtime tuning and object pooling settings.
type MemoryConfig struct {
	// RuntimeLimit is the soft memory limit (GOMEMLIMIT) in bytes
	// 0 = unlimited (Go manages automatically)
	RuntimeLimit int64 `yaml:"-"`
	// RuntimeLimitStr is the human-readable form (e.g., "2GB", "512MB")
	RuntimeLimitStr string `yaml:"runtime_limit"`
	// GCPercent controls GC aggressiveness (GOGC)
	GCPercent int `yaml:"gc_percent"`
	// PoolEnabled controls pooling of score slices and byte buffers
	PoolEnabled bool `yaml:"pool_enabled"`
	// PoolMaxSize is the largest slice capacity returned to a pool
	PoolMaxSize int `yaml:"pool_max_size"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			TrainingLimit: 4000,
			DevLimit:      1000,
			MaxAttempts:   1_000_000,
			Pool:          "sources",
			Seed:          1,
		},
		Features: FeaturesConfig{
			Set:     "full",
			Workers: 4,
		},
		Neighbours: NeighboursConfig{
			K:             10,
			TimeLimit:     200 * time.Second,
			SnapThreshold: 0.2,
		},
		Eval: EvalConfig{
			Resolution:  1000,
			MinAUC:      0.7,
			MinAccuracy: 0.6,
		},
		Source: SourceConfig{
			Neo4jUser:     "neo4j",
			Neo4jDatabase: "neo4j",
		},
		Output: OutputConfig{
			Dir:      ".",
			Prefix:   "predictions-",
			MaxFiles: 100,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Job: "edgepredict",
		},
		Memory: MemoryConfig{
			RuntimeLimitStr: "0",
			GCPercent:       100,
			PoolEnabled:     true,
			PoolMaxSize:     1 << 16,
		},
	}
}

// LoadFromEnv returns DefaultConfig with environment overrides applied.
func LoadFromEnv() *Config {
	config := DefaultConfig()
	config.applyEnv()
	return config
}

// LoadFile reads a YAML file over DefaultConfig, then applies environment
// overrides. An empty path behaves like LoadFromEnv.
func LoadFile(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	config.applyEnv()
	return config, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment. Variables that are already set are left alone.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// WriteFile writes c as YAML.
func (c *Config) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	header := []byte("# edgepredict configuration. EDGEPREDICT_* environment variables override these values.\n")
	return os.WriteFile(path, append(header, data...), 0644)
}

func (c *Config) applyEnv() {
	// Dataset
	c.Dataset.TrainingLimit = getEnvInt("EDGEPREDICT_TRAINING_LIMIT", c.Dataset.TrainingLimit)
	c.Dataset.DevLimit = getEnvInt("EDGEPREDICT_DEV_LIMIT", c.Dataset.DevLimit)
	c.Dataset.MaxAttempts = getEnvInt("EDGEPREDICT_MAX_ATTEMPTS", c.Dataset.MaxAttempts)
	c.Dataset.Pool = getEnv("EDGEPREDICT_SAMPLE_POOL", c.Dataset.Pool)
	c.Dataset.Seed = getEnvUint64("EDGEPREDICT_SEED", c.Dataset.Seed)

	// Features
	c.Features.Set = getEnv("EDGEPREDICT_FEATURE_SET", c.Features.Set)
	c.Features.Count = getEnvInt("EDGEPREDICT_FEATURE_COUNT", c.Features.Count)
	c.Features.Workers = getEnvInt("EDGEPREDICT_WORKERS", c.Features.Workers)
	c.Features.CacheDir = getEnv("EDGEPREDICT_CACHE_DIR", c.Features.CacheDir)

	// Neighbours
	c.Neighbours.K = getEnvInt("EDGEPREDICT_NEIGHBOURS_K", c.Neighbours.K)
	c.Neighbours.TimeLimit = getEnvDuration("EDGEPREDICT_TIME_LIMIT", c.Neighbours.TimeLimit)
	c.Neighbours.SnapThreshold = getEnvFloat("EDGEPREDICT_SNAP_THRESHOLD", c.Neighbours.SnapThreshold)

	// Eval
	c.Eval.Resolution = getEnvInt("EDGEPREDICT_AUC_RESOLUTION", c.Eval.Resolution)
	c.Eval.MinAUC = getEnvFloat("EDGEPREDICT_MIN_AUC", c.Eval.MinAUC)
	c.Eval.MinAccuracy = getEnvFloat("EDGEPREDICT_MIN_ACCURACY", c.Eval.MinAccuracy)

	// Source
	c.Source.EdgeFile = getEnv("EDGEPREDICT_EDGE_FILE", c.Source.EdgeFile)
	c.Source.QueryFile = getEnv("EDGEPREDICT_QUERY_FILE", c.Source.QueryFile)
	c.Source.Neo4jURI = getEnv("EDGEPREDICT_NEO4J_URI", c.Source.Neo4jURI)
	c.Source.Neo4jUser = getEnv("EDGEPREDICT_NEO4J_USER", c.Source.Neo4jUser)
	c.Source.Neo4jPassword = getEnv("EDGEPREDICT_NEO4J_PASSWORD", c.Source.Neo4jPassword)
	c.Source.Neo4jDatabase = getEnv("EDGEPREDICT_NEO4J_DATABASE", c.Source.Neo4jDatabase)
	c.Source.Neo4jQuery = getEnv("EDGEPREDICT_NEO4J_QUERY", c.Source.Neo4jQuery)

	// Output
	c.Output.Dir = getEnv("EDGEPREDICT_OUTPUT_DIR", c.Output.Dir)
	c.Output.Prefix = getEnv("EDGEPREDICT_OUTPUT_PREFIX", c.Output.Prefix)
	c.Output.MaxFiles = getEnvInt("EDGEPREDICT_MAX_FILES", c.Output.MaxFiles)
	c.Output.S3Bucket = getEnv("EDGEPREDICT_S3_BUCKET", c.Output.S3Bucket)
	c.Output.S3Prefix = getEnv("EDGEPREDICT_S3_PREFIX", c.Output.S3Prefix)
	c.Output.S3Region = getEnv("EDGEPREDICT_S3_REGION", c.Output.S3Region)

	// Logging
	c.Logging.Level = getEnv("EDGEPREDICT_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("EDGEPREDICT_LOG_FORMAT", c.Logging.Format)

	// Metrics
	c.Metrics.PushgatewayURL = getEnv("EDGEPREDICT_PUSHGATEWAY_URL", c.Metrics.PushgatewayURL)
	c.Metrics.Job = getEnv("EDGEPREDICT_METRICS_JOB", c.Metrics.Job)

	// Memory
	c.Memory.RuntimeLimitStr = getEnv("EDGEPREDICT_MEMORY_LIMIT", c.Memory.RuntimeLimitStr)
	c.Memory.RuntimeLimit = parseMemorySize(c.Memory.RuntimeLimitStr)
	c.Memory.GCPercent = getEnvInt("EDGEPREDICT_GC_PERCENT", c.Memory.GCPercent)
	c.Memory.PoolEnabled = getEnvBool("EDGEPREDICT_POOL_ENABLED", c.Memory.PoolEnabled)
	c.Memory.PoolMaxSize = getEnvInt("EDGEPREDICT_POOL_MAX_SIZE", c.Memory.PoolMaxSize)
}

// Validate checks the configuration for logical errors and invalid values.
// Every error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Dataset.TrainingLimit < 0 || c.Dataset.DevLimit < 0 {
		return invalid("split limits must not be negative (training %d, dev %d)", c.Dataset.TrainingLimit, c.Dataset.DevLimit)
	}
	if c.Dataset.MaxAttempts <= 0 {
		return invalid("max attempts must be positive: %d", c.Dataset.MaxAttempts)
	}
	switch c.Dataset.Pool {
	case "sources", "all":
	default:
		return invalid("unknown sample pool %q", c.Dataset.Pool)
	}

	if c.Features.Count < 0 {
		return invalid("feature count must not be negative: %d", c.Features.Count)
	}
	if c.Features.Workers < 0 {
		return invalid("workers must not be negative: %d", c.Features.Workers)
	}

	if c.Neighbours.K <= 0 {
		return invalid("neighbour k must be positive: %d", c.Neighbours.K)
	}
	if c.Neighbours.TimeLimit < 0 {
		return invalid("time limit must not be negative: %v", c.Neighbours.TimeLimit)
	}

	if c.Eval.Resolution <= 0 {
		return invalid("auc resolution must be positive: %d", c.Eval.Resolution)
	}

	if c.Output.MaxFiles <= 0 {
		return invalid("max files must be positive: %d", c.Output.MaxFiles)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return invalid("unknown log format %q", c.Logging.Format)
	}

	return nil
}

// String returns a safe string representation of the Config.
// The Neo4j password is never included.
func (c *Config) String() string {
	source := c.Source.EdgeFile
	if c.Source.Neo4jURI != "" {
		source = c.Source.Neo4jURI
	}
	return fmt.Sprintf(
		"Config{Train: %d, Dev: %d, Set: %s, K: %d, TimeLimit: %v, Resolution: %d, Seed: %d, Source: %s}",
		c.Dataset.TrainingLimit, c.Dataset.DevLimit,
		c.Features.Set, c.Neighbours.K, c.Neighbours.TimeLimit,
		c.Eval.Resolution, c.Dataset.Seed, source,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvUint64(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseUint(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Try parsing as seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string.
// Supports: "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited"
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// ApplyRuntimeMemory applies the runtime memory settings to the Go runtime.
// Should be called early in main() before heavy allocations.
func (c *MemoryConfig) ApplyRuntimeMemory() {
	if c.RuntimeLimit > 0 {
		debug.SetMemoryLimit(c.RuntimeLimit)
	}
	if c.GCPercent != 100 {
		debug.SetGCPercent(c.GCPercent)
	}
}
