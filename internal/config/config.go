package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the mizan retrieval service configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// DatabaseConfig holds corpus store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	Backend    string `yaml:"backend"` // "sentence" (API) or "meanpool" (local, deterministic)
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
	PoolSize   int    `yaml:"pool_size"` // meanpool batch workers, 0 = NumCPU/2
}

// RetrievalConfig holds the scoring and selection knobs.
type RetrievalConfig struct {
	Alpha             float64 `yaml:"alpha"`               // blend weight for the cosine term
	MMRLambda         float64 `yaml:"mmr_lambda"`          // relevance weight in MMR
	VerifiedBoost     float64 `yaml:"verified_boost"`      // multiplier for verified passages
	RecencyBoost      float64 `yaml:"recency_boost"`       // multiplier for recent passages
	RecencyWindowDays int     `yaml:"recency_window_days"` // window for the recency boost
	FallbackPoolSize  int     `yaml:"fallback_pool_size"`  // MMR fallback candidate pool
	DefaultTopK       int     `yaml:"default_top_k"`
	QueryCacheSize    int     `yaml:"query_cache_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "mizan:"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Backend == "" {
		c.Embedding.Backend = "meanpool"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 256
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = 10000
	}
	if c.Retrieval.Alpha <= 0 {
		c.Retrieval.Alpha = 0.85
	}
	if c.Retrieval.MMRLambda <= 0 {
		c.Retrieval.MMRLambda = 0.7
	}
	if c.Retrieval.VerifiedBoost <= 0 {
		c.Retrieval.VerifiedBoost = 1.15
	}
	if c.Retrieval.RecencyBoost <= 0 {
		c.Retrieval.RecencyBoost = 1.10
	}
	if c.Retrieval.RecencyWindowDays <= 0 {
		c.Retrieval.RecencyWindowDays = 90
	}
	if c.Retrieval.FallbackPoolSize <= 0 {
		c.Retrieval.FallbackPoolSize = 50
	}
	if c.Retrieval.DefaultTopK <= 0 {
		c.Retrieval.DefaultTopK = 5
	}
	if c.Retrieval.QueryCacheSize <= 0 {
		c.Retrieval.QueryCacheSize = 200
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Embedding.Backend {
	case "sentence":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required for the sentence backend")
		}
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required for the sentence backend")
		}
	case "meanpool":
		// local backend, no credentials
	default:
		return fmt.Errorf("embedding.backend must be \"sentence\" or \"meanpool\", got %q", c.Embedding.Backend)
	}
	if c.Retrieval.Alpha > 1 {
		return fmt.Errorf("retrieval.alpha must be in (0, 1], got %v", c.Retrieval.Alpha)
	}
	if c.Retrieval.MMRLambda > 1 {
		return fmt.Errorf("retrieval.mmr_lambda must be in (0, 1], got %v", c.Retrieval.MMRLambda)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
