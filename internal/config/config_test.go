package config

import (
	"os"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Retrieval.Alpha != 0.85 {
		t.Errorf("alpha default = %v, want 0.85", cfg.Retrieval.Alpha)
	}
	if cfg.Retrieval.MMRLambda != 0.7 {
		t.Errorf("mmr_lambda default = %v, want 0.7", cfg.Retrieval.MMRLambda)
	}
	if cfg.Retrieval.VerifiedBoost != 1.15 {
		t.Errorf("verified_boost default = %v, want 1.15", cfg.Retrieval.VerifiedBoost)
	}
	if cfg.Retrieval.RecencyBoost != 1.10 {
		t.Errorf("recency_boost default = %v, want 1.10", cfg.Retrieval.RecencyBoost)
	}
	if cfg.Retrieval.RecencyWindowDays != 90 {
		t.Errorf("recency_window_days default = %d, want 90", cfg.Retrieval.RecencyWindowDays)
	}
	if cfg.Retrieval.FallbackPoolSize != 50 {
		t.Errorf("fallback_pool_size default = %d, want 50", cfg.Retrieval.FallbackPoolSize)
	}
	if cfg.Retrieval.QueryCacheSize != 200 {
		t.Errorf("query_cache_size default = %d, want 200", cfg.Retrieval.QueryCacheSize)
	}
	if cfg.Embedding.CacheSize != 10000 {
		t.Errorf("embedding cache_size default = %d, want 10000", cfg.Embedding.CacheSize)
	}
	if cfg.Embedding.Backend != "meanpool" {
		t.Errorf("embedding backend default = %q, want meanpool", cfg.Embedding.Backend)
	}
	if cfg.Database.KeyPrefix != "mizan:" {
		t.Errorf("key_prefix default = %q, want mizan:", cfg.Database.KeyPrefix)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Embedding.Backend = "onnx" }, true},
		{"sentence without key", func(c *Config) { c.Embedding.Backend = "sentence" }, true},
		{"sentence complete", func(c *Config) {
			c.Embedding.Backend = "sentence"
			c.Embedding.APIKey = "k"
			c.Embedding.Model = "m"
		}, false},
		{"alpha above one", func(c *Config) { c.Retrieval.Alpha = 1.5 }, true},
		{"lambda above one", func(c *Config) { c.Retrieval.MMRLambda = 2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("MIZAN_TEST_VAR", "secret")
	defer os.Unsetenv("MIZAN_TEST_VAR")

	tests := []struct {
		in   string
		want string
	}{
		{"api_key: ${MIZAN_TEST_VAR}", "api_key: secret"},
		{"addr: ${MIZAN_MISSING:-localhost:6379}", "addr: localhost:6379"},
		{"plain: value", "plain: value"},
	}

	for _, tt := range tests {
		got := string(expandEnvVars([]byte(tt.in)))
		if got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetEnv(t *testing.T) {
	os.Unsetenv("ENV")
	if env := GetEnv(); env != "local" {
		t.Errorf("GetEnv() = %q, want local", env)
	}
	os.Setenv("ENV", "prod")
	defer os.Unsetenv("ENV")
	if env := GetEnv(); env != "prod" {
		t.Errorf("GetEnv() = %q, want prod", env)
	}
}
