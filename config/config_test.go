package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	// Clean up environment before tests
	cleanupEnv := func() {
		os.Unsetenv("PETFOODDB_SERVER_PORT")
		os.Unsetenv("PETFOODDB_SERVER_ENVIRONMENT")
		os.Unsetenv("PETFOODDB_SERVER_ALLOWED_ORIGINS")
		os.Unsetenv("PETFOODDB_STORE_PATH")
		os.Unsetenv("PETFOODDB_ALIASMAP_PATH")
		os.Unsetenv("PETFOODDB_MATCHING_SIMILARITY_THRESHOLD")
		os.Unsetenv("PETFOODDB_MATCHING_ENABLE_FUZZY_MATCHING")
		os.Unsetenv("PETFOODDB_MATCHING_ENABLE_DEBUG_LOGGING")
		os.Unsetenv("PETFOODDB_REPORT_DIR")
		os.Unsetenv("PETFOODDB_RATELIMIT_PER_CLIENT")
		os.Unsetenv("PETFOODDB_RATELIMIT_BURST")
	}

	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cleanupEnv()
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		// Check defaults
		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.Store.Path != "catalog.sqlite" {
			t.Errorf("Store.Path = %s, want catalog.sqlite", cfg.Store.Path)
		}
		if cfg.AliasMap.Path != "config/brand_aliases.yaml" {
			t.Errorf("AliasMap.Path = %s, want config/brand_aliases.yaml", cfg.AliasMap.Path)
		}
		if cfg.Matching.SimilarityThreshold != 0.85 {
			t.Errorf("Matching.SimilarityThreshold = %v, want 0.85", cfg.Matching.SimilarityThreshold)
		}
		if !cfg.Matching.EnableFuzzyMatching {
			t.Error("Matching.EnableFuzzyMatching = false, want true")
		}
		if cfg.Report.Dir != "reports" {
			t.Errorf("Report.Dir = %s, want reports", cfg.Report.Dir)
		}
		if cfg.RateLimit.PerClient != 100 {
			t.Errorf("RateLimit.PerClient = %d, want 100", cfg.RateLimit.PerClient)
		}
		if cfg.RateLimit.Burst != 20 {
			t.Errorf("RateLimit.Burst = %d, want 20", cfg.RateLimit.Burst)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("PETFOODDB_SERVER_PORT", "9090")
		os.Setenv("PETFOODDB_SERVER_ENVIRONMENT", "production")
		os.Setenv("PETFOODDB_STORE_PATH", "/var/lib/petfooddb/catalog.sqlite")
		os.Setenv("PETFOODDB_ALIASMAP_PATH", "/etc/petfooddb/aliases.yaml")
		os.Setenv("PETFOODDB_MATCHING_SIMILARITY_THRESHOLD", "0.9")
		os.Setenv("PETFOODDB_MATCHING_ENABLE_FUZZY_MATCHING", "false")
		os.Setenv("PETFOODDB_MATCHING_ENABLE_DEBUG_LOGGING", "true")
		os.Setenv("PETFOODDB_REPORT_DIR", "/var/reports")
		os.Setenv("PETFOODDB_RATELIMIT_PER_CLIENT", "200")
		os.Setenv("PETFOODDB_RATELIMIT_BURST", "50")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
		if cfg.Store.Path != "/var/lib/petfooddb/catalog.sqlite" {
			t.Errorf("Store.Path = %s, want /var/lib/petfooddb/catalog.sqlite", cfg.Store.Path)
		}
		if cfg.AliasMap.Path != "/etc/petfooddb/aliases.yaml" {
			t.Errorf("AliasMap.Path = %s, want /etc/petfooddb/aliases.yaml", cfg.AliasMap.Path)
		}
		if cfg.Matching.SimilarityThreshold != 0.9 {
			t.Errorf("Matching.SimilarityThreshold = %v, want 0.9", cfg.Matching.SimilarityThreshold)
		}
		if cfg.Matching.EnableFuzzyMatching {
			t.Error("Matching.EnableFuzzyMatching = true, want false")
		}
		if !cfg.Matching.EnableDebugLogging {
			t.Error("Matching.EnableDebugLogging = false, want true")
		}
		if cfg.Report.Dir != "/var/reports" {
			t.Errorf("Report.Dir = %s, want /var/reports", cfg.Report.Dir)
		}
		if cfg.RateLimit.PerClient != 200 {
			t.Errorf("RateLimit.PerClient = %d, want 200", cfg.RateLimit.PerClient)
		}
		if cfg.RateLimit.Burst != 50 {
			t.Errorf("RateLimit.Burst = %d, want 50", cfg.RateLimit.Burst)
		}
	})

	t.Run("fails validation for out-of-range similarity threshold", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("PETFOODDB_MATCHING_SIMILARITY_THRESHOLD", "1.5")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for threshold > 1")
		}
	})

	t.Run("fails validation for zero similarity threshold", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("PETFOODDB_MATCHING_SIMILARITY_THRESHOLD", "0")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for threshold 0")
		}
	})

	t.Run("fails validation for non-positive rate limit", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("PETFOODDB_RATELIMIT_PER_CLIENT", "0")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for rate limit 0")
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:    StoreConfig{Path: "catalog.sqlite"},
			AliasMap: AliasMapConfig{Path: "aliases.yaml"},
			Matching: MatchingConfig{SimilarityThreshold: 0.85},
			RateLimit: RateLimitConfig{
				PerClient: 100,
				Burst:     20,
			},
		}
	}

	t.Run("validates successfully with all required fields", func(t *testing.T) {
		if err := validate(valid()); err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})

	t.Run("fails when store path is empty", func(t *testing.T) {
		cfg := valid()
		cfg.Store.Path = ""
		if err := validate(cfg); err == nil {
			t.Error("validate() error = nil, want error for empty store path")
		}
	})

	t.Run("fails when alias map path is empty", func(t *testing.T) {
		cfg := valid()
		cfg.AliasMap.Path = ""
		if err := validate(cfg); err == nil {
			t.Error("validate() error = nil, want error for empty alias map path")
		}
	})

	t.Run("fails for negative similarity threshold", func(t *testing.T) {
		cfg := valid()
		cfg.Matching.SimilarityThreshold = -0.1
		if err := validate(cfg); err == nil {
			t.Error("validate() error = nil, want error for negative threshold")
		}
	})
}
