package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	AliasMap  AliasMapConfig
	Matching  MatchingConfig
	Report    ReportConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds configuration for the review/report API
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StoreConfig holds catalog store configuration
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// AliasMapConfig points at the versioned brand alias document
type AliasMapConfig struct {
	Path string `mapstructure:"path"`
}

// MatchingConfig holds the tunables of the grouping pass
type MatchingConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	EnableFuzzyMatching bool    `mapstructure:"enable_fuzzy_matching"`
	EnableDebugLogging  bool    `mapstructure:"enable_debug_logging"`
}

// ReportConfig holds batch report output configuration
type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerClient int `mapstructure:"per_client"`
	Burst     int `mapstructure:"burst"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/petfooddb/")

	// Environment variable settings
	v.SetEnvPrefix("PETFOODDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Store defaults
	v.SetDefault("store.path", "catalog.sqlite")

	// Alias map defaults
	v.SetDefault("aliasmap.path", "config/brand_aliases.yaml")

	// Matching defaults. The similarity threshold is an empirical
	// tunable, not a derived constant; the grouper's labeled-pair tests
	// cover the boundary before anyone changes it.
	v.SetDefault("matching.similarity_threshold", 0.85)
	v.SetDefault("matching.enable_fuzzy_matching", true)
	v.SetDefault("matching.enable_debug_logging", false)

	// Report defaults
	v.SetDefault("report.dir", "reports")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_client", 100)
	v.SetDefault("ratelimit.burst", 20)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Store.Path == "" {
		return fmt.Errorf("store path is required (set PETFOODDB_STORE_PATH)")
	}

	if config.AliasMap.Path == "" {
		return fmt.Errorf("alias map path is required (set PETFOODDB_ALIASMAP_PATH)")
	}

	if config.Matching.SimilarityThreshold <= 0 || config.Matching.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1], got: %v", config.Matching.SimilarityThreshold)
	}

	if config.RateLimit.PerClient <= 0 {
		return fmt.Errorf("per-client rate limit must be positive, got: %d", config.RateLimit.PerClient)
	}

	return nil
}
