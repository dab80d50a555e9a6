package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig
	Log          LogConfig
	Database     DatabaseConfig
	Standardizer StandardizerConfig
	Cache        CacheConfig
	Matching     MatchingConfig
	Comparison   ComparisonConfig
	Extraction   ExtractionConfig
	RateLimit    RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadMB    int64    `mapstructure:"max_upload_mb"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"` // Empty disables the rotating file
}

// DatabaseConfig holds the catalog database configuration
type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// StandardizerConfig holds AI standardizer configuration
type StandardizerConfig struct {
	Provider      string        `mapstructure:"provider"` // "none", "http" or "gemini"
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type string        `mapstructure:"type"` // "memory"
	TTL  time.Duration `mapstructure:"ttl"`
}

// MatchingConfig holds similarity scoring weights
type MatchingConfig struct {
	ExactBonusWeight   float64 `mapstructure:"exact_bonus_weight"`
	ExtraWordPenalty   float64 `mapstructure:"extra_word_penalty"`
	OverlapScale       float64 `mapstructure:"overlap_scale"`
	OverlapCeiling     float64 `mapstructure:"overlap_ceiling"`
	EnableDebugLogging bool    `mapstructure:"enable_debug_logging"`
}

// ComparisonConfig holds price comparison thresholds
type ComparisonConfig struct {
	MinSavingsPct          float64       `mapstructure:"min_savings_pct"`
	StaleDays              int           `mapstructure:"stale_days"`
	LowSimilarityThreshold float64       `mapstructure:"low_similarity_threshold"`
	CandidateLimit         int           `mapstructure:"candidate_limit"`
	BatchConcurrency       int           `mapstructure:"batch_concurrency"`
	AITimeout              time.Duration `mapstructure:"ai_timeout"`
	PersistenceTimeout     time.Duration `mapstructure:"persistence_timeout"`
	PersistenceRetries     int           `mapstructure:"persistence_retries"`
}

// ExtractionConfig holds completeness controller thresholds
type ExtractionConfig struct {
	MinProductsForSuccess  int     `mapstructure:"min_products_for_success"`
	CompletenessThreshold  float64 `mapstructure:"completeness_threshold"`
	MaxProductsForFallback int     `mapstructure:"max_products_for_fallback"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // Requests per minute
	Burst int `mapstructure:"burst"`
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricelens/")

	// Environment variable settings, e.g. PRICELENS_SERVER_PORT
	v.SetEnvPrefix("PRICELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
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

// loadEnvFile loads ./.env if present. Variables already set in the
// environment win over the file.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return gotenv.Load(".env")
}

// setDefaults sets default configuration values. Every key is registered so
// AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 10)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/pricelens.log")

	// Database defaults
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.auto_migrate", true)

	// Standardizer defaults
	v.SetDefault("standardizer.provider", "none")
	v.SetDefault("standardizer.api_key", "")
	v.SetDefault("standardizer.base_url", "")
	v.SetDefault("standardizer.model", "gemini-1.5-flash")
	v.SetDefault("standardizer.timeout", "30s")
	v.SetDefault("standardizer.max_attempts", 3)
	v.SetDefault("standardizer.rate_per_second", 2)
	v.SetDefault("standardizer.burst", 5)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "720h") // 30 days

	// Matching defaults
	v.SetDefault("matching.exact_bonus_weight", 0.3)
	v.SetDefault("matching.extra_word_penalty", 0.05)
	v.SetDefault("matching.overlap_scale", 80)
	v.SetDefault("matching.overlap_ceiling", 90)
	v.SetDefault("matching.enable_debug_logging", false)

	// Comparison defaults
	v.SetDefault("comparison.min_savings_pct", 5)
	v.SetDefault("comparison.stale_days", 30)
	v.SetDefault("comparison.low_similarity_threshold", 30)
	v.SetDefault("comparison.candidate_limit", 50)
	v.SetDefault("comparison.batch_concurrency", 3)
	v.SetDefault("comparison.ai_timeout", "20s")
	v.SetDefault("comparison.persistence_timeout", "5s")
	v.SetDefault("comparison.persistence_retries", 2)

	// Extraction defaults
	v.SetDefault("extraction.min_products_for_success", 5)
	v.SetDefault("extraction.completeness_threshold", 0.8)
	v.SetDefault("extraction.max_products_for_fallback", 100)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.burst", 20)
}

// validate validates the configuration. Engine thresholds are range-checked
// again when the services are built.
func validate(config *Config) error {
	if config.Database.DSN == "" {
		return fmt.Errorf("database DSN is required (set PRICELENS_DATABASE_DSN)")
	}

	switch config.Standardizer.Provider {
	case "none":
	case "http":
		if config.Standardizer.BaseURL == "" {
			return fmt.Errorf("standardizer base URL is required for provider 'http'")
		}
	case "gemini":
		if config.Standardizer.APIKey == "" {
			return fmt.Errorf("standardizer API key is required for provider 'gemini' (set PRICELENS_STANDARDIZER_API_KEY)")
		}
	default:
		return fmt.Errorf("standardizer provider must be 'none', 'http' or 'gemini', got: %s", config.Standardizer.Provider)
	}

	if config.Cache.Type != "memory" {
		return fmt.Errorf("cache type must be 'memory', got: %s", config.Cache.Type)
	}

	if config.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server max upload size must be positive, got: %d", config.Server.MaxUploadMB)
	}

	if config.RateLimit.PerIP <= 0 {
		return fmt.Errorf("rate limit per IP must be positive, got: %d", config.RateLimit.PerIP)
	}

	return nil
}
