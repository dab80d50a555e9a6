package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Run from an empty directory so no config.yaml or .env is picked up
	chdir(t, t.TempDir())

	t.Run("loads with defaults when only DSN is set", func(t *testing.T) {
		t.Setenv("PRICELENS_DATABASE_DSN", "postgres://localhost/pricelens")

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
		if cfg.Standardizer.Provider != "none" {
			t.Errorf("Standardizer.Provider = %s, want none", cfg.Standardizer.Provider)
		}
		if cfg.Cache.TTL != 720*time.Hour {
			t.Errorf("Cache.TTL = %v, want 720h", cfg.Cache.TTL)
		}
		if cfg.Comparison.AITimeout != 20*time.Second {
			t.Errorf("Comparison.AITimeout = %v, want 20s", cfg.Comparison.AITimeout)
		}
		if cfg.Comparison.MinSavingsPct != 5 || cfg.Comparison.StaleDays != 30 {
			t.Errorf("Comparison = %+v", cfg.Comparison)
		}
		if cfg.Extraction.CompletenessThreshold != 0.8 {
			t.Errorf("Extraction.CompletenessThreshold = %v, want 0.8", cfg.Extraction.CompletenessThreshold)
		}
		if cfg.Matching.OverlapCeiling != 90 {
			t.Errorf("Matching.OverlapCeiling = %v, want 90", cfg.Matching.OverlapCeiling)
		}
		if cfg.RateLimit.PerIP != 100 {
			t.Errorf("RateLimit.PerIP = %d, want 100", cfg.RateLimit.PerIP)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		t.Setenv("PRICELENS_DATABASE_DSN", "postgres://db/pricelens")
		t.Setenv("PRICELENS_SERVER_PORT", "9090")
		t.Setenv("PRICELENS_SERVER_ENVIRONMENT", "production")
		t.Setenv("PRICELENS_STANDARDIZER_PROVIDER", "gemini")
		t.Setenv("PRICELENS_STANDARDIZER_API_KEY", "custom-api-key")
		t.Setenv("PRICELENS_CACHE_TTL", "24h")
		t.Setenv("PRICELENS_COMPARISON_STALE_DAYS", "14")
		t.Setenv("PRICELENS_COMPARISON_BATCH_CONCURRENCY", "8")
		t.Setenv("PRICELENS_RATELIMIT_PER_IP", "200")

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
		if cfg.Standardizer.APIKey != "custom-api-key" {
			t.Errorf("Standardizer.APIKey = %s, want custom-api-key", cfg.Standardizer.APIKey)
		}
		if cfg.Cache.TTL != 24*time.Hour {
			t.Errorf("Cache.TTL = %v, want 24h", cfg.Cache.TTL)
		}
		if cfg.Comparison.StaleDays != 14 || cfg.Comparison.BatchConcurrency != 8 {
			t.Errorf("Comparison = %+v", cfg.Comparison)
		}
		if cfg.RateLimit.PerIP != 200 {
			t.Errorf("RateLimit.PerIP = %d, want 200", cfg.RateLimit.PerIP)
		}
	})

	t.Run("fails validation when DSN is missing", func(t *testing.T) {
		t.Setenv("PRICELENS_DATABASE_DSN", "")

		_, err := Load()
		if err == nil {
			t.Fatal("Load() error = nil, want error for missing DSN")
		}
		if err.Error() != "invalid configuration: database DSN is required (set PRICELENS_DATABASE_DSN)" {
			t.Errorf("Load() error = %v", err)
		}
	})

	t.Run("reads values from .env file", func(t *testing.T) {
		dir := t.TempDir()
		chdir(t, dir)
		writeFile(t, filepath.Join(dir, ".env"), "PRICELENS_DATABASE_DSN=postgres://from-dotenv/db\n")
		t.Cleanup(func() { os.Unsetenv("PRICELENS_DATABASE_DSN") })

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Database.DSN != "postgres://from-dotenv/db" {
			t.Errorf("Database.DSN = %s", cfg.Database.DSN)
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		chdir(t, t.TempDir())

		if err := loadEnvFile(); err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("loads variables and skips comments", func(t *testing.T) {
		dir := t.TempDir()
		chdir(t, dir)
		writeFile(t, filepath.Join(dir, ".env"), `
# Comment line
TEST_VAR_1=value1

TEST_VAR_2=value2
# TEST_COMMENTED=should_not_load
`)
		t.Cleanup(func() {
			os.Unsetenv("TEST_VAR_1")
			os.Unsetenv("TEST_VAR_2")
		})

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}
		if os.Getenv("TEST_VAR_1") != "value1" || os.Getenv("TEST_VAR_2") != "value2" {
			t.Errorf("variables not loaded: %q %q", os.Getenv("TEST_VAR_1"), os.Getenv("TEST_VAR_2"))
		}
		if os.Getenv("TEST_COMMENTED") != "" {
			t.Errorf("TEST_COMMENTED should not be loaded from comment")
		}
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		dir := t.TempDir()
		chdir(t, dir)
		t.Setenv("TEST_OVERRIDE", "existing-value")
		writeFile(t, filepath.Join(dir, ".env"), "TEST_OVERRIDE=new-value")

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}
		if os.Getenv("TEST_OVERRIDE") != "existing-value" {
			t.Errorf("TEST_OVERRIDE = %s, want existing-value (should not override)", os.Getenv("TEST_OVERRIDE"))
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:       ServerConfig{MaxUploadMB: 10},
			Database:     DatabaseConfig{DSN: "postgres://localhost/pricelens"},
			Standardizer: StandardizerConfig{Provider: "none"},
			Cache:        CacheConfig{Type: "memory"},
			RateLimit:    RateLimitConfig{PerIP: 100},
		}
	}

	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing DSN", mutate: func(c *Config) { c.Database.DSN = "" }, wantErr: "database DSN"},
		{name: "unknown provider", mutate: func(c *Config) { c.Standardizer.Provider = "openai" }, wantErr: "provider must be"},
		{name: "gemini without key", mutate: func(c *Config) { c.Standardizer.Provider = "gemini" }, wantErr: "API key"},
		{name: "gemini with key", mutate: func(c *Config) {
			c.Standardizer.Provider = "gemini"
			c.Standardizer.APIKey = "key"
		}},
		{name: "http without base URL", mutate: func(c *Config) { c.Standardizer.Provider = "http" }, wantErr: "base URL"},
		{name: "invalid cache type", mutate: func(c *Config) { c.Cache.Type = "redis" }, wantErr: "cache type"},
		{name: "zero upload size", mutate: func(c *Config) { c.Server.MaxUploadMB = 0 }, wantErr: "upload size"},
		{name: "zero rate limit", mutate: func(c *Config) { c.RateLimit.PerIP = 0 }, wantErr: "rate limit"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)

			err := validate(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("validate() error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestSetupLogger(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "app.log")
	cfg := &Config{
		Server: ServerConfig{Environment: "production"},
		Log:    LogConfig{Level: "not-a-level", File: file},
	}

	logger := SetupLogger(cfg)
	logger.Info().Msg("hello")

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) {
		t.Errorf("log file content = %s", data)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	original, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(original) })
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}
