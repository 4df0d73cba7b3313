package config

import (
	"os"
	"testing"
	"time"

	"github.com/quizdeck/quizdeck/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true string", "true", false, true},
		{"one string", "1", false, true},
		{"false string", "false", true, false},
		{"unset uses default", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
				defer os.Unsetenv(key)
			}

			if got := getEnvBool(key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	os.Setenv("TEST_DURATION_VAR", "45s")
	defer os.Unsetenv("TEST_DURATION_VAR")

	if got := getEnvDuration("TEST_DURATION_VAR", time.Minute); got != 45*time.Second {
		t.Errorf("getEnvDuration() = %v, want 45s", got)
	}
	if got := getEnvDuration("TEST_DURATION_UNSET", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() default = %v, want 1m", got)
	}
	os.Setenv("TEST_DURATION_BAD", "not-a-duration")
	defer os.Unsetenv("TEST_DURATION_BAD")
	if got := getEnvDuration("TEST_DURATION_BAD", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() on invalid = %v, want default", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	os.Setenv("QUIZDECK_POSTGRES_URL", "postgres://localhost/quizdeck_test")
	defer os.Unsetenv("QUIZDECK_POSTGRES_URL")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("default health port = %q, want 9090", cfg.Server.HealthPort)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("default log level = %v, want info", cfg.Observability.LogLevel)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
	if cfg.Audit.RetentionDays != 90 {
		t.Errorf("default retention = %d, want 90", cfg.Audit.RetentionDays)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", HealthPort: "9090"},
			Database: DatabaseConfig{
				URL: "postgres://localhost/quizdeck",
			},
			Cache: CacheConfig{Enabled: true, L1Size: 1024},
			Audit: AuditConfig{RetentionDays: 90},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Server.Port = "" }, true},
		{"port collision", func(c *Config) { c.Server.HealthPort = "8080" }, true},
		{"missing postgres URL", func(c *Config) { c.Database.URL = "" }, true},
		{"zero cache size", func(c *Config) { c.Cache.L1Size = 0 }, true},
		{"cache disabled ignores size", func(c *Config) { c.Cache.Enabled = false; c.Cache.L1Size = 0 }, false},
		{"zero retention", func(c *Config) { c.Audit.RetentionDays = 0 }, true},
		{"otel enabled without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
