package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quizdeck/quizdeck/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Cache         CacheConfig
	Seed          SeedConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds the optional shared cache configuration.
// An empty Addr disables the Redis layer entirely.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// CacheConfig holds in-process cache configuration
type CacheConfig struct {
	Enabled bool
	L1Size  int
}

// SeedConfig holds role catalog seed configuration
type SeedConfig struct {
	// Path to the role catalog YAML. Empty means built-in defaults only.
	Path string

	// Watch reloads the catalog when the seed file changes on disk.
	Watch bool
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	// LogDir is the directory for file-based audit logs. Empty disables
	// the file destination.
	LogDir string

	// DBEnabled also writes audit events to the database.
	DBEnabled bool

	RetentionDays     int
	RetentionSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Cache:         loadCacheConfig(),
		Seed:          loadSeedConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("QUIZDECK_HOST", "0.0.0.0"),
		Port:            getEnv("QUIZDECK_PORT", "8080"),
		ReadTimeout:     getEnvDuration("QUIZDECK_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("QUIZDECK_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("QUIZDECK_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("QUIZDECK_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("QUIZDECK_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          getEnv("QUIZDECK_POSTGRES_URL", ""),
		MaxOpenConns: getEnvInt("QUIZDECK_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns: getEnvInt("QUIZDECK_POSTGRES_IDLE_CONNS", 5),
		ConnLifetime: getEnvDuration("QUIZDECK_POSTGRES_CONN_LIFETIME", 30*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("QUIZDECK_REDIS_ADDR", ""),
		Password: getEnv("QUIZDECK_REDIS_PASSWORD", ""),
		DB:       getEnvInt("QUIZDECK_REDIS_DB", 0),
		PoolSize: getEnvInt("QUIZDECK_REDIS_POOL_SIZE", 10),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: getEnvBool("QUIZDECK_CACHE_ENABLED", true),
		L1Size:  getEnvInt("QUIZDECK_L1_CACHE_SIZE", 4096),
	}
}

func loadSeedConfig() SeedConfig {
	return SeedConfig{
		Path:  getEnv("QUIZDECK_SEED_PATH", ""),
		Watch: getEnvBool("QUIZDECK_SEED_WATCH", false),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		LogDir:            getEnv("QUIZDECK_AUDIT_LOG_DIR", ""),
		DBEnabled:         getEnvBool("QUIZDECK_AUDIT_DB_ENABLED", true),
		RetentionDays:     getEnvInt("QUIZDECK_AUDIT_RETENTION_DAYS", 90),
		RetentionSchedule: getEnv("QUIZDECK_AUDIT_RETENTION_SCHEDULE", "0 3 * * *"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("QUIZDECK_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("QUIZDECK_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("QUIZDECK_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("QUIZDECK_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("QUIZDECK_OTEL_SERVICE_NAME", "quizdeck-authz"),
		OTelServiceVersion: getEnv("QUIZDECK_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("QUIZDECK_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Cache.Enabled && c.Cache.L1Size <= 0 {
		return fmt.Errorf("L1 cache size must be positive when caching is enabled")
	}

	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention days must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
