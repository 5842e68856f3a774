package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openreach/openreach/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	SuperAdmin    SuperAdminConfig
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
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds shared-store configuration. The rate-limit counters and
// replay tokens live here so limits hold across server instances.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// SuperAdminConfig holds the elevation protocol settings
type SuperAdminConfig struct {
	// Secret is required for elevation to ever succeed
	Secret string
	// SecretBackup optionally accepts a second secret during rotation
	SecretBackup string
	// JTIEnabled requires a single-use token per elevation attempt
	JTIEnabled bool
	// RateLimit caps elevation attempts per client address per window
	RateLimit int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		SuperAdmin:    loadSuperAdminConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("OPENREACH_HOST", "0.0.0.0"),
		Port:            getEnv("OPENREACH_PORT", "8080"),
		ReadTimeout:     getEnvDuration("OPENREACH_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("OPENREACH_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("OPENREACH_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("OPENREACH_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          getEnv("OPENREACH_POSTGRES_URL", ""),
		MaxOpenConns: getEnvInt("OPENREACH_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns: getEnvInt("OPENREACH_POSTGRES_IDLE_CONNS", 5),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("OPENREACH_REDIS_URL", "redis://localhost:6379"),
		Password:   getEnv("OPENREACH_REDIS_PASSWORD", ""),
		DB:         getEnvInt("OPENREACH_REDIS_DB", 0),
		MaxRetries: getEnvInt("OPENREACH_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("OPENREACH_REDIS_POOL_SIZE", 10),
	}
}

func loadSuperAdminConfig() SuperAdminConfig {
	return SuperAdminConfig{
		Secret:       getEnv("SUPERADMIN_SECRET", ""),
		SecretBackup: getEnv("SUPERADMIN_SECRET_BACKUP", ""),
		JTIEnabled:   getEnvBool("SUPERADMIN_JTI_ENABLED", true),
		RateLimit:    getEnvInt("SUPERADMIN_RATE_LIMIT", 3),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("OPENREACH_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("OPENREACH_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}
	if c.SuperAdmin.RateLimit <= 0 {
		return fmt.Errorf("superadmin rate limit must be positive, got %d", c.SuperAdmin.RateLimit)
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
