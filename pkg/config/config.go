package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mindrush/portal/pkg/observability"
	"github.com/mindrush/portal/pkg/oidc"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	OIDC          oidc.Config
	DevAccounts   DevAccountsConfig
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

	// SecureCookies controls the Secure flag on session cookies; off for
	// plain-HTTP local development.
	SecureCookies bool
}

// DatabaseConfig holds credential store configuration
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite3"
	Driver string
	// DSN is the connection string (postgres URL or sqlite file path)
	DSN      string
	MaxConns int
}

// RedisConfig holds session store configuration; empty URL selects the
// in-memory backend.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// DevAccountsConfig points at the YAML developer account file
type DevAccountsConfig struct {
	// File is the path to the dev accounts YAML; empty means no dev accounts
	File string
	// Watch reloads the file on change
	Watch bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("PORTAL_HOST", "0.0.0.0"),
			Port:            getEnv("PORTAL_PORT", "8080"),
			ReadTimeout:     getEnvDuration("PORTAL_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("PORTAL_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("PORTAL_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("PORTAL_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("PORTAL_HEALTH_PORT", "9090"),
			SecureCookies:   getEnvBool("PORTAL_SECURE_COOKIES", true),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("PORTAL_DB_DRIVER", "postgres"),
			DSN:      getEnv("PORTAL_DB_DSN", ""),
			MaxConns: getEnvInt("PORTAL_DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			URL:        getEnv("PORTAL_REDIS_URL", ""),
			Password:   getEnv("PORTAL_REDIS_PASSWORD", ""),
			DB:         getEnvInt("PORTAL_REDIS_DB", -1),
			MaxRetries: getEnvInt("PORTAL_REDIS_MAX_RETRIES", 0),
			PoolSize:   getEnvInt("PORTAL_REDIS_POOL_SIZE", 0),
		},
		OIDC: oidc.Config{
			IssuerURL:             getEnv("PORTAL_OIDC_ISSUER_URL", ""),
			ClientID:              getEnv("PORTAL_OIDC_CLIENT_ID", ""),
			ClientSecret:          getEnv("PORTAL_OIDC_CLIENT_SECRET", ""),
			RedirectURL:           getEnv("PORTAL_OIDC_REDIRECT_URL", ""),
			PostLogoutRedirectURL: getEnv("PORTAL_OIDC_POST_LOGOUT_REDIRECT_URL", ""),
		},
		DevAccounts: DevAccountsConfig{
			File:  getEnv("PORTAL_DEV_ACCOUNTS_FILE", ""),
			Watch: getEnvBool("PORTAL_DEV_ACCOUNTS_WATCH", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("PORTAL_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("PORTAL_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
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

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	// OIDC is optional as a whole, but a partial configuration is a mistake
	// worth failing fast on.
	if c.OIDC != (oidc.Config{}) && !c.OIDC.Configured() {
		return fmt.Errorf("incomplete OIDC configuration: issuer, client id, client secret, and redirect URL are all required")
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
