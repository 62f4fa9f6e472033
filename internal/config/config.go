// Package config loads server configuration from the environment, with an
// optional YAML file overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the server
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Session   SessionConfig   `yaml:"session"`
	Verifier  VerifierConfig  `yaml:"verifier"`
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	Chains    ChainsConfig    `yaml:"chains"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Security  SecurityConfig  `yaml:"security"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int    `yaml:"port"`
	Host         string `yaml:"host"`
	ReadTimeout  int    `yaml:"readTimeout"`  // seconds
	WriteTimeout int    `yaml:"writeTimeout"` // seconds
	IdleTimeout  int    `yaml:"idleTimeout"`  // seconds
}

// StorageConfig holds match store configuration
type StorageConfig struct {
	Type     string         `yaml:"type"` // "sqlite" or "postgres"
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string `yaml:"url"`
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig holds session store settings
type SessionConfig struct {
	StoreType  string      `yaml:"storeType"` // "memory" or "redis"
	Redis      RedisConfig `yaml:"redis"`
	MaxSizeMB  int         `yaml:"maxSizeMB"`  // per-session file cap
	TTLMinutes int         `yaml:"ttlMinutes"` // session expiry
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// VerifierConfig holds settings for the external verification service
type VerifierConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

// FetcherConfig holds settings for missing-source retrieval
type FetcherConfig struct {
	Gateways       []string `yaml:"gateways"`
	TimeoutSeconds int      `yaml:"timeoutSeconds"`
}

// ChainsConfig points at the supported-chains registry file
type ChainsConfig struct {
	File string `yaml:"file"` // TOML, empty means all chains allowed
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requestsPerMin"`
	BurstSize      int  `yaml:"burstSize"`
	CleanupMinutes int  `yaml:"cleanupMinutes"`
}

// SecurityConfig holds request limits
type SecurityConfig struct {
	MaxBodySizeMB int `yaml:"maxBodySizeMB"`
}

// ProxyConfig controls client IP resolution behind a reverse proxy
type ProxyConfig struct {
	TrustProxy     bool     `yaml:"trustProxy"`
	TrustedProxies []string `yaml:"trustedProxies"` // CIDRs or single IPs
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load loads configuration from environment variables. If SOURCIFY_CONFIG_FILE
// is set, that YAML file is applied on top.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvInt("PORT", 5555),
			Host:         getEnv("HOST", "0.0.0.0"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 120),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/sourcify.db"),
			},
		},
		Session: SessionConfig{
			StoreType: getEnv("SESSION_STORE_TYPE", "memory"),
			Redis: RedisConfig{
				Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
			},
			MaxSizeMB:  getEnvInt("SESSION_MAX_SIZE_MB", 50),
			TTLMinutes: getEnvInt("SESSION_TTL_MINUTES", 120),
		},
		Verifier: VerifierConfig{
			URL:            getEnv("VERIFIER_URL", ""),
			TimeoutSeconds: getEnvInt("VERIFIER_TIMEOUT", 120),
		},
		Fetcher: FetcherConfig{
			Gateways:       getEnvStringSlice("FETCH_GATEWAYS", nil),
			TimeoutSeconds: getEnvInt("FETCH_TIMEOUT", 10),
		},
		Chains: ChainsConfig{
			File: getEnv("CHAINS_FILE", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 300),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 50),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Security: SecurityConfig{
			MaxBodySizeMB: getEnvInt("SECURITY_MAX_BODY_SIZE_MB", 60),
		},
		Proxy: ProxyConfig{
			TrustProxy:     getEnvBool("PROXY_TRUST", false),
			TrustedProxies: getEnvStringSlice("PROXY_TRUSTED", nil),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}

	if file := os.Getenv("SOURCIFY_CONFIG_FILE"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
