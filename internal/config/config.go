// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables, an optional config file and
// command-line flags with sensible defaults, and validates all settings on startup
// to fail fast on misconfiguration.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Import   ImportConfig   `yaml:"import"`
	Cache    CacheConfig    `yaml:"cache"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds catalog database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true" yaml:"-"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10" yaml:"max_conns"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1" yaml:"min_conns"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h" yaml:"max_conn_lifetime"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m" yaml:"max_conn_idle_time"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// Mode is "update" (add to existing terms) or "replace" (default: update)
	Mode string `env:"IMPORT_MODE" default:"update" yaml:"mode"`

	// DryRun resolves everything but writes nothing (default: false)
	DryRun bool `env:"IMPORT_DRY_RUN" default:"false" yaml:"dry_run"`

	// Delimiter is the CSV field separator (default: ,)
	Delimiter string `env:"IMPORT_DELIMITER" default:"," yaml:"delimiter"`

	// SkipLines is the number of lines before the header (default: 0)
	SkipLines int `env:"IMPORT_SKIP_LINES" default:"0" yaml:"skip_lines"`

	// BatchSize is the number of products written per transaction (default: 100)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"100" yaml:"batch_size"`

	// MaxFileSize is the maximum allowed file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"52428800" yaml:"max_file_size"`

	// Encoding of the input file: utf-8 or windows-1251 (default: utf-8)
	Encoding string `env:"IMPORT_ENCODING" default:"utf-8" yaml:"encoding"`

	// LogDir is where result reports are written (default: taxonomy-import-logs)
	LogDir string `env:"IMPORT_LOG_DIR" default:"taxonomy-import-logs" yaml:"log_dir"`

	// Timeout bounds a whole import run (default: 30m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"30m" yaml:"timeout"`

	// MaxConcurrent is the number of imports the server runs at once (default: 2)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"2" yaml:"max_concurrent"`

	// MaxWaitTime is how long the server waits for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s" yaml:"max_wait_time"`
}

// CacheConfig holds term lookup cache settings.
type CacheConfig struct {
	// Enabled caches catalog reads for the duration of a run (default: true)
	Enabled bool `env:"CACHE_ENABLED" default:"true" yaml:"enabled"`

	// TTL is how long a cached lookup stays valid (default: 10m)
	TTL time.Duration `env:"CACHE_TTL" default:"10m" yaml:"ttl"`

	// ReportTTL is how long the server keeps finished import reports (default: 24h)
	ReportTTL time.Duration `env:"CACHE_REPORT_TTL" default:"24h" yaml:"report_ttl"`
}

// ServerConfig holds HTTP server settings for serve mode.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0" yaml:"host"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080" yaml:"port"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s" yaml:"read_timeout"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s" yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s" yaml:"shutdown_timeout"`

	// RequestsPerMinute is the per-IP rate limit (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120" yaml:"requests_per_minute"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP and X-Forwarded-For headers are honored (default: none)
	TrustedProxies string `env:"TRUSTED_PROXIES" yaml:"trusted_proxies"`

	// APIKeys is a comma-separated list of keys accepted in X-API-Key.
	// Empty disables API key checks.
	APIKeys string `env:"API_KEYS" yaml:"-"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" yaml:"level"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" yaml:"format"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// TrustedProxyList returns the configured proxy CIDRs.
func (c *ServerConfig) TrustedProxyList() []string {
	return splitList(c.TrustedProxies)
}

// APIKeyList returns the configured API keys.
func (c *ServerConfig) APIKeyList() []string {
	return splitList(c.APIKeys)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
