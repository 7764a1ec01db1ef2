// Package api provides the ingest service's HTTP surface: the five
// ingest envelopes, the query DSL endpoint, and the health/metrics
// routes.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/liminalqa/liminal/internal/api/middleware"
	"github.com/liminalqa/liminal/internal/config"
)

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = 8080
	// MaxPort is the maximum valid port number.
	MaxPort = 65535
	// DefaultHost is the default server host.
	DefaultHost = "0.0.0.0"
	// DefaultTimeout is the default timeout for HTTP operations.
	DefaultTimeout = 30 * time.Second
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = slog.LevelInfo
	// DefaultCORSMaxAge is the default CORS max age (24 hours).
	DefaultCORSMaxAge = 86400
)

// Static validation errors.
var (
	ErrInvalidPort            = errors.New("invalid port")
	ErrEmptyHost              = errors.New("host cannot be empty")
	ErrInvalidReadTimeout     = errors.New("read timeout must be positive")
	ErrInvalidWriteTimeout    = errors.New("write timeout must be positive")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
)

// ServerConfig holds HTTP server configuration. The bearer token gating
// every /ingest/* and /query route comes from LIMINAL_AUTH_TOKEN; its
// absence means the service runs in open mode with a startup warning, and
// LIMINAL_DB_PATH names the fact store's backing database file.
type ServerConfig struct {
	Port               int
	Host               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	LogLevel           slog.Level
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int
	DBPath             string
	AuthToken          string
	KafkaBrokers       []string
}

// LoadServerConfig loads server configuration from environment variables
// with sensible defaults.
func LoadServerConfig() ServerConfig {
	cfg := ServerConfig{
		Port:               DefaultPort,
		Host:               DefaultHost,
		ReadTimeout:        DefaultTimeout,
		WriteTimeout:       DefaultTimeout,
		ShutdownTimeout:    DefaultTimeout,
		LogLevel:           DefaultLogLevel,
		CORSAllowedOrigins: []string{"*"}, // Development default - should be restricted in production
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Correlation-ID"},
		CORSMaxAge:         DefaultCORSMaxAge,
		DBPath:             config.GetEnvStr("LIMINAL_DB_PATH", "./liminal.db"),
		AuthToken:          config.GetEnvStr("LIMINAL_AUTH_TOKEN", ""),
	}

	cfg.Port = config.GetEnvInt("LIMINAL_PORT", cfg.Port)
	cfg.Host = config.GetEnvStr("LIMINAL_HOST", cfg.Host)
	cfg.ReadTimeout = config.GetEnvDuration("LIMINAL_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = config.GetEnvDuration("LIMINAL_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.ShutdownTimeout = config.GetEnvDuration("LIMINAL_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.LogLevel = config.GetEnvLogLevel("LIMINAL_LOG_LEVEL", cfg.LogLevel)

	if origins := config.GetEnvStr("LIMINAL_CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.CORSAllowedOrigins = config.ParseCommaSeparatedList(origins)
	}

	if brokers := config.GetEnvStr("LIMINAL_KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = config.ParseCommaSeparatedList(brokers)
	}

	return cfg
}

// opsFileConfig is the shape of the optional YAML ops file named by
// LIMINAL_CONFIG_FILE. It mirrors a subset of ServerConfig; any field left
// unset in the file keeps its environment-derived value, so the file is a
// base layer env vars can still override, not a replacement for them.
type opsFileConfig struct {
	Port               int      `yaml:"port"`
	Host               string   `yaml:"host"`
	LogLevel           string   `yaml:"log_level"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	KafkaBrokers       []string `yaml:"kafka_brokers"`
}

// LoadServerConfigFromFile loads ServerConfig the same way LoadServerConfig
// does, additionally layering in an optional YAML ops file: its values seed
// the config before environment variables are applied, so `LIMINAL_HOST`
// (say) still overrides whatever the file says. An empty path skips the
// file layer entirely.
func LoadServerConfigFromFile(path string) (ServerConfig, error) {
	if path == "" {
		return LoadServerConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("api: read ops config file: %w", err)
	}

	var fc opsFileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return ServerConfig{}, fmt.Errorf("api: parse ops config file: %w", err)
	}

	cfg := LoadServerConfig()

	if os.Getenv("LIMINAL_PORT") == "" && fc.Port != 0 {
		cfg.Port = fc.Port
	}

	if os.Getenv("LIMINAL_HOST") == "" && fc.Host != "" {
		cfg.Host = fc.Host
	}

	if os.Getenv("LIMINAL_LOG_LEVEL") == "" && fc.LogLevel != "" {
		cfg.LogLevel = parseLogLevelDefault(fc.LogLevel, cfg.LogLevel)
	}

	if os.Getenv("LIMINAL_CORS_ALLOWED_ORIGINS") == "" && len(fc.CORSAllowedOrigins) > 0 {
		cfg.CORSAllowedOrigins = fc.CORSAllowedOrigins
	}

	if os.Getenv("LIMINAL_KAFKA_BROKERS") == "" && len(fc.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = fc.KafkaBrokers
	}

	return cfg, nil
}

// parseLogLevelDefault parses a log level string from the ops file,
// falling back to fallback on an unrecognized value.
func parseLogLevelDefault(raw string, fallback slog.Level) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ToCORSConfig converts ServerConfig CORS fields to middleware.CORSConfig.
func (c ServerConfig) ToCORSConfig() middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowedOrigins: c.CORSAllowedOrigins,
		AllowedMethods: c.CORSAllowedMethods,
		AllowedHeaders: c.CORSAllowedHeaders,
		MaxAge:         c.CORSMaxAge,
	}
}

// Validate validates the server configuration.
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > MaxPort {
		return fmt.Errorf("%w: %d, must be between 1 and %d", ErrInvalidPort, c.Port, MaxPort)
	}

	if c.Host == "" {
		return ErrEmptyHost
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidReadTimeout, c.ReadTimeout)
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidWriteTimeout, c.WriteTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidShutdownTimeout, c.ShutdownTimeout)
	}

	return nil
}
