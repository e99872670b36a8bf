// Package config provides configuration for the replay service.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the replay service configuration.
type Config struct {
	// Server settings
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Database
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:replayer.db?cache=shared&mode=rwc"`

	// Remote trace source. When empty, replay data is projected from the
	// local recording store.
	TraceAPIURL       string        `env:"TRACE_API_URL"`
	TraceAPIToken     string        `env:"TRACE_API_TOKEN"`
	TraceFetchTimeout time.Duration `env:"TRACE_FETCH_TIMEOUT" envDefault:"5s"`
	TraceFetchRetries int           `env:"TRACE_FETCH_RETRIES" envDefault:"3"`

	// Replay data cache, disabled when REDIS_URL is empty
	RedisURL       string        `env:"REDIS_URL"`
	ReplayCacheTTL time.Duration `env:"REPLAY_CACHE_TTL" envDefault:"10m"`

	// Payload redaction policy, the built-in policy when empty
	PolicyFile string `env:"POLICY_FILE"`

	// Playback
	TickInterval       time.Duration `env:"TICK_INTERVAL" envDefault:"50ms"`
	MaxSessions        int           `env:"MAX_SESSIONS" envDefault:"256"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`

	// WebSocket settings
	WSPingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	WSWriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	WSReadTimeout    time.Duration `env:"WS_READ_TIMEOUT" envDefault:"60s"`
	WSMaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`
	WSCommandRate    float64       `env:"WS_COMMAND_RATE" envDefault:"20"`
	WSCommandBurst   int           `env:"WS_COMMAND_BURST" envDefault:"10"`

	// Metrics
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.HTTPPort <= 0 || c.HTTPPort > 65535:
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort)
	case c.TickInterval <= 0:
		return fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval)
	case c.MaxSessions <= 0:
		return fmt.Errorf("MAX_SESSIONS must be positive, got %d", c.MaxSessions)
	case c.TraceFetchRetries < 0:
		return fmt.Errorf("TRACE_FETCH_RETRIES must not be negative, got %d", c.TraceFetchRetries)
	case c.WSPingInterval <= 0:
		return fmt.Errorf("WS_PING_INTERVAL must be positive, got %s", c.WSPingInterval)
	case c.WSCommandRate <= 0 || c.WSCommandBurst <= 0:
		return fmt.Errorf("WS_COMMAND_RATE and WS_COMMAND_BURST must be positive")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
