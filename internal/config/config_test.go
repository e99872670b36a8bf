package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 256, cfg.MaxSessions)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, 3, cfg.TraceFetchRetries)
	assert.Empty(t, cfg.TraceAPIURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("TRACE_API_URL", "http://traces:8080")
	t.Setenv("TRACE_FETCH_TIMEOUT", "2s")
	t.Setenv("TICK_INTERVAL", "16ms")
	t.Setenv("MAX_SESSIONS", "4")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, "http://traces:8080", cfg.TraceAPIURL)
	assert.Equal(t, 2*time.Second, cfg.TraceFetchTimeout)
	assert.Equal(t, 16*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 4, cfg.MaxSessions)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"HTTP_PORT", "notanumber"},
		{"HTTP_PORT", "70000"},
		{"TICK_INTERVAL", "0s"},
		{"MAX_SESSIONS", "0"},
		{"TRACE_FETCH_RETRIES", "-1"},
		{"WS_COMMAND_RATE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
