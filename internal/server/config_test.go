package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.AdminRateLimit.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{HTTPPort: 9999, AllowedOrigins: []string{"https://atelier.example"}}
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 9999, cfg.HTTPPort)
	assert.Equal(t, 10*time.Second, cfg.HTTPReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.HTTPIdleTimeout)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"https://atelier.example"}, cfg.AllowedOrigins)
	assert.NotEmpty(t, cfg.AllowedMethods)
	assert.Equal(t, 30, cfg.AdminRateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.AdminRateLimit.Window)
}

func TestConfig_ApplyEnvOverrides(t *testing.T) {
	t.Setenv("ATELIER_HOST", "0.0.0.0")
	t.Setenv("ATELIER_HTTP_PORT", "9090")
	t.Setenv("ATELIER_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ATELIER_REQUEST_TIMEOUT", "2s")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnvOverrides())

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTPReadTimeout, "untagged fields keep their value")
}

func TestConfig_ApplyEnvOverrides_BadValue(t *testing.T) {
	t.Setenv("ATELIER_HTTP_PORT", "eighty")

	cfg := DefaultConfig()
	err := cfg.ApplyEnvOverrides()
	assert.ErrorContains(t, err, "server config")
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTPPort = 70000
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.RequestTimeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.AdminRateLimit.Requests = 0
	assert.Error(t, cfg.Validate())

	cfg.AdminRateLimit.Enabled = false
	assert.NoError(t, cfg.Validate())
}
