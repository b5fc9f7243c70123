package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"atelier/internal/server/ratelimit"
)

// Config holds the configuration of the HTTP server.
type Config struct {
	Host string `yaml:"host" env:"ATELIER_HOST"`

	HTTPPort         int           `yaml:"http_port" env:"ATELIER_HTTP_PORT"`
	HTTPReadTimeout  time.Duration `yaml:"http_read_timeout"`
	HTTPWriteTimeout time.Duration `yaml:"http_write_timeout"`
	HTTPIdleTimeout  time.Duration `yaml:"http_idle_timeout"`

	// RequestTimeout bounds one-shot API requests. Streams are exempt.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"ATELIER_REQUEST_TIMEOUT"`

	// CORS
	EnableCORS       bool     `yaml:"enable_cors" env:"ATELIER_ENABLE_CORS"`
	AllowedOrigins   []string `yaml:"allowed_origins" env:"ATELIER_ALLOWED_ORIGINS" envSeparator:","`
	AllowCredentials bool     `yaml:"allow_credentials"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	CORSMaxAge       int      `yaml:"cors_max_age"`

	// AdminRateLimit guards the admin write routes, keyed by client IP.
	AdminRateLimit ratelimit.Config `yaml:"admin_rate_limit"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig returns safe defaults for development.
func DefaultConfig() Config {
	return Config{
		Host:             "localhost",
		HTTPPort:         8080,
		HTTPReadTimeout:  10 * time.Second,
		HTTPWriteTimeout: 10 * time.Second,
		HTTPIdleTimeout:  60 * time.Second,
		RequestTimeout:   5 * time.Second,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "If-None-Match", "X-Request-ID"},
		CORSMaxAge:       600,
		AdminRateLimit:   ratelimit.DefaultConfig(),
		ShutdownTimeout:  10 * time.Second,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.HTTPReadTimeout == 0 {
		c.HTTPReadTimeout = defaults.HTTPReadTimeout
	}
	if c.HTTPWriteTimeout == 0 {
		c.HTTPWriteTimeout = defaults.HTTPWriteTimeout
	}
	if c.HTTPIdleTimeout == 0 {
		c.HTTPIdleTimeout = defaults.HTTPIdleTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = defaults.AllowedMethods
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = defaults.AllowedHeaders
	}
	if c.CORSMaxAge == 0 {
		c.CORSMaxAge = defaults.CORSMaxAge
	}
	if c.AdminRateLimit.Requests == 0 {
		c.AdminRateLimit.Requests = defaults.AdminRateLimit.Requests
	}
	if c.AdminRateLimit.Window == 0 {
		c.AdminRateLimit.Window = defaults.AdminRateLimit.Window
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

// ApplyEnvOverrides applies ATELIER_* environment variables.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	return nil
}

// ResolvePaths is a no-op: the server config holds no paths.
func (c *Config) ResolvePaths(_ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port out of range: %d", c.HTTPPort)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must not be negative")
	}
	if c.AdminRateLimit.Enabled && (c.AdminRateLimit.Requests <= 0 || c.AdminRateLimit.Window <= 0) {
		return fmt.Errorf("server.admin_rate_limit needs positive requests and window")
	}
	return nil
}
