package config

import (
	"fmt"
	"log/slog"
)

// AuthConfig configures verification of bearer tokens on admin routes. The
// role claim is read, never computed.
type AuthConfig struct {
	// Secret is the HMAC key of incoming JWTs. Empty disables admin routes.
	Secret    string `yaml:"secret" env:"ATELIER_AUTH_SECRET"`
	Issuer    string `yaml:"issuer" env:"ATELIER_AUTH_ISSUER"`
	RoleClaim string `yaml:"role_claim"`
	AdminRole string `yaml:"admin_role"`
}

func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		RoleClaim: "role",
		AdminRole: "admin",
	}
}

func (c *AuthConfig) ApplyDefaults() {
	d := DefaultAuthConfig()
	if c.RoleClaim == "" {
		c.RoleClaim = d.RoleClaim
	}
	if c.AdminRole == "" {
		c.AdminRole = d.AdminRole
	}
}

func (c *AuthConfig) ApplyEnvOverrides() error {
	return parseEnv("auth", c)
}

func (c *AuthConfig) ResolvePaths(_ string) { _ = c }

func (c *AuthConfig) Validate() error {
	if c.Secret == "" {
		slog.Warn("auth.secret is empty: admin routes are disabled")
		return nil
	}
	if len(c.Secret) < 32 {
		return fmt.Errorf("auth.secret must be at least 32 bytes")
	}
	return nil
}

// AdminEnabled reports whether admin routes can authenticate anyone.
func (c *AuthConfig) AdminEnabled() bool {
	return c.Secret != ""
}
