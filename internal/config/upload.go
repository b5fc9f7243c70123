package config

import (
	"fmt"
	"net/url"
	"time"
)

// UploadConfig points at the asset host that stores uploaded images.
type UploadConfig struct {
	// Endpoint receives a multipart POST. Empty disables uploads.
	Endpoint string `yaml:"endpoint" env:"ATELIER_UPLOAD_ENDPOINT"`
	APIKey   string `yaml:"api_key" env:"ATELIER_UPLOAD_API_KEY"`
	// Preset is sent as upload_preset, for hosts that need one.
	Preset    string        `yaml:"preset" env:"ATELIER_UPLOAD_PRESET"`
	FileField string        `yaml:"file_field"`
	MaxBytes  int64         `yaml:"max_bytes"`
	Timeout   time.Duration `yaml:"timeout"`
}

func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		FileField: "file",
		MaxBytes:  10 << 20,
		Timeout:   30 * time.Second,
	}
}

func (c *UploadConfig) ApplyDefaults() {
	d := DefaultUploadConfig()
	if c.FileField == "" {
		c.FileField = d.FileField
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = d.MaxBytes
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
}

func (c *UploadConfig) ApplyEnvOverrides() error {
	return parseEnv("upload", c)
}

func (c *UploadConfig) ResolvePaths(_ string) { _ = c }

func (c *UploadConfig) Validate() error {
	if c.Endpoint == "" {
		return nil
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("upload.endpoint must be an http(s) URL, got %q", c.Endpoint)
	}
	if c.MaxBytes < 0 {
		return fmt.Errorf("upload.max_bytes cannot be negative")
	}
	return nil
}

// Enabled reports whether an asset host is configured.
func (c *UploadConfig) Enabled() bool {
	return c.Endpoint != ""
}
