package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"atelier/internal/server"
)

// DefaultConfigDir is where LoadConfig looks for config.yml.
const DefaultConfigDir = "config"

// Config holds the application configuration
type Config struct {
	Server  server.Config `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`

	Storage StorageConfig `yaml:"storage"`
	PubSub  PubSubConfig  `yaml:"pubsub"`
	Auth    AuthConfig    `yaml:"auth"`
	Upload  UploadConfig  `yaml:"upload"`

	Views ViewList `yaml:"views"`
}

// LoadConfig loads the configuration from DefaultConfigDir and exits the
// process when it is invalid.
func LoadConfig() *Config {
	dir := DefaultConfigDir
	if v := os.Getenv("ATELIER_CONFIG_DIR"); v != "" {
		dir = v
	}
	cfg, err := Load(dir)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	return cfg
}

// Load reads configuration in this order: defaults -> config.yml ->
// config.local.yml -> ApplyDefaults -> ApplyEnvOverrides -> ResolvePaths ->
// Validate. Missing files are skipped; unreadable or malformed ones are errors.
func Load(configDir string) (*Config, error) {
	// Defaults first so YAML can override them, bool fields included.
	cfg := &Config{
		Server:  server.DefaultConfig(),
		Logging: DefaultLoggingConfig(),
		Storage: DefaultStorageConfig(),
		PubSub:  DefaultPubSubConfig(),
		Auth:    DefaultAuthConfig(),
		Upload:  DefaultUploadConfig(),
	}

	for _, name := range []string{"config.yml", "config.local.yml"} {
		if err := loadFile(filepath.Join(configDir, name), cfg); err != nil {
			return nil, err
		}
	}

	if err := ApplyServiceConfigs(configDir,
		&cfg.Server,
		&cfg.Logging,
		&cfg.Storage,
		&cfg.PubSub,
		&cfg.Auth,
		&cfg.Upload,
		&cfg.Views,
	); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", filename, err)
	}
	return nil
}
