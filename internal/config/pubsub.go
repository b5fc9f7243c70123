package config

import (
	"fmt"
	"strings"
)

// PubSub providers.
const (
	PubSubNone   = "none"
	PubSubMemory = "memory"
	PubSubNATS   = "nats"
)

// PubSubConfig configures change notifications between writers and mirrors.
type PubSubConfig struct {
	Provider      string `yaml:"provider" env:"ATELIER_PUBSUB_PROVIDER"`
	NATSURL       string `yaml:"nats_url" env:"ATELIER_NATS_URL"`
	StreamName    string `yaml:"stream_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
	// Storage is the JetStream stream storage: "file" or "memory".
	Storage       string `yaml:"storage"`
	RetryAttempts int    `yaml:"retry_attempts"`
}

func DefaultPubSubConfig() PubSubConfig {
	return PubSubConfig{
		Provider:      PubSubMemory,
		NATSURL:       "nats://localhost:4222",
		StreamName:    "ATELIER",
		SubjectPrefix: "ATELIER.changes",
		Storage:       "memory",
		RetryAttempts: 3,
	}
}

func (c *PubSubConfig) ApplyDefaults() {
	d := DefaultPubSubConfig()
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.NATSURL == "" {
		c.NATSURL = d.NATSURL
	}
	if c.StreamName == "" {
		c.StreamName = d.StreamName
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = c.StreamName + ".changes"
	}
	if c.Storage == "" {
		c.Storage = d.Storage
	}
}

func (c *PubSubConfig) ApplyEnvOverrides() error {
	return parseEnv("pubsub", c)
}

func (c *PubSubConfig) ResolvePaths(_ string) { _ = c }

func (c *PubSubConfig) Validate() error {
	switch c.Provider {
	case PubSubNone, PubSubMemory:
	case PubSubNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("pubsub.nats_url is required for the nats provider")
		}
		if !strings.HasPrefix(c.SubjectPrefix, c.StreamName+".") {
			return fmt.Errorf("pubsub.subject_prefix %q must lie inside stream %q", c.SubjectPrefix, c.StreamName)
		}
	default:
		return fmt.Errorf("pubsub.provider must be none, memory or nats, got %q", c.Provider)
	}
	if c.Storage != "file" && c.Storage != "memory" {
		return fmt.Errorf("pubsub.storage must be file or memory, got %q", c.Storage)
	}
	return nil
}

// Enabled reports whether change notifications are published.
func (c *PubSubConfig) Enabled() bool {
	return c.Provider != PubSubNone
}
