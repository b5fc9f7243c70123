package config

import (
	"fmt"
	"time"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendRealtime = "realtime"
)

// StorageConfig selects where collections live.
type StorageConfig struct {
	Backend  string         `yaml:"backend" env:"ATELIER_STORAGE_BACKEND"`
	Memory   MemoryConfig   `yaml:"memory"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Realtime RealtimeConfig `yaml:"realtime"`
}

// MemoryConfig configures the in-process store.
type MemoryConfig struct {
	// SeedFile is a YAML map of collection name to documents loaded at start.
	SeedFile string `yaml:"seed_file" env:"ATELIER_SEED_FILE"`
}

// MongoConfig configures the MongoDB store.
type MongoConfig struct {
	URI      string `yaml:"uri" env:"ATELIER_MONGO_URI"`
	Database string `yaml:"database" env:"ATELIER_MONGO_DATABASE"`

	// ChangeStreams needs a replica set. When false, mirrors refetch on
	// change notifications from pubsub instead.
	ChangeStreams bool `yaml:"change_streams" env:"ATELIER_MONGO_CHANGE_STREAMS"`

	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// RealtimeConfig configures the websocket source. It is read-only: admin
// writes are disabled with this backend.
type RealtimeConfig struct {
	URL           string        `yaml:"url" env:"ATELIER_REALTIME_URL"`
	Token         string        `yaml:"token" env:"ATELIER_REALTIME_TOKEN"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Backend: BackendMemory,
		Mongo: MongoConfig{
			URI:           "mongodb://localhost:27017",
			Database:      "atelier",
			ChangeStreams: true,
			FetchTimeout:  10 * time.Second,
			RetryInterval: 5 * time.Second,
		},
		Realtime: RealtimeConfig{
			RetryInterval: 2 * time.Second,
		},
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *StorageConfig) ApplyDefaults() {
	d := DefaultStorageConfig()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = d.Mongo.Database
	}
	if c.Mongo.FetchTimeout == 0 {
		c.Mongo.FetchTimeout = d.Mongo.FetchTimeout
	}
	if c.Mongo.RetryInterval == 0 {
		c.Mongo.RetryInterval = d.Mongo.RetryInterval
	}
	if c.Realtime.RetryInterval == 0 {
		c.Realtime.RetryInterval = d.Realtime.RetryInterval
	}
}

func (c *StorageConfig) ApplyEnvOverrides() error {
	return parseEnv("storage", c)
}

func (c *StorageConfig) ResolvePaths(configDir string) {
	c.Memory.SeedFile = resolvePath(configDir, c.Memory.SeedFile)
}

func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return fmt.Errorf("storage.mongo needs uri and database")
		}
	case BackendRealtime:
		if c.Realtime.URL == "" {
			return fmt.Errorf("storage.realtime.url is required")
		}
	default:
		return fmt.Errorf("storage.backend must be memory, mongo or realtime, got %q", c.Backend)
	}
	return nil
}

// Writable reports whether the backend accepts admin writes.
func (c *StorageConfig) Writable() bool {
	return c.Backend != BackendRealtime
}
