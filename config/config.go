// Package config loads docproxy configuration from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/nasdf/docproxy/logging"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override file values.
const EnvPrefix = "DOCPROXY_"

// Config is the top level docproxy configuration.
type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Log       logging.Config  `koanf:"log"`
	Transport TransportConfig `koanf:"transport"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Server    ServerConfig    `koanf:"server"`
}

// StorageConfig selects the block storage backend.
type StorageConfig struct {
	// Backend is "memory" or "badger".
	Backend string `koanf:"backend" validate:"oneof=memory badger"`
	// Path is the badger data directory.
	Path       string `koanf:"path" validate:"required_if=Backend badger"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// TransportConfig controls how documents reach the store.
type TransportConfig struct {
	// Async runs store calls on separate goroutines. Lazy field loading is
	// disabled when set.
	Async       bool  `koanf:"async"`
	MaxInFlight int64 `koanf:"max_in_flight" validate:"gte=1"`
	// Remote is the base URL of a docproxy server. The storage section is
	// ignored when set.
	Remote string `koanf:"remote" validate:"omitempty,http_url"`
}

// MetricsConfig controls transport instrumentation.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// ServerConfig controls the HTTP server started by the serve command.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required,hostname_port"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend: "memory",
		},
		Log: logging.DefaultConfig(),
		Transport: TransportConfig{
			MaxInFlight: 8,
		},
		Server: ServerConfig{
			Addr: "localhost:7420",
		},
	}
}

var validate = validator.New()

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// Load reads the YAML file at path, if any, then applies environment overrides.
func Load(path string) (*Config, error) {
	var content []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		content = data
	}
	return Parse(content)
}

// Parse parses the YAML content then applies environment overrides.
//
// Environment variables map to keys by splitting on the first underscore
// after the prefix: DOCPROXY_TRANSPORT_MAX_IN_FLIGHT -> transport.max_in_flight.
func Parse(content []byte) (*Config, error) {
	k := koanf.New(".")
	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}
