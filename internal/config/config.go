// Package config loads the cognilearn client configuration.
//
// Sources are applied in order, later ones winning: built-in defaults, the
// YAML config file, an optional .env file, then COGNILEARN_* environment
// variables. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/me/cognilearn/internal/logging"
)

// Store drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// DefaultServer is the backend address as seen from an Android emulator.
const DefaultServer = "http://10.0.2.2:8000"

// StoreConfig selects and configures the credential store backend.
type StoreConfig struct {
	Driver       string `yaml:"driver"`        // file, sqlite, bolt, redis, memory
	Path         string `yaml:"path"`          // directory (file) or database file (sqlite, bolt)
	RedisURL     string `yaml:"redis_url"`     // redis://host:port/db
	RedisPrefix  string `yaml:"redis_prefix"`  // key prefix inside redis
	EncryptToken bool   `yaml:"encrypt_token"` // seal the token at rest
	Key          string `yaml:"key"`           // base64 32-byte key; empty uses the built-in key
}

// ClientConfig holds configuration for the cognilearn client.
type ClientConfig struct {
	Server    string        `yaml:"server"`
	Timeout   time.Duration `yaml:"timeout"` // 0 means no client-side timeout
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	Store     StoreConfig   `yaml:"store"`
}

// Dir returns the per-user configuration directory (~/.cognilearn).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".cognilearn"), nil
}

// DefaultClientConfig returns the defaults. The store lives under Dir().
func DefaultClientConfig() ClientConfig {
	storePath := "credentials"
	if dir, err := Dir(); err == nil {
		storePath = filepath.Join(dir, "credentials")
	}
	return ClientConfig{
		Server:    DefaultServer,
		LogLevel:  "warn",
		LogFormat: "text",
		Store: StoreConfig{
			Driver:       DriverFile,
			Path:         storePath,
			RedisPrefix:  "cognilearn:",
			EncryptToken: true,
		},
	}
}

// Load builds a config from defaults, the YAML file at path and the
// environment. A missing file is not an error. envFile names an optional
// dotenv file; empty skips it.
func Load(path, envFile string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if envFile != "" {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *ClientConfig) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	str("COGNILEARN_SERVER", &c.Server)
	str("COGNILEARN_LOG_LEVEL", &c.LogLevel)
	str("COGNILEARN_LOG_FORMAT", &c.LogFormat)
	str("COGNILEARN_STORE", &c.Store.Driver)
	str("COGNILEARN_STORE_PATH", &c.Store.Path)
	str("COGNILEARN_REDIS_URL", &c.Store.RedisURL)
	str("COGNILEARN_STORE_KEY", &c.Store.Key)

	if v, ok := lookup("COGNILEARN_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("COGNILEARN_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v, ok := lookup("COGNILEARN_ENCRYPT_TOKEN"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COGNILEARN_ENCRYPT_TOKEN: %w", err)
		}
		c.Store.EncryptToken = b
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.Server) == "" {
		return errors.New("server URL is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if !logging.ValidFormat(c.LogFormat) {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	switch c.Store.Driver {
	case DriverFile, DriverSQLite, DriverBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("store driver %s requires a path", c.Store.Driver)
		}
	case DriverRedis:
		if c.Store.RedisURL == "" {
			return errors.New("store driver redis requires redis_url")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}
