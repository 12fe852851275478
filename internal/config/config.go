// Package config loads and manages the shopctl configuration file stored at
// ~/.shopdesk/config.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shopdesk/shopdesk/internal/storage"
)

// DefaultConfigDir is the directory under the user's home for CLI state.
const DefaultConfigDir = ".shopdesk"

// DefaultConfigFile is the config file name within the config directory.
const DefaultConfigFile = "config.yaml"

// DefaultOrigin is where the console is served from when nothing else is
// configured. It doubles as the compiled-in API default.
const DefaultOrigin = "http://localhost:8080"

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 15 * time.Second

// Environment overrides.
const (
	EnvConfig    = "SHOPDESK_CONFIG"
	EnvOrigin    = "SHOPDESK_ORIGIN"
	EnvStorage   = "SHOPDESK_STORAGE"
	EnvRedisAddr = "SHOPDESK_REDIS_ADDR"
)

// RedisConfig configures the shared-session backend.
type RedisConfig struct {
	URL      string `yaml:"url,omitempty"`
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// Config represents the contents of ~/.shopdesk/config.yaml.
type Config struct {
	// Origin plays the part of the page origin: requests go here unless a
	// base-URL override is stored.
	Origin    string      `yaml:"origin"`
	Storage   string      `yaml:"storage"`
	StateFile string      `yaml:"state_file,omitempty"`
	Redis     RedisConfig `yaml:"redis,omitempty"`
	Timeout   string      `yaml:"timeout,omitempty"`
	LogLevel  string      `yaml:"log_level,omitempty"`

	path string
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir), nil
}

// Path returns the config file location: $SHOPDESK_CONFIG or
// ~/.shopdesk/config.yaml.
func Path() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return p, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// Load reads the config from Path and applies environment overrides.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path, returning defaults when the file does
// not exist. Environment overrides are applied last.
func LoadFrom(path string) (*Config, error) {
	cfg := defaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvOrigin); v != "" {
		c.Origin = v
	}
	if v := os.Getenv(EnvStorage); v != "" {
		c.Storage = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Redis.Addr = v
	}
}

// Validate rejects values that would only fail later.
func (c *Config) Validate() error {
	switch c.Storage {
	case storage.BackendFile, storage.BackendRedis, storage.BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage %q (want file, redis or memory)", c.Storage)
	}
	if c.Storage == storage.BackendRedis && c.Redis.Addr == "" && c.Redis.URL == "" {
		return fmt.Errorf("config: storage is redis but redis.addr is empty")
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return fmt.Errorf("config: invalid timeout %q: %w", c.Timeout, err)
		}
	}
	if c.LogLevel != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
		}
	}
	return nil
}

// Save writes the config back to the file it was loaded from.
func Save(cfg *Config) error {
	path := cfg.path
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to path.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// File returns the path the config was loaded from.
func (c *Config) File() string { return c.path }

// RequestTimeout returns the parsed timeout or DefaultTimeout.
func (c *Config) RequestTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return DefaultTimeout
}

// Level returns the configured slog level, defaulting to warn so command
// output stays clean.
func (c *Config) Level() slog.Level {
	l := slog.LevelWarn
	if c.LogLevel != "" {
		_ = l.UnmarshalText([]byte(c.LogLevel))
	}
	return l
}

// StorageOptions maps the config onto storage.Open.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:   c.Storage,
		StateFile: c.StateFile,
		Redis: storage.RedisOptions{
			URL:      c.Redis.URL,
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
		},
	}
}

// Set updates a single dotted key, as used by `shopctl config set`.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "origin":
		c.Origin = strings.TrimRight(value, "/")
	case "storage":
		c.Storage = value
	case "state_file":
		c.StateFile = value
	case "timeout":
		c.Timeout = value
	case "log_level":
		c.LogLevel = value
	case "redis.url":
		c.Redis.URL = value
	case "redis.addr":
		c.Redis.Addr = value
	case "redis.password":
		c.Redis.Password = value
	case "redis.prefix":
		c.Redis.Prefix = value
	case "redis.db":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("redis.db must be an integer: %w", err)
		}
		c.Redis.DB = n
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return c.Validate()
}

func defaultConfig() *Config {
	return &Config{
		Origin:  DefaultOrigin,
		Storage: storage.BackendFile,
	}
}
