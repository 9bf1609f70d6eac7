// Package config provides configuration management for hrdesk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
)

const (
	// DirName is the per-project hrdesk directory.
	DirName = ".hrdesk"
	// ConfigFileName is the config file inside DirName.
	ConfigFileName = "config.yaml"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config is the full hrdesk configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Queries   QueriesConfig   `yaml:"queries"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Driver is memory, file, sqlite, postgres or redis.
	Driver string `yaml:"driver"`
	// Path is the snapshot file (file driver) or database file (sqlite).
	Path string `yaml:"path"`
	// DSN is the postgres connection string.
	DSN   string      `yaml:"dsn"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis driver.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// SchedulerConfig controls periodic ticks.
type SchedulerConfig struct {
	// Interval between ticks.
	Interval time.Duration `yaml:"interval"`
	// StartupDelay before the first tick after start.
	StartupDelay time.Duration `yaml:"startup_delay"`
	// DueSoon is how far ahead a due reminder is sent.
	DueSoon time.Duration `yaml:"due_soon"`
}

// QueriesConfig holds query defaults.
type QueriesConfig struct {
	UpcomingDays int `yaml:"upcoming_days"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// RateLimit is requests per second per client; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: DriverFile,
			Path:   filepath.Join(DirName, "tasks.json"),
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "hrdesk:snapshot",
			},
		},
		Scheduler: SchedulerConfig{
			Interval:     time.Hour,
			StartupDelay: 5 * time.Second,
			DueSoon:      24 * time.Hour,
		},
		Queries: QueriesConfig{
			UpcomingDays: 7,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8080",
			RateLimit: 20,
			RateBurst: 40,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFrom reads a config file over the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the config as YAML, creating the directory if needed.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverFile, DriverSQLite, DriverRedis:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return deskerrors.ErrConfigInvalid("storage.dsn", "postgres storage requires a DSN")
		}
	default:
		return deskerrors.ErrConfigInvalid("storage.driver",
			fmt.Sprintf("unknown driver %q (want memory, file, sqlite, postgres or redis)", c.Storage.Driver))
	}
	if (c.Storage.Driver == DriverFile || c.Storage.Driver == DriverSQLite) && c.Storage.Path == "" {
		return deskerrors.ErrConfigInvalid("storage.path", "file and sqlite storage require a path")
	}
	if c.Scheduler.Interval <= 0 {
		return deskerrors.ErrConfigInvalid("scheduler.interval", "must be positive")
	}
	if c.Scheduler.StartupDelay < 0 {
		return deskerrors.ErrConfigInvalid("scheduler.startup_delay", "must not be negative")
	}
	if c.Scheduler.DueSoon < 0 {
		return deskerrors.ErrConfigInvalid("scheduler.due_soon", "must not be negative")
	}
	if c.Queries.UpcomingDays < 0 {
		return deskerrors.ErrConfigInvalid("queries.upcoming_days", "must not be negative")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return deskerrors.ErrConfigInvalid("server.rate_limit", "must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return deskerrors.ErrConfigInvalid("log.level", fmt.Sprintf("unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return deskerrors.ErrConfigInvalid("log.format", fmt.Sprintf("unknown format %q", c.Log.Format))
	}
	return nil
}

// ProjectConfigPath returns the config file path under dir.
func ProjectConfigPath(dir string) string {
	return filepath.Join(dir, DirName, ConfigFileName)
}
