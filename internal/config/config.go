// Package config loads docket configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/docket/internal/model"
	"github.com/roach88/docket/internal/store"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "docket.yaml"

// Config is the top-level configuration.
type Config struct {
	Env      string         `yaml:"env"`
	Schemas  string         `yaml:"schemas"`
	Workers  int            `yaml:"workers"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DatabaseConfig selects the store file and row codec.
type DatabaseConfig struct {
	Path  string `yaml:"path"`
	Codec string `yaml:"codec"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the metrics text file. An empty File disables
// it.
type MetricsConfig struct {
	File string `yaml:"file"`
}

// Load reads path, expands ${VAR} references, applies DOCKET_* overrides
// and defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(&cfg)
}

// LoadFromEnv builds a configuration from defaults and DOCKET_* variables.
func LoadFromEnv() (*Config, error) {
	return finish(&Config{})
}

// LoadWithFallback loads path when it exists and falls back to LoadFromEnv
// otherwise. An explicitly named file that is missing is an error; the
// default path may be absent.
func LoadWithFallback(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err == nil {
		return Load(path)
	} else if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LoadFromEnv()
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCKET_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("DOCKET_SCHEMAS"); v != "" {
		cfg.Schemas = v
	}
	if v := os.Getenv("DOCKET_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("DOCKET_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DOCKET_CODEC"); v != "" {
		cfg.Database.Codec = v
	}

	if v := os.Getenv("DOCKET_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DOCKET_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("DOCKET_METRICS_FILE"); v != "" {
		cfg.Metrics.File = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = model.EnvProduction
	}
	if cfg.Schemas == "" {
		cfg.Schemas = "schemas"
	}
	if cfg.Workers == 0 {
		cfg.Workers = 8
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "docket.db"
	}
	if cfg.Database.Codec == "" {
		cfg.Database.Codec = store.CodecJSON
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Env) != cfg.Env {
		return fmt.Errorf("env must not contain surrounding spaces, got %q", cfg.Env)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if _, err := store.CodecByName(cfg.Database.Codec); err != nil {
		return fmt.Errorf("database.codec: %w", err)
	}
	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}
	return nil
}

// Development reports whether destructive operations are enabled.
func (c *Config) Development() bool {
	return c.Env == model.EnvDevelopment
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.Logging.Level)
	return l
}

// ParseLevel resolves debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}
