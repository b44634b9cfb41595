// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/hpp2334/hol-runtime/application/validation"
)

// DefaultChunkSize is the slice size hosts use when streaming a file to
// the digest engine.
const DefaultChunkSize = 300 * 1024 * 1024

// Config holds the HOL_* environment settings.
type Config struct {
	Strategy       string `env:"HOL_STRATEGY" envDefault:"interleaved" validate:"oneof=interleaved sequential"`
	Scheduler      string `env:"HOL_SCHEDULER" envDefault:"cooperative" validate:"oneof=cooperative pool"`
	LogLevel       string `env:"HOL_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	ChunkSize      int    `env:"HOL_CHUNK_SIZE" envDefault:"314572800" validate:"gt=0"`
	Workers        int    `env:"HOL_WORKERS" envDefault:"0" validate:"gte=0"`
	MaxRequestSize int    `env:"HOL_MAX_REQUEST_SIZE" envDefault:"0" validate:"gte=0"`
}

// Load reads the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads settings from environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	c.Strategy = strings.ToLower(c.Strategy)
	c.Scheduler = strings.ToLower(c.Scheduler)
	c.LogLevel = strings.ToLower(c.LogLevel)
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
