// Package config loads the triangle-count runtime configuration from YAML
// files and environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-triangles/pkg/allocation"
	"github.com/dd0wney/cluso-triangles/pkg/logging"
	"github.com/dd0wney/cluso-triangles/pkg/parallel"
)

// Tier selection values
const (
	TierAuto     = "auto"
	TierStandard = "standard"
	TierCompact  = "compact"
)

// Executor selection values
const (
	ExecutorGroup = "group"
	ExecutorPool  = "pool"
)

// Environment variables read by ApplyEnv
const (
	EnvLogLevel    = "LOG_LEVEL"
	EnvConcurrency = "TRIANGLES_CONCURRENCY"
	EnvTier        = "TRIANGLES_TIER"
	EnvMemoryLimit = "TRIANGLES_MEMORY_LIMIT"
)

// Config is the runtime configuration of a triangle-count run
type Config struct {
	Concurrency         int           `yaml:"concurrency" validate:"min=1,max=4096"`
	Tier                string        `yaml:"tier" validate:"oneof=auto standard compact"`
	Executor            string        `yaml:"executor" validate:"oneof=group pool"`
	MemoryLimitBytes    int64         `yaml:"memory_limit_bytes" validate:"min=0"`
	LogLevel            string        `yaml:"log_level" validate:"loglevel"`
	ProgressStepPercent int           `yaml:"progress_step_percent" validate:"min=1,max=100"`
	TopN                int           `yaml:"top_n" validate:"min=0,max=100000"`
	Timeout             time.Duration `yaml:"timeout" validate:"min=0"`
	MetricsFile         string        `yaml:"metrics_file"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Concurrency:         parallel.MaxConcurrency(),
		Tier:                TierAuto,
		Executor:            ExecutorGroup,
		LogLevel:            "info",
		ProgressStepPercent: 10,
		TopN:                10,
	}
}

// Load reads a YAML config file on top of the defaults, applies the
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.Decode(data); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges YAML data into cfg. Unknown keys are rejected.
func (c *Config) Decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables resolved by lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvTier); ok && v != "" {
		c.Tier = v
	}
	if v, ok := lookup(EnvConcurrency); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvConcurrency, v)
		}
		c.Concurrency = n
	}
	if v, ok := lookup(EnvMemoryLimit); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvMemoryLimit, v)
		}
		c.MemoryLimitBytes = n
	}
	return nil
}

// Level returns the configured log level
func (c *Config) Level() logging.Level {
	return logging.ParseLevel(c.LogLevel)
}

// Tracker returns an allocation tracker for the compact strategy. A zero
// memory limit means 80% of physical memory.
func (c *Config) Tracker() *allocation.LimitedTracker {
	limit := c.MemoryLimitBytes
	if limit == 0 {
		limit = allocation.DefaultLimit()
	}
	return allocation.NewTracker(limit)
}
