// Package config holds the tunables of a fiber scheduler and loads them from
// YAML files.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"

	"github.com/tinygo-org/fibers/internal/logging"
)

const (
	// DefaultStackSize is the stack size of every task unless configured
	// otherwise.
	DefaultStackSize = 64 * bytesize.KB

	// MinStackSize is the smallest stack size Validate accepts.
	MinStackSize = 4 * bytesize.KB

	// DefaultMaxTasks is the number of tasks that may be live at once,
	// not counting the main context.
	DefaultMaxTasks = 64
)

// Config holds configuration for a scheduler.
type Config struct {
	// StackSize is the usable stack size of every task, e.g. "64KB".
	StackSize bytesize.ByteSize `yaml:"stack_size"`

	// MaxTasks bounds the number of live tasks. Zero lets the task arena
	// grow without bound.
	MaxTasks int `yaml:"max_tasks"`

	Log LogConfig `yaml:"log"`
}

// LogConfig selects the logger the CLI builds.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		StackSize: DefaultStackSize,
		MaxTasks:  DefaultMaxTasks,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// UnmarshalYAML reads stack_size as a size with a unit, such as "64KB".
// Fields that are not set keep their current values.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	raw := struct {
		StackSize string    `yaml:"stack_size"`
		MaxTasks  int       `yaml:"max_tasks"`
		Log       LogConfig `yaml:"log"`
	}{
		MaxTasks: c.MaxTasks,
		Log:      c.Log,
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if raw.StackSize != "" {
		size, err := bytesize.Parse(raw.StackSize)
		if err != nil {
			return fmt.Errorf("stack_size: %w", err)
		}
		c.StackSize = size
	}
	c.MaxTasks = raw.MaxTasks
	c.Log = raw.Log
	return nil
}

// Load reads a YAML config file. Fields missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration can be used to build a scheduler.
func (c Config) Validate() error {
	var errs []error
	if c.StackSize < MinStackSize {
		errs = append(errs, fmt.Errorf("stack_size %s is below the minimum of %s", c.StackSize, MinStackSize))
	}
	if c.MaxTasks < 0 {
		errs = append(errs, fmt.Errorf("max_tasks must not be negative, got %d", c.MaxTasks))
	}
	if !logging.ValidFormat(c.Log.Format) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
