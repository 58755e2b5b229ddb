// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
)

const (
	// DefaultParallelism is the number of jobs run at once when not configured.
	DefaultParallelism = 10
	// DefaultGracePeriod is how long to wait for workers after an interrupt.
	DefaultGracePeriod = 5 * time.Second
)

var (
	// ErrReadConfig is returned when the configuration file cannot be read.
	ErrReadConfig = errors.New("failed to read configuration file")
	// ErrInvalidYaml is returned when the configuration is not valid YAML for Config.
	ErrInvalidYaml = errors.New("invalid YAML")
	// ErrInvalidConfig is returned when a value is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// FsFactory returns the filesystem configuration files are read from.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// Config holds the settings for a run.
type Config struct {
	Parallelism    int               `yaml:"parallelism"`               // Maximum concurrent jobs, 0 is unbounded
	GracePeriod    time.Duration     `yaml:"grace_period"`              // Wait for workers after an interrupt, 0 waits forever
	JobTimeout     time.Duration     `yaml:"job_timeout,omitempty"`     // Per-job timeout, 0 disables it
	Shell          string            `yaml:"shell,omitempty"`           // Shell used to run Command
	MetricsAddress string            `yaml:"metrics_address,omitempty"` // Address to serve Prometheus metrics on
	Command        string            `yaml:"command,omitempty"`         // Command line run once per input line
	Env            map[string]string `yaml:"env,omitempty"`             // Extra environment for Command
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	return &Config{
		Parallelism: DefaultParallelism,
		GracePeriod: DefaultGracePeriod,
	}
}

// Load reads the file at path from the FsFactory filesystem and parses it
// on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := afero.ReadFile(FsFactory(), path)
	if err != nil {
		return nil, errors.Join(ErrReadConfig, err)
	}

	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidYaml, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every value is in range.
func (c *Config) Validate() error {
	var err error

	if c.Parallelism < 0 {
		err = errors.Join(err, fmt.Errorf("%w: parallelism must not be negative, got %d", ErrInvalidConfig, c.Parallelism))
	}

	if c.GracePeriod < 0 {
		err = errors.Join(err, fmt.Errorf("%w: grace_period must not be negative, got %s", ErrInvalidConfig, c.GracePeriod))
	}

	if c.JobTimeout < 0 {
		err = errors.Join(err, fmt.Errorf("%w: job_timeout must not be negative, got %s", ErrInvalidConfig, c.JobTimeout))
	}

	return err
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
