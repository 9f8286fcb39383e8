package config

import (
	"fmt"

	"github.com/kbukum/runkit/validation"
	"github.com/kbukum/runkit/version"
)

// BaseConfig identifies the running application in logs, traces and /health.
type BaseConfig struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	// Version defaults to the version stamped into the binary.
	Version string `yaml:"version" mapstructure:"version"`
}

// ApplyDefaults applies default values to base configuration.
func (c *BaseConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "runkit"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Version == "" {
		c.Version = version.Version
	}
}

// IsProduction reports whether the application runs in production.
func (c *BaseConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Validate validates base configuration.
func (c *BaseConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}
