package client

import (
	"time"

	"github.com/kbukum/runkit/validation"
)

const defaultTimeout = 30 * time.Second

// Config configures a client of a runkit server.
type Config struct {
	// BaseURL is the server root, e.g. "http://runkit:8080".
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	// Timeout bounds invoke and batch calls. Streams are bounded only by
	// the caller's context.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	// Headers are sent with every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
	// Token is sent as a bearer Authorization header.
	Token string `yaml:"token" mapstructure:"token"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
