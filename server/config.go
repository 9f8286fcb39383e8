package server

import (
	"fmt"
	"time"

	"github.com/kbukum/runkit/server/middleware"
	"github.com/kbukum/runkit/validation"
)

// Config holds HTTP server configuration.
//
//	server:
//	  port: 8080
//	  read_timeout: 15s
//	  max_body_size: 10MB
//	  cors:
//	    allowed_origins: ["https://app.example.com"]
//	  auth:
//	    secret: ${RUNKIT_SERVER_AUTH_SECRET}
//	  rate_limit:
//	    rate: 20
type Config struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"gte=0"`
	// ShutdownTimeout bounds graceful shutdown of in-flight runs.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gte=0"`
	// MaxBodySize caps request bodies, e.g. "10MB". Empty disables the limit.
	MaxBodySize string                     `yaml:"max_body_size" mapstructure:"max_body_size" validate:"omitempty,bytesize"`
	CORS        middleware.CORSConfig      `yaml:"cors" mapstructure:"cors"`
	Auth        middleware.AuthConfig      `yaml:"auth" mapstructure:"auth"`
	RateLimit   middleware.RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ApplyDefaults sets default values for unset fields. The write timeout
// stays 0 so streamed runs are not cut off.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "10MB"
	}
	c.CORS.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.RateLimit.ApplyDefaults()
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
