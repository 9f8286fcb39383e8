package bootstrap

import (
	"fmt"
	"time"

	"github.com/kbukum/runkit/client"
	"github.com/kbukum/runkit/config"
	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/observability"
	"github.com/kbukum/runkit/server"
	"github.com/kbukum/runkit/validation"
)

// AppName is the config file stem and environment prefix (RUNKIT_*).
const AppName = "runkit"

// EngineConfig configures recipe loading and execution.
type EngineConfig struct {
	// RecipeDirs are walked for *.yaml and *.yml recipe files.
	RecipeDirs []string `yaml:"recipe_dirs" mapstructure:"recipe_dirs" validate:"min=1"`
	// MaxConcurrency caps batch fan-out when a request leaves it unset.
	// Zero runs batch items one at a time.
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency" validate:"gte=0"`
	// DefaultTimeout bounds every recipe run. Zero disables it.
	DefaultTimeout time.Duration `yaml:"default_timeout" mapstructure:"default_timeout" validate:"gte=0"`
	// Remotes expose recipes of other runkit servers as units.
	Remotes []RemoteConfig `yaml:"remotes" mapstructure:"remotes" validate:"dive"`
}

// RemoteConfig registers one server recipe as a local unit.
//
//	remotes:
//	  - name: remote_summarize
//	    recipe: summarize
//	    base_url: http://summarizer:8080
//	    timeout: 10s
type RemoteConfig struct {
	// Name is the unit name recipes reference.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// Recipe is the server recipe to call. Defaults to Name.
	Recipe string `yaml:"recipe" mapstructure:"recipe"`
	// Config addresses the server.
	client.Config `yaml:",inline" mapstructure:",squash"`
}

// ApplyDefaults applies default values to engine configuration.
func (c *EngineConfig) ApplyDefaults() {
	if len(c.RecipeDirs) == 0 {
		c.RecipeDirs = []string{"./recipes"}
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 4
	}
	for i := range c.Remotes {
		if c.Remotes[i].Recipe == "" {
			c.Remotes[i].Recipe = c.Remotes[i].Name
		}
		c.Remotes[i].Config.ApplyDefaults()
	}
}

// Config is the complete runkit configuration.
//
//	app:
//	  name: runkit
//	  environment: production
//	logging:
//	  level: info
//	  format: json
//	server:
//	  port: 8080
//	engine:
//	  recipe_dirs: [./recipes]
//	  default_timeout: 30s
//	tracing:
//	  enabled: true
//	  endpoint: otel-collector:4318
type Config struct {
	App     config.BaseConfig          `yaml:"app" mapstructure:"app"`
	Logging logger.Config              `yaml:"logging" mapstructure:"logging"`
	Server  server.Config              `yaml:"server" mapstructure:"server"`
	Engine  EngineConfig               `yaml:"engine" mapstructure:"engine"`
	Tracing observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics observability.MeterConfig  `yaml:"metrics" mapstructure:"metrics"`
}

// Load reads configuration from path, or from the standard locations when
// path is empty, then applies defaults and validates.
func Load(path string, opts ...config.LoaderOption) (*Config, error) {
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	cfg := &Config{}
	if err := config.LoadConfig(AppName, cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults applies defaults to every section. Observability resources
// inherit the application identity.
func (c *Config) ApplyDefaults() {
	c.App.ApplyDefaults()
	c.Logging.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Engine.ApplyDefaults()
	c.Tracing.ApplyDefaults(c.App.Name)
	c.Metrics.ApplyDefaults(c.App.Name)
	if c.App.Version != "" {
		if c.Tracing.ServiceVersion == "dev" {
			c.Tracing.ServiceVersion = c.App.Version
		}
		if c.Metrics.ServiceVersion == "dev" {
			c.Metrics.ServiceVersion = c.App.Version
		}
	}
}

// Validate validates every section and returns the first failure.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c.Engine); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Tracing.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}
