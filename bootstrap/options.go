package bootstrap

import (
	"time"

	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/recipe"
	"github.com/kbukum/runkit/runnable"
)

// Option customizes New.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	registry        *recipe.Registry
	units           []runnable.Unit[any, any]
	gracefulTimeout *time.Duration
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger uses l instead of a logger built from the logging section. The
// global logger is left alone.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithRegistry resolves recipe units through reg instead of recipe.Builtins.
func WithRegistry(reg *recipe.Registry) Option {
	return func(o *appOptions) { o.registry = reg }
}

// WithUnits registers units next to the builtins so recipes can use them.
// A name that is already registered fails New.
func WithUnits(units ...runnable.Unit[any, any]) Option {
	return func(o *appOptions) { o.units = append(o.units, units...) }
}

// WithGracefulTimeout bounds shutdown: stop hooks, the server and telemetry
// flushing share it. The default is 15s.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) { o.gracefulTimeout = &d }
}
