package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/runkit/client"
	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/middleware"
	"github.com/kbukum/runkit/observability"
	"github.com/kbukum/runkit/recipe"
	"github.com/kbukum/runkit/server"
)

// App wires configuration, logging, observability and the recipe catalog
// into one lifecycle.
//
// Example:
//
//	cfg, _ := bootstrap.Load("runkit.yml")
//	app, err := bootstrap.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	return app.Serve(ctx)
type App struct {
	Name     string
	Version  string
	Cfg      *Config
	Logger   *logger.Logger
	Registry *recipe.Registry
	Catalog  *recipe.Catalog
	Metrics  *observability.Metrics
	Server   *server.Server
	Summary  *Summary

	providers       *observability.Providers
	gracefulTimeout time.Duration

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// New creates an application from cfg. It applies defaults, validates the
// config, starts the enabled telemetry providers and loads every recipe
// directory into the catalog.
func New(ctx context.Context, cfg *Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	o := resolveOptions(opts)
	app := &App{
		Name:            cfg.App.Name,
		Version:         cfg.App.Version,
		Cfg:             cfg,
		Summary:         NewSummary(cfg.App.Name, cfg.App.Version),
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	if o.logger != nil {
		app.Logger = o.logger
	} else {
		app.Logger = logger.New(&cfg.Logging, cfg.App.Name)
		logger.SetGlobalLogger(app.Logger)
	}
	logger.Configure(app.Logger, cfg.Logging.Components)

	providers, err := observability.Setup(ctx, &cfg.Tracing, &cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("observability setup: %w", err)
	}
	app.providers = providers

	metrics, err := observability.NewGlobalMetrics()
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("metrics: %w", err)
	}
	app.Metrics = metrics

	app.Registry = o.registry
	if app.Registry == nil {
		app.Registry = recipe.Builtins()
	}
	for _, u := range o.units {
		if err := app.Registry.Register(u); err != nil {
			_ = providers.Shutdown(ctx)
			return nil, fmt.Errorf("unit %s: %w", u.Name(), err)
		}
	}
	if err := app.registerRemotes(); err != nil {
		_ = providers.Shutdown(ctx)
		return nil, err
	}
	app.Catalog = recipe.NewCatalog(app.Registry, logger.Get("catalog"),
		recipe.WithCompileOptions(app.compileOptions()...))
	if err := app.Catalog.LoadDirs(cfg.Engine.RecipeDirs...); err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("loading recipes: %w", err)
	}
	return app, nil
}

// registerRemotes adds every configured remote recipe to the registry.
func (a *App) registerRemotes() error {
	for _, rc := range a.Cfg.Engine.Remotes {
		c, err := client.New(rc.Config)
		if err != nil {
			return fmt.Errorf("remote %s: %w", rc.Name, err)
		}
		if err := a.Registry.Register(c.Recipe(rc.Recipe).As(rc.Name)); err != nil {
			return fmt.Errorf("remote %s: %w", rc.Name, err)
		}
		a.Logger.Info("remote recipe registered", logger.Fields(
			logger.FieldUnit, rc.Name,
			logger.FieldRecipe, rc.Recipe,
			"base_url", rc.BaseURL,
		))
	}
	return nil
}

// compileOptions instruments each registered unit and each recipe as a whole.
func (a *App) compileOptions() []recipe.CompileOption {
	engineLog := logger.Get("engine")
	return []recipe.CompileOption{
		recipe.WithMiddleware(
			middleware.WithTracing[any, any](observability.SpanUnit),
			middleware.WithMetrics[any, any](a.Metrics),
		),
		recipe.WithRootMiddleware(
			middleware.WithTracing[any, any]("runkit.recipe"),
			middleware.WithLogging[any, any](engineLog),
		),
		recipe.WithOnRetry(func(unit string, attempt int, err error) {
			a.Metrics.RecordRetry(context.Background(), unit)
			engineLog.Debug("retrying unit", logger.Fields(
				logger.FieldUnit, unit,
				logger.FieldAttempt, attempt,
				logger.FieldError, err.Error(),
			))
		}),
		recipe.WithDefaultTimeout(a.Cfg.Engine.DefaultTimeout),
	}
}

// Serve runs the HTTP API until ctx is canceled or SIGINT/SIGTERM arrives,
// then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	a.Server = server.New(a.Cfg.Server, logger.Get("server"))
	a.Server.ApplyMiddleware(a.Metrics)
	a.Server.RegisterDefaultEndpoints(a.Name, a.Version, a.Catalog)
	server.NewRecipeAPI(a.Catalog, logger.Get("api"), a.Cfg.Engine.MaxConcurrency).Register(a.Server.GinEngine())

	if err := a.Server.Start(ctx); err != nil {
		_ = a.stop(nil)
		return err
	}

	if err := runHooks(ctx, a.onReady); err != nil {
		_ = a.stop(a.Server)
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.Summary.Collect(a.Catalog, a.Server)
	a.Summary.Log(a.Logger)

	a.WaitForSignal(ctx)
	return a.stop(a.Server)
}

// RunTask runs a finite task, canceling its context on SIGINT/SIGTERM, and
// then shuts the telemetry providers down.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	taskCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	taskErr := task(taskCtx)
	if stopErr := a.stop(nil); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

// WaitForSignal blocks until an interrupt or terminate signal, or until ctx
// is canceled.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("context canceled, shutting down")
		return nil
	}
}

// Shutdown releases telemetry providers. Use it when the app was created
// but neither Serve nor RunTask ran.
func (a *App) Shutdown(_ context.Context) error {
	return a.stop(nil)
}

// stop runs the OnStop hooks, stops srv when non-nil and flushes telemetry,
// all within the graceful timeout.
func (a *App) stop(srv *server.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var errs []error
	if err := unwindHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("onStop hook error", logger.Fields(logger.FieldError, err.Error()))
		errs = append(errs, err)
	}
	if srv != nil {
		if err := srv.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.providers != nil {
		if err := a.providers.Shutdown(ctx); err != nil {
			a.Logger.Error("telemetry shutdown error", logger.Fields(logger.FieldError, err.Error()))
			errs = append(errs, err)
		}
	}
	a.Logger.Info("application stopped")
	return errors.Join(errs...)
}
