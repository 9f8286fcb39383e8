package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/runkit/bootstrap"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	recipeDirs []string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "runkit",
		Short: "runkit composes and runs units from declarative recipes",
		Long: `runkit loads YAML recipes that compose registered units with sequence,
parallel, assign, branch and each nodes, decorated with retry, timeout,
fallbacks, circuit breakers and bulkheads. Run a recipe once, validate
recipe files, or serve the whole catalog over HTTP.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (default: ./runkit.yml and standard locations)")
	cmd.PersistentFlags().StringSliceVarP(&g.recipeDirs, "recipes", "r", nil, "Recipe directories, overriding engine.recipe_dirs")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level, overriding logging.level")

	cmd.AddCommand(
		newRunCmd(g),
		newValidateCmd(g),
		newListCmd(g),
		newUnitsCmd(),
		newServeCmd(g),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig loads the config file and applies flag overrides.
func (g *globalFlags) loadConfig() (*bootstrap.Config, error) {
	cfg, err := bootstrap.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if len(g.recipeDirs) > 0 {
		cfg.Engine.RecipeDirs = g.recipeDirs
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	return cfg, nil
}

// newApp loads the config and builds the application with its catalog.
func (g *globalFlags) newApp(ctx context.Context, opts ...bootstrap.Option) (*bootstrap.App, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, opts...)
}
