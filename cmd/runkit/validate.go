package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/recipe"
)

func newValidateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file or dir...]",
		Short: "Parse and compile recipe files without running them",
		Long: `Parses every recipe under the given files and directories, checks its
structure and compiles it against the built-in units. Includes resolve
against the other recipes being validated. Without arguments the configured
recipe directories are checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				cfg, err := g.loadConfig()
				if err != nil {
					return err
				}
				paths = cfg.Engine.RecipeDirs
			}
			return validateRecipes(cmd.OutOrStdout(), paths)
		},
	}
}

func validateRecipes(out io.Writer, paths []string) error {
	catalog := recipe.NewCatalog(recipe.Builtins(), logger.NewNop())
	if err := catalog.LoadDirs(paths...); err != nil {
		return err
	}

	for _, s := range catalog.List() {
		fmt.Fprintf(out, "ok    %s (%s)\n", s.Name, s.Path)
	}
	failures := catalog.Failures()
	for _, f := range failures {
		fmt.Fprintf(out, "FAIL  %s: %v\n", f.Path, f.Err)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d recipe file(s) failed validation", len(failures))
	}
	fmt.Fprintf(out, "%d recipe(s) valid\n", catalog.Len())
	return nil
}
