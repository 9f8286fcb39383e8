package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kbukum/runkit/logger"
	"github.com/kbukum/runkit/recipe"
)

func newListCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the recipes in the configured directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			catalog := recipe.NewCatalog(recipe.Builtins(), logger.New(&cfg.Logging, cfg.App.Name))
			if err := catalog.LoadDirs(cfg.Engine.RecipeDirs...); err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(catalog.List())
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tDESCRIPTION")
			for _, s := range catalog.List() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Kind, s.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the list as JSON")
	return cmd
}

func newUnitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "units",
		Short: "List the built-in units and predicates recipes can reference",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			reg := recipe.Builtins()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Units:")
			for _, name := range reg.Units() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			fmt.Fprintln(out, "Predicates:")
			for _, name := range reg.Predicates() {
				fmt.Fprintf(out, "  %s\n", name)
			}
		},
	}
}
