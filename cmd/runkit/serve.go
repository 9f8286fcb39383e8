package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/runkit/bootstrap"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the recipe catalog over HTTP",
		Long: `Starts the HTTP API:

  GET  /v1/recipes                 list recipes
  POST /v1/recipes/:name/invoke    run once
  POST /v1/recipes/:name/batch     run many inputs
  POST /v1/recipes/:name/stream    run with server-sent events
  GET  /health, /version

The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			app, err := bootstrap.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return app.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host, overriding server.host")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port, overriding server.port")
	return cmd
}
