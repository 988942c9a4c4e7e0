package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func serveCommand(c *cli) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the state and navigation guard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := c.app.Config.Server.Listen
			if listen != "" {
				addr = listen
			}

			stop := c.app.PersistSettings(c.settingsPath())
			defer stop()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return c.app.Server().Start(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides server.listen)")
	return cmd
}
