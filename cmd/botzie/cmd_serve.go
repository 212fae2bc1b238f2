package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/manovDev/agario-botzie/internal/app"
)

func (c *cli) newServeCmd() *cobra.Command {
	return c.newHostCmd(app.ModeServe, "Host the engine and the control API in one process")
}

func (c *cli) newEngineCmd() *cobra.Command {
	return c.newHostCmd(app.ModeEngine, "Host the simulation engine, its command endpoint and the snapshot feed")
}

func (c *cli) newControlCmd() *cobra.Command {
	return c.newHostCmd(app.ModeControl, "Host the control API and forward commands to --engine-url")
}

func (c *cli) newHostCmd(mode app.Mode, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(mode),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := c.settings(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, app.Config{
				Mode:     mode,
				Settings: settings,
				Stdout:   cmd.OutOrStdout(),
			})
		},
	}
}

// runContext is the base context for client commands.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
