package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/manovDev/agario-botzie/internal/config"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries the state shared by subcommands.
type cli struct {
	overrides *config.Flags
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:   "botzie",
		Short: "Bot swarm service for agar-style game rooms",
		Long: `botzie simulates swarms of feeding bots that join a game room under a
shared nickname, and streams their state to observers over WebSocket.

Run "botzie serve" to host everything in one process, or "botzie engine"
and "botzie control" to split the simulation from the command API.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML config file (default ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api", "http://127.0.0.1:3000", "Control API base URL for client commands")
	c.overrides = config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newVersionCmd(),
		c.newServeCmd(),
		c.newEngineCmd(),
		c.newControlCmd(),
		newStartCmd(),
		newStopCmd(),
		newSessionsCmd(),
		newSchemaCmd(),
	)
	return rootCmd
}

// settings loads the layered configuration for cmd.
func (c *cli) settings(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.overrides.Apply(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "botzie version %s\n", version)
			}
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
