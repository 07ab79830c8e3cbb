// Command browserbase-mcp serves browser automation tools over the Model
// Context Protocol.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "browserbase-mcp: %v\n", err)
		os.Exit(1)
	}
}

// flags are command-line overrides applied on top of the config file and
// environment.
type flags struct {
	configPath string
	transport  string
	addr       string
	verbosity  string
	deployment string
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "browserbase-mcp",
		Short:         "Browser automation tools over the Model Context Protocol",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f, os.LookupEnv)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file")
	root.Flags().StringVar(&f.transport, "transport", "", "MCP transport: stdio or http")
	root.Flags().StringVar(&f.addr, "addr", "", "listen address for the http transport")
	root.Flags().StringVar(&f.verbosity, "verbosity", "", "log verbosity: quiet, normal, verbose or debug")
	root.Flags().StringVar(&f.deployment, "deployment", "", "deployment: local or remote")

	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "browserbase-mcp %s\n", version)
			return err
		},
	}
}
