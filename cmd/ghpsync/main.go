package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "ghpsync",
		Short: "Terminal board and sync client for GitHub Projects v2",
		Long: `ghpsync keeps a local copy of a GitHub Projects v2 board in sync.

Card moves apply immediately and are pushed to GitHub in the background.
The board re-syncs on an interval and whenever you press r.

Authentication:
  1. token in the config file, --token or GHPSYNC_TOKEN
  2. GitHub CLI: run 'gh auth login'
  3. Environment variable: GITHUB_TOKEN or GH_TOKEN

The token must have read/write access to projects.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBoard(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/ghpsync/config.yaml)")
	flags.String("owner", "", "GitHub owner (organization or user login)")
	flags.Int("project", 0, "project number. Requires --owner")
	flags.String("token", "", "GitHub token; overrides gh CLI and environment")
	flags.String("endpoint", "", "GraphQL endpoint, for GitHub Enterprise Server")
	flags.Int("auto-sync", 60, "auto-sync interval in seconds, 0 disables")
	flags.Bool("verbose", false, "log raw GraphQL traffic")
	flags.String("log-file", "", "write logs to a rotated file")

	rootCmd.AddCommand(
		newBoardCmd(a),
		newSyncCmd(a),
		newStatusCmd(a),
		newMoveCmd(a),
		newProjectsCmd(a),
	)
	return rootCmd
}
