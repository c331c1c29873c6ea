// Package main is the entrypoint for sqlcorectl, the operator CLI. It
// talks to the core's Postgres-backed stores in-process — it is not an
// HTTP client for sqlcoregw.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

const (
	exitSuccess    = 0
	exitValidation = 1
	exitInternal   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		return exitInternal
	}
	return exitSuccess
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sqlcorectl",
		Short: "Operator CLI for the SQL core gateway",
		Long: `sqlcorectl drives the gateway's Postgres-backed stores directly:
history cleanup and stats, circuit breaker status, audit summaries, and
dry-run SQL validation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.sqlcore/config.yaml)")
	cmd.AddCommand(newHistoryCmd(&configPath))
	cmd.AddCommand(newAuditCmd(&configPath))
	cmd.AddCommand(newBreakerCmd(&configPath))
	cmd.AddCommand(newValidateCmd(&configPath))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
