package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/entool-router/sqlcore/internal/audit"
	"github.com/entool-router/sqlcore/internal/observability"
)

func newAuditCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit sink (C2)",
	}
	cmd.AddCommand(newAuditSummaryCmd(configPath))
	return cmd
}

func newAuditSummaryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show accepted/rejected counts and top rejection reasons",
		Long: `Reports aggregate counts only — it never surfaces raw query
text, which stays out of the operator's view even when diagnosing a
rejection spike.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			sink, err := audit.NewPostgresSink(ctx, db, observability.NewNoopLogger())
			if err != nil {
				return err
			}

			summary, err := sink.Summary(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("accepted: %d\n", summary.AcceptedCount)
			fmt.Printf("rejected: %d\n", summary.RejectedCount)
			if len(summary.TopRejectionReasons) > 0 {
				fmt.Println("top rejection reasons:")
				for _, r := range summary.TopRejectionReasons {
					fmt.Printf("  %-20s %d\n", r.Action, r.Count)
				}
			}
			return nil
		},
	}
}
