package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/entool-router/sqlcore/internal/history"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and maintain the query history store (C9)",
	}
	cmd.AddCommand(newHistoryCleanupCmd(configPath))
	cmd.AddCommand(newHistoryStatsCmd(configPath))
	return cmd
}

func newHistoryCleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired history entries",
		Long: `Deletes every query_history row whose expires_at has passed.
This is the external scheduler the query history store's TTL policy
assumes exists — invoke it periodically (e.g. from cron).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			store := history.New(db, cfg.History.RetentionDays)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			n, err := store.Cleanup(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d expired history entries\n", n)
			return nil
		},
	}
}

func newHistoryStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show total and expired history entry counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB(*configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			store := history.New(db, cfg.History.RetentionDays)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			st, err := store.GetStats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("total entries:   %d\n", st.TotalEntries)
			fmt.Printf("expired entries: %d\n", st.ExpiredEntries)
			return nil
		},
	}
}
