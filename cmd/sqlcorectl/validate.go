package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entool-router/sqlcore/internal/validator"
)

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <sql>",
		Short: "Dry-run the SQL safety validator (C1) against a candidate query",
		Long: `Runs the same five gates the core applies to every candidate
SQL string, without touching the executor, cache, or history store.
Useful for checking a new allowlisted table or blocked keyword before
rolling out a config change.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			v := validator.New(cfg.Validator.DefaultLimit, cfg.Validator.AllowlistedTables, cfg.Validator.BlockedKeywords)
			sanitized, err := v.Validate(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "rejected: %v\n", err)
				os.Exit(exitValidation)
			}

			fmt.Println(sanitized)
			return nil
		},
	}
}
