package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entool-router/sqlcore/internal/resilience"
)

func newBreakerCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breaker",
		Short: "Inspect the LLM circuit breaker's configuration (C6)",
	}
	cmd.AddCommand(newBreakerStatusCmd(configPath))
	return cmd
}

func newBreakerStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured breaker thresholds",
		Long: `Breaker state (closed/open/half_open) lives in the running
sqlcoregw process's memory — it has no persisted store for a separate
process to read. This reports the configured thresholds a fresh breaker
would apply, which is what an operator tuning the config actually needs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			b := resilience.NewBreaker(resilience.BreakerConfig{
				Name:             "llm." + cfg.LLM.Provider,
				FailureThreshold: uint32(cfg.Breaker.FailureThreshold),
				WindowSeconds:    cfg.Breaker.WindowSeconds,
				RecoverySeconds:  cfg.Breaker.RecoverySeconds,
			})

			fmt.Printf("provider:           %s\n", cfg.LLM.Provider)
			fmt.Printf("failure_threshold:  %d\n", cfg.Breaker.FailureThreshold)
			fmt.Printf("window_seconds:     %d\n", cfg.Breaker.WindowSeconds)
			fmt.Printf("recovery_seconds:   %d\n", cfg.Breaker.RecoverySeconds)
			fmt.Printf("fresh state:        %s\n", b.State())
			return nil
		},
	}
}
