package main

import (
	"context"
	"encoding/json"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/posfit/internal/loadtest"
)

const defaultLoadTestTimeout = 10 * time.Minute

func newLoadTestCmd(c *cli) *cobra.Command {
	cfg := &loadtest.Config{}
	var total time.Duration

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Score synthetic players against a running server and check the results",
		Long: `Generate synthetic players over the attributes of the configured reference
table, post them to POST /score concurrently and verify every returned result.

Examples:
  posfit loadtest --url http://localhost:9080 --players 10000
  posfit loadtest --players 500 --missing 0.2 --output players.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, _, err := loadReference(cmd.Context(), c.cfg.Reference)
			if err != nil {
				return err
			}
			cfg.Attributes = table.FeatureNames()

			ctx, cancel := context.WithTimeout(cmd.Context(), total)
			defer cancel()

			stats, err := loadtest.Run(ctx, cfg)
			if stats != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(stats); encErr != nil && err == nil {
					err = encErr
				}
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	flags.IntVar(&cfg.NumPlayers, "players", 10000, "Number of players to generate and score")
	flags.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "Number of concurrent workers")
	flags.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "HTTP request timeout")
	flags.Float64Var(&cfg.MissingPct, "missing", 0, "Share of attributes left out per player, 0..1")
	flags.StringVar(&cfg.OutputFile, "output", "", "Write the generated players to this CSV file")
	flags.BoolVar(&cfg.Verbose, "verbose", false, "Log every failed request and inconsistent result")
	flags.DurationVar(&total, "deadline", defaultLoadTestTimeout, "Overall deadline for the run")
	return cmd
}
