package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/linehawk/cli/internal/seeder"
	"github.com/telhawk-systems/linehawk/cli/pkg/output"
)

var (
	seederCfgFile   string
	seederCount     int
	seederFactories string
	seederSpread    time.Duration
	seederBatchSize int
	seederDupRatio  float64
	seederUpdRatio  float64
	seederBadRatio  float64
	seederSeed      int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Event seeder commands",
	Long:  "Generate and send realistic machine events for testing and development",
}

var seedRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the event seeder",
	Long: `Generate machine events and send them in batches.

A share of the traffic resends earlier events unchanged (deduplicated by the
server), resends them with a changed payload (last-writer-wins updates) or
breaks a validation rule (rejected).

Configuration cascade (priority order):
  1. Command-line flags
  2. ./seeder.yaml (project directory)
  3. ~/.lhawk/seeder.yaml (user directory)
  4. Built-in defaults`,
	Example: `  lhawk seed run --count 5000 --factories F01,F02
  lhawk seed run --duplicate-ratio 0.5 --seed 7`,
	RunE: runSeed,
}

var seedValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate seeder configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := seeder.LoadConfig(seederCfgFile)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		output.Success("Configuration is valid")
		return output.Print(outputFormat, config, func() {
			d := config.Defaults
			output.Info("  Event count: %d", d.Count)
			output.Info("  Factories: %s", strings.Join(d.Factories, ", "))
			output.Info("  Lines/factory: %d, machines/line: %d", d.LinesPerFactory, d.MachinesPerLine)
			output.Info("  Time spread: %v", d.TimeSpread)
			output.Info("  Batch size: %d", d.BatchSize)
			output.Info("  Duplicate/update/invalid ratio: %.2f/%.2f/%.2f",
				d.DuplicateRatio, d.UpdateRatio, d.InvalidRatio)
		})
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedRunCmd, seedValidateCmd)

	seedCmd.PersistentFlags().StringVar(&seederCfgFile, "seeder-config", "", "seeder config file (default: ./seeder.yaml or ~/.lhawk/seeder.yaml)")

	seedRunCmd.Flags().IntVarP(&seederCount, "count", "c", 0, "number of events to generate")
	seedRunCmd.Flags().StringVar(&seederFactories, "factories", "", "comma-separated factory IDs")
	seedRunCmd.Flags().DurationVarP(&seederSpread, "time-spread", "s", 0, "spread event times over this window before now")
	seedRunCmd.Flags().IntVarP(&seederBatchSize, "batch-size", "b", 0, "events per batch")
	seedRunCmd.Flags().Float64Var(&seederDupRatio, "duplicate-ratio", 0, "share of exact resends")
	seedRunCmd.Flags().Float64Var(&seederUpdRatio, "update-ratio", 0, "share of resends with a changed payload")
	seedRunCmd.Flags().Float64Var(&seederBadRatio, "invalid-ratio", 0, "share of events breaking a validation rule")
	seedRunCmd.Flags().Int64Var(&seederSeed, "seed", 0, "random seed for reproducible runs")
}

func runSeed(cmd *cobra.Command, args []string) error {
	config, err := seeder.LoadConfig(seederCfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags if provided
	flags := cmd.Flags()
	d := &config.Defaults
	if flags.Changed("count") {
		d.Count = seederCount
	}
	if flags.Changed("factories") {
		d.Factories = strings.Split(seederFactories, ",")
	}
	if flags.Changed("time-spread") {
		d.TimeSpread = seederSpread
	}
	if flags.Changed("batch-size") {
		d.BatchSize = seederBatchSize
	}
	if flags.Changed("duplicate-ratio") {
		d.DuplicateRatio = seederDupRatio
	}
	if flags.Changed("update-ratio") {
		d.UpdateRatio = seederUpdRatio
	}
	if flags.Changed("invalid-ratio") {
		d.InvalidRatio = seederBadRatio
	}
	if flags.Changed("seed") {
		d.Seed = seederSeed
	}
	if err := config.Validate(); err != nil {
		return err
	}

	api := apiClient()
	runner := seeder.NewRunner(config, api)
	if outputFormat == output.FormatTable {
		output.Info("Seeding %d events to %s", d.Count, api.BaseURL())
		step := max(d.Count/10, d.BatchSize)
		runner.Progress = func(sent, total int) {
			if sent%step < d.BatchSize || sent == total {
				output.Info("  %d/%d sent", sent, total)
			}
		}
	}

	summary, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}

	return output.Print(outputFormat, summary, func() {
		renderBatchResult(summary.Result)
		output.Info("Generated: %d new, %d duplicate, %d update, %d invalid in %d batches (%s)",
			summary.Generated[seeder.KindNew], summary.Generated[seeder.KindDuplicate],
			summary.Generated[seeder.KindUpdate], summary.Generated[seeder.KindInvalid],
			summary.Batches, summary.Elapsed.Round(time.Millisecond))
		if summary.FailedEvents > 0 {
			output.Warn("%d events were not delivered", summary.FailedEvents)
		}
	})
}
