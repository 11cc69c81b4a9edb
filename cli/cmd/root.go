package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/linehawk/cli/internal/client"
	"github.com/telhawk-systems/linehawk/cli/internal/config"
)

var (
	cfgFile      string
	profileName  string
	serverURL    string
	outputFormat string
	cfg          *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lhawk",
	Short: "LineHawk CLI",
	Long: `lhawk is the command-line interface for the LineHawk ingest service.

Send machine event batches, query machine and line statistics, inspect the
dead letter queue and generate realistic test traffic from your terminal.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return ExecuteContext(context.Background())
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.lhawk/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "profile to use (default: current profile)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "ingest service URL (overrides the profile)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}

func apiClient() *client.Client {
	if serverURL != "" {
		return client.New(serverURL)
	}
	return client.New(cfg.ServerURL(profileName))
}

// defaultFactory returns flagValue, or the profile's factory when empty.
func defaultFactory(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if p, err := cfg.GetProfile(profileName); err == nil && p.FactoryID != "" {
		return p.FactoryID, nil
	}
	return "", fmt.Errorf("--factory is required (or set factory_id on the profile)")
}

// resolveWindow turns --start/--end or --since into a window ending now.
func resolveWindow(start, end string, since time.Duration) (time.Time, time.Time, error) {
	if start == "" && end == "" {
		if since <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("either --since or --start/--end is required")
		}
		now := time.Now().UTC()
		return now.Add(-since), now, nil
	}
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--start and --end must be given together")
	}
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
	}
	return s, e, nil
}
