package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/linehawk/cli/pkg/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check ingest service readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		api := apiClient()
		body, ready, err := api.Ready(cmd.Context())
		if err != nil {
			return fmt.Errorf("ingest service unreachable: %w", err)
		}

		if err := output.Print(outputFormat, body, func() {
			if ready {
				output.Success("%s is ready", api.BaseURL())
			} else {
				output.Error("%s is not ready", api.BaseURL())
			}
			keys := make([]string, 0, len(body))
			for k := range body {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				output.Info("  %s: %v", k, body[k])
			}
		}); err != nil {
			return err
		}
		if !ready {
			return fmt.Errorf("service not ready")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
