package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/linehawk/cli/internal/client"
	"github.com/telhawk-systems/linehawk/cli/pkg/output"
)

var (
	dlqLimit int
	dlqYes   bool
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect the dead letter queue",
	Long:  "Events the store could not accept are parked in the dead letter queue for inspection and replay.",
}

var dlqStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dead letter queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := apiClient().DLQStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get DLQ stats: %w", err)
		}
		return output.Print(outputFormat, stats, func() {
			keys := make([]string, 0, len(stats))
			for k := range stats {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			table := output.NewTable([]string{"KEY", "VALUE"})
			for _, k := range keys {
				table.AddRow([]string{k, fmt.Sprint(stats[k])})
			}
			table.Render()
		})
	},
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered events, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := apiClient().DLQList(cmd.Context(), dlqLimit)
		if err != nil {
			return fmt.Errorf("failed to list DLQ events: %w", err)
		}
		if events == nil {
			events = []client.FailedEvent{}
		}
		return output.Print(outputFormat, events, func() {
			if len(events) == 0 {
				output.Success("Dead letter queue is empty")
				return
			}
			table := output.NewTable([]string{"TIME", "EVENT ID", "MACHINE", "REASON", "ATTEMPTS", "ERROR"})
			for _, fe := range events {
				table.AddRow([]string{
					fe.Timestamp.Format(time.RFC3339),
					fe.Event.EventID,
					fe.Event.MachineID,
					fe.Reason,
					strconv.Itoa(fe.Attempts),
					fe.Error,
				})
			}
			table.Render()
		})
	},
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every dead-lettered event",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dlqYes {
			return fmt.Errorf("purge deletes all dead-lettered events; rerun with --yes to confirm")
		}
		if err := apiClient().DLQPurge(cmd.Context()); err != nil {
			return fmt.Errorf("failed to purge DLQ: %w", err)
		}
		output.Success("Dead letter queue purged")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqStatsCmd, dlqListCmd, dlqPurgeCmd)

	dlqListCmd.Flags().IntVarP(&dlqLimit, "limit", "n", 100, "maximum events to list")
	dlqPurgeCmd.Flags().BoolVarP(&dlqYes, "yes", "y", false, "confirm the purge")
}
