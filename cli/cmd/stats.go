package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/linehawk/cli/internal/client"
	"github.com/telhawk-systems/linehawk/cli/pkg/output"
	"github.com/telhawk-systems/linehawk/common/linestats"
)

var (
	statsMachine string
	statsFactory string
	statsStart   string
	statsEnd     string
	statsSince   time.Duration
	statsLimit   int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Query machine, line and ingest statistics",
}

var statsMachineCmd = &cobra.Command{
	Use:   "machine",
	Short: "Event and defect totals for one machine",
	Example: `  lhawk stats machine --machine M-001 --since 6h
  lhawk stats machine --machine M-001 --start 2026-01-15T00:00:00Z --end 2026-01-15T06:00:00Z`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsMachine == "" {
			return fmt.Errorf("--machine is required")
		}
		start, end, err := resolveWindow(statsStart, statsEnd, statsSince)
		if err != nil {
			return err
		}

		stats, err := apiClient().MachineStats(cmd.Context(), statsMachine, start, end)
		if err != nil {
			return fmt.Errorf("failed to get machine stats: %w", err)
		}

		return output.Print(outputFormat, stats, func() {
			table := output.NewTable([]string{"MACHINE", "EVENTS", "DEFECTS", "AVG RATE/H", "STATUS"})
			table.AddRow([]string{
				stats.MachineID,
				strconv.FormatInt(stats.EventsCount, 10),
				strconv.FormatInt(stats.DefectsCount, 10),
				strconv.FormatFloat(stats.AvgDefectRate, 'f', 2, 64),
				stats.Status,
			})
			table.Render()
		})
	},
}

var statsTopLinesCmd = &cobra.Command{
	Use:     "top-lines",
	Short:   "Lines ranked by total defects",
	Example: `  lhawk stats top-lines --factory F01 --since 24h --limit 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		factory, err := defaultFactory(statsFactory)
		if err != nil {
			return err
		}
		from, to, err := resolveWindow(statsStart, statsEnd, statsSince)
		if err != nil {
			return err
		}

		lines, err := apiClient().TopDefectLines(cmd.Context(), factory, from, to, statsLimit)
		if err != nil {
			return fmt.Errorf("failed to get top defect lines: %w", err)
		}
		if lines == nil {
			lines = []client.LineDefectStats{}
		}

		return output.Print(outputFormat, lines, func() {
			if len(lines) == 0 {
				output.Info("No defects recorded for %s in this window", factory)
				return
			}
			table := output.NewTable([]string{"LINE", "DEFECTS", "EVENTS", "DEFECTS/100 EVENTS"})
			for _, l := range lines {
				table.AddRow([]string{
					l.LineID,
					strconv.FormatInt(l.TotalDefects, 10),
					strconv.FormatInt(l.EventCount, 10),
					strconv.FormatFloat(l.DefectsPercent, 'f', 2, 64),
				})
			}
			table.Render()
		})
	},
}

var statsIngestCmd = &cobra.Command{
	Use:     "ingest",
	Short:   "Ingestion outcome counters for a factory",
	Example: `  lhawk stats ingest --factory F01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		factory, err := defaultFactory(statsFactory)
		if err != nil {
			return err
		}

		stats, err := apiClient().IngestStats(cmd.Context(), factory)
		if err != nil {
			return fmt.Errorf("failed to get ingest stats: %w", err)
		}

		return output.Print(outputFormat, stats, func() { renderIngestStats(stats) })
	},
}

func renderIngestStats(s *linestats.Stats) {
	table := output.NewTable([]string{"WINDOW", "ACCEPTED", "UPDATED", "DEDUPED", "REJECTED", "TOTAL"})
	row := func(name string, c linestats.Counts) []string {
		return []string{
			name,
			strconv.FormatInt(c.Accepted, 10),
			strconv.FormatInt(c.Updated, 10),
			strconv.FormatInt(c.Deduped, 10),
			strconv.FormatInt(c.Rejected, 10),
			strconv.FormatInt(c.Total(), 10),
		}
	}
	table.AddRow(row("last hour", s.LastHour))
	table.AddRow(row("last 24h", s.Last24h))
	table.AddRow(row("all time", s.Total))
	table.Render()

	if s.LastIngestAt != nil {
		output.Info("Last ingest: %s", s.LastIngestAt.Format(time.RFC3339))
	}
	if len(s.IngestInstances) > 0 {
		ids := make([]string, 0, len(s.IngestInstances))
		for id := range s.IngestInstances {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		output.Info("Instances: %v", ids)
	}
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.AddCommand(statsMachineCmd, statsTopLinesCmd, statsIngestCmd)

	statsMachineCmd.Flags().StringVarP(&statsMachine, "machine", "m", "", "machine ID")
	for _, c := range []*cobra.Command{statsTopLinesCmd, statsIngestCmd} {
		c.Flags().StringVarP(&statsFactory, "factory", "F", "", "factory ID (default: profile factory)")
	}
	for _, c := range []*cobra.Command{statsMachineCmd, statsTopLinesCmd} {
		c.Flags().StringVar(&statsStart, "start", "", "window start (RFC3339, inclusive)")
		c.Flags().StringVar(&statsEnd, "end", "", "window end (RFC3339, exclusive)")
		c.Flags().DurationVar(&statsSince, "since", 0, "window ending now, e.g. 6h")
	}
	statsTopLinesCmd.Flags().IntVarP(&statsLimit, "limit", "n", 10, "maximum lines to show")
}
