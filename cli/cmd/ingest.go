package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/linehawk/cli/internal/client"
	"github.com/telhawk-systems/linehawk/cli/pkg/output"
)

var (
	ingestFile      string
	ingestBatchSize int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Data ingestion commands",
	Long:  "Send machine events to the LineHawk ingest service",
}

var ingestSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send events from a JSON file",
	Long: `Send events from a file holding a JSON array of events or a single event
object. Use --file - to read from stdin. Resending the same file is safe:
events already stored unchanged are reported as deduped.`,
	Example: `  lhawk ingest send --file batch.json
  cat batch.json | lhawk ingest send --file - --batch-size 500`,
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := readEvents(ingestFile)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return fmt.Errorf("no events in %s", ingestFile)
		}

		api := apiClient()
		total := client.BatchResult{Rejections: []client.Rejection{}}
		for _, chunk := range chunks(events, ingestBatchSize) {
			result, err := api.SendBatch(cmd.Context(), chunk)
			if err != nil {
				return fmt.Errorf("failed to send batch: %w", err)
			}
			total.Add(*result)
		}

		return output.Print(outputFormat, total, func() { renderBatchResult(total) })
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestSendCmd)

	ingestSendCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "JSON file with events (- for stdin)")
	ingestSendCmd.Flags().IntVarP(&ingestBatchSize, "batch-size", "b", 0, "split into batches of this size (0 sends one batch)")
	_ = ingestSendCmd.MarkFlagRequired("file")
}

func readEvents(path string) ([]client.Event, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var single client.Event
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("failed to parse event: %w", err)
		}
		return []client.Event{single}, nil
	}

	var events []client.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}
	return events, nil
}

func chunks(events []client.Event, size int) [][]client.Event {
	if size <= 0 || size >= len(events) {
		return [][]client.Event{events}
	}
	var out [][]client.Event
	for start := 0; start < len(events); start += size {
		end := min(start+size, len(events))
		out = append(out, events[start:end])
	}
	return out
}

func renderBatchResult(r client.BatchResult) {
	output.Success("Accepted %d, updated %d, deduped %d, rejected %d",
		r.Accepted, r.Updated, r.Deduped, r.Rejected)
	if len(r.Rejections) == 0 {
		return
	}
	table := output.NewTable([]string{"EVENT ID", "REASON"})
	for _, rej := range r.Rejections {
		table.AddRow([]string{rej.EventID, rej.Reason})
	}
	table.Render()
	output.Warn("%d events rejected", len(r.Rejections))
}
