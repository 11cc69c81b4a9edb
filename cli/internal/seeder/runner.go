package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/telhawk-systems/linehawk/cli/internal/client"
)

// Sender posts one batch.
type Sender interface {
	SendBatch(ctx context.Context, events []client.Event) (*client.BatchResult, error)
}

// Summary is what a seeding run produced and what the server made of it.
type Summary struct {
	Generated    map[Kind]int       `json:"generated" yaml:"generated"`
	Batches      int                `json:"batches" yaml:"batches"`
	FailedEvents int                `json:"failedEvents" yaml:"failedEvents"`
	Result       client.BatchResult `json:"result" yaml:"result"`
	Elapsed      time.Duration      `json:"elapsed" yaml:"elapsed"`
}

// Runner handles the event seeding execution
type Runner struct {
	Config    *Config
	Sender    Sender
	Generator *Generator
	// Progress, if set, is called after every batch with events sent so far.
	Progress func(sent, total int)
}

// NewRunner creates a new seeder runner
func NewRunner(config *Config, sender Sender) *Runner {
	return &Runner{
		Config:    config,
		Sender:    sender,
		Generator: NewGenerator(config.Defaults),
	}
}

// Run generates Count events and sends them in batches. A failed batch is
// counted and skipped; ctx cancellation stops the run.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	d := r.Config.Defaults
	start := time.Now()
	summary := &Summary{
		Generated: map[Kind]int{},
		Result:    client.BatchResult{Rejections: []client.Rejection{}},
	}

	generated := r.Generator.Generate(d.Count)
	batch := make([]client.Event, 0, d.BatchSize)
	sent := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		summary.Batches++
		result, err := r.Sender.SendBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			summary.FailedEvents += len(batch)
		} else {
			summary.Result.Add(*result)
		}
		sent += len(batch)
		batch = batch[:0]
		if r.Progress != nil {
			r.Progress(sent, len(generated))
		}
		return nil
	}

	for i, g := range generated {
		summary.Generated[g.Kind]++
		batch = append(batch, g.Event)
		if len(batch) < d.BatchSize && i < len(generated)-1 {
			continue
		}
		if err := flush(); err != nil {
			return summary, fmt.Errorf("seeding interrupted: %w", err)
		}
		if d.Interval > 0 && i < len(generated)-1 {
			select {
			case <-ctx.Done():
				return summary, fmt.Errorf("seeding interrupted: %w", ctx.Err())
			case <-time.After(d.Interval):
			}
		}
	}

	summary.Elapsed = time.Since(start)
	return summary, nil
}
