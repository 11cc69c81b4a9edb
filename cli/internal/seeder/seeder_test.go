package seeder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/linehawk/cli/internal/client"
)

func testDefaults() DefaultsConfig {
	return DefaultsConfig{
		Count:              500,
		Factories:          []string{"F01", "F02"},
		LinesPerFactory:    3,
		MachinesPerLine:    2,
		TimeSpread:         time.Hour,
		BatchSize:          50,
		DuplicateRatio:     0.2,
		UpdateRatio:        0.1,
		InvalidRatio:       0.05,
		UnknownDefectRatio: 0.05,
		MaxDefects:         8,
		Seed:               42,
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Defaults.Count)
	assert.Equal(t, []string{"F01"}, cfg.Defaults.Factories)
	assert.Equal(t, 100, cfg.Defaults.BatchSize)
	assert.Equal(t, 24*time.Hour, cfg.Defaults.TimeSpread)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeder.yaml")
	content := `defaults:
  count: 20
  factories: [F09]
  duplicate_ratio: 0.5
  batch_size: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Defaults.Count)
	assert.Equal(t, []string{"F09"}, cfg.Defaults.Factories)
	assert.Equal(t, 0.5, cfg.Defaults.DuplicateRatio)
	assert.Equal(t, 5, cfg.Defaults.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DefaultsConfig)
	}{
		{"negative count", func(d *DefaultsConfig) { d.Count = -1 }},
		{"no factories", func(d *DefaultsConfig) { d.Factories = nil }},
		{"zero lines", func(d *DefaultsConfig) { d.LinesPerFactory = 0 }},
		{"zero batch", func(d *DefaultsConfig) { d.BatchSize = 0 }},
		{"ratio above one", func(d *DefaultsConfig) { d.DuplicateRatio = 1.5 }},
		{"ratios sum above one", func(d *DefaultsConfig) { d.DuplicateRatio, d.UpdateRatio, d.InvalidRatio = 0.5, 0.4, 0.2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDefaults()
			tt.mutate(&d)
			assert.Error(t, (&Config{Defaults: d}).Validate())
		})
	}

	assert.NoError(t, (&Config{Defaults: testDefaults()}).Validate())
}

func TestGenerator_Deterministic(t *testing.T) {
	a := NewGenerator(testDefaults())
	b := NewGenerator(testDefaults())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	b.now = func() time.Time { return now }

	assert.Equal(t, a.Generate(50), b.Generate(50))
}

func TestGenerator_Shapes(t *testing.T) {
	d := testDefaults()
	g := NewGenerator(d)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	events := g.Generate(d.Count)
	require.Len(t, events, d.Count)

	kinds := map[Kind]int{}
	firstSeen := map[string]client.Event{}
	for _, ge := range events {
		kinds[ge.Kind]++
		e := ge.Event
		assert.NotEmpty(t, e.EventID)
		assert.Contains(t, d.Factories, e.FactoryID)

		switch ge.Kind {
		case KindNew:
			assert.NotContains(t, firstSeen, e.EventID)
			firstSeen[e.EventID] = e
			assert.GreaterOrEqual(t, e.DurationMs, int64(0))
			assert.LessOrEqual(t, e.DurationMs, int64(maxDurationMs))
			assert.False(t, e.EventTime.After(now))
			assert.False(t, e.EventTime.Before(now.Add(-d.TimeSpread)))
			assert.GreaterOrEqual(t, e.DefectCount, -1)
		case KindDuplicate:
			require.Contains(t, firstSeen, e.EventID)
			assert.Equal(t, firstSeen[e.EventID], e)
		case KindUpdate:
			require.Contains(t, firstSeen, e.EventID)
			assert.NotEqual(t, firstSeen[e.EventID].DefectCount, e.DefectCount)
		case KindInvalid:
			bad := e.DurationMs < 0 || e.DurationMs > maxDurationMs || e.EventTime.After(now.Add(15*time.Minute))
			assert.True(t, bad, "invalid event %+v breaks no rule", e)
		}
	}

	assert.Positive(t, kinds[KindNew])
	assert.Positive(t, kinds[KindDuplicate])
	assert.Positive(t, kinds[KindUpdate])
	assert.Positive(t, kinds[KindInvalid])
}

type fakeSender struct {
	mu      sync.Mutex
	batches [][]client.Event
	failOn  int
}

func (f *fakeSender) SendBatch(_ context.Context, events []client.Event) (*client.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]client.Event(nil), events...))
	if f.failOn > 0 && len(f.batches) == f.failOn {
		return nil, errors.New("server unavailable")
	}
	return &client.BatchResult{Accepted: len(events), Rejections: []client.Rejection{}}, nil
}

func TestRunner_Batches(t *testing.T) {
	d := testDefaults()
	d.Count = 120
	sender := &fakeSender{failOn: 2}

	var progress []int
	r := NewRunner(&Config{Defaults: d}, sender)
	r.Progress = func(sent, total int) {
		assert.Equal(t, 120, total)
		progress = append(progress, sent)
	}

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sender.batches, 3)
	assert.Len(t, sender.batches[0], 50)
	assert.Len(t, sender.batches[2], 20)
	assert.Equal(t, 3, summary.Batches)
	assert.Equal(t, 50, summary.FailedEvents)
	assert.Equal(t, 70, summary.Result.Accepted)
	assert.Equal(t, []int{50, 100, 120}, progress)

	total := 0
	for _, n := range summary.Generated {
		total += n
	}
	assert.Equal(t, 120, total)
}

func TestRunner_Cancelled(t *testing.T) {
	d := testDefaults()
	d.Count = 100
	d.BatchSize = 10
	d.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(&Config{Defaults: d}, &fakeSender{})
	r.Progress = func(int, int) { cancel() }

	summary, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Batches)
}
