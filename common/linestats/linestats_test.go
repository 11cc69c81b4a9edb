package linestats

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewClientFromRedis(rdb, "ingest-1"), mr
}

func TestFlushBatchAndGetStats(t *testing.T) {
	client, mr := newTestClient(t)
	fixed := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }
	ctx := context.Background()

	batch := NewBatchUpdate("F01")
	batch.Counts.Add(Counts{Accepted: 3, Deduped: 2, Rejected: 1})
	require.NoError(t, client.FlushBatch(ctx, batch))

	batch2 := NewBatchUpdate("F01")
	batch2.Counts.Add(Counts{Updated: 4})
	require.NoError(t, client.FlushBatch(ctx, batch2))

	stats, err := client.GetStats(ctx, "F01")
	require.NoError(t, err)

	want := Counts{Accepted: 3, Updated: 4, Deduped: 2, Rejected: 1}
	assert.Equal(t, want, stats.Total)
	assert.Equal(t, want, stats.LastHour)
	assert.Equal(t, want, stats.Last24h)
	require.NotNil(t, stats.LastIngestAt)
	assert.Equal(t, fixed.Unix(), stats.LastIngestAt.Unix())
	assert.Contains(t, stats.IngestInstances, "ingest-1")

	assert.True(t, mr.Exists("linehawk:hourly:F01:2026031014"))
	assert.Equal(t, "3", mr.HGet("linehawk:stats:F01", "accepted"))
}

func TestGetStatsRollingWindow(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	client.now = func() time.Time { return base }
	b := NewBatchUpdate("F01")
	b.Counts.Accepted = 5
	require.NoError(t, client.FlushBatch(ctx, b))

	client.now = func() time.Time { return base.Add(2 * time.Hour) }
	b = NewBatchUpdate("F01")
	b.Counts.Accepted = 1
	require.NoError(t, client.FlushBatch(ctx, b))

	stats, err := client.GetStats(ctx, "F01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.LastHour.Accepted)
	assert.Equal(t, int64(6), stats.Last24h.Accepted)
	assert.Equal(t, int64(6), stats.Total.Accepted)
}

func TestGetStatsUnknownFactory(t *testing.T) {
	client, _ := newTestClient(t)

	stats, err := client.GetStats(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, Counts{}, stats.Total)
	assert.Nil(t, stats.LastIngestAt)
	assert.Nil(t, stats.IngestInstances)
}

func TestFlushBatchEmptyIsNoop(t *testing.T) {
	client, mr := newTestClient(t)
	require.NoError(t, client.FlushBatch(context.Background(), NewBatchUpdate("F01")))
	assert.Empty(t, mr.Keys())
}
