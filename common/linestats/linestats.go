// Package linestats provides Redis-backed ingestion outcome counters per factory.
//
// Multiple ingest instances write concurrently; any instance (or the CLI via the
// ingest API) can read the totals back.
//
// Redis Key Structure:
//
//	linehawk:stats:{factory_id}               - Hash of outcome totals + last_ingest_at
//	linehawk:hourly:{factory_id}:{YYYYMMDDHH} - Hash of outcome counts for an hour (expires 48h)
//	linehawk:instances:{factory_id}           - Hash of ingest instance -> last seen timestamp
package linestats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldAccepted     = "accepted"
	fieldUpdated      = "updated"
	fieldDeduped      = "deduped"
	fieldRejected     = "rejected"
	fieldLastIngestAt = "last_ingest_at"

	hourlyTTL    = 48 * time.Hour
	instancesTTL = 24 * time.Hour
)

// Counts is a tally of ingestion outcomes.
type Counts struct {
	Accepted int64 `json:"accepted"`
	Updated  int64 `json:"updated"`
	Deduped  int64 `json:"deduped"`
	Rejected int64 `json:"rejected"`
}

// Add merges o into c.
func (c *Counts) Add(o Counts) {
	c.Accepted += o.Accepted
	c.Updated += o.Updated
	c.Deduped += o.Deduped
	c.Rejected += o.Rejected
}

// Total is the number of events the counts cover.
func (c Counts) Total() int64 {
	return c.Accepted + c.Updated + c.Deduped + c.Rejected
}

// Stats is the stored view for one factory.
type Stats struct {
	FactoryID        string            `json:"factoryId"`
	Total            Counts            `json:"total"`
	LastHour         Counts            `json:"lastHour"`
	Last24h          Counts            `json:"last24h"`
	LastIngestAt     *time.Time        `json:"lastIngestAt,omitempty"`
	IngestInstances  map[string]string `json:"ingestInstances,omitempty"`
	StatsRetrievedAt time.Time         `json:"statsRetrievedAt"`
}

// Client records and retrieves per-factory ingestion statistics.
type Client struct {
	redis      *redis.Client
	instanceID string
	now        func() time.Time
}

// NewClient connects to Redis. instanceID should be unique per ingest instance.
func NewClient(redisURL, instanceID string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewClientFromRedis(client, instanceID), nil
}

// NewClientFromRedis wraps an existing Redis connection.
func NewClientFromRedis(client *redis.Client, instanceID string) *Client {
	return &Client{redis: client, instanceID: instanceID, now: time.Now}
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.redis.Close()
}

func statsKey(factoryID string) string { return "linehawk:stats:" + factoryID }

func hourlyKey(factoryID string, t time.Time) string {
	return "linehawk:hourly:" + factoryID + ":" + t.UTC().Format("2006010215")
}

func instancesKey(factoryID string) string { return "linehawk:instances:" + factoryID }

// FlushBatch writes an accumulated batch to Redis in one pipeline.
func (c *Client) FlushBatch(ctx context.Context, batch *BatchUpdate) error {
	if batch.Counts.Total() == 0 {
		return nil
	}

	now := c.now()
	nowUnix := strconv.FormatInt(now.Unix(), 10)

	pipe := c.redis.Pipeline()

	sk := statsKey(batch.FactoryID)
	pipe.HSet(ctx, sk, fieldLastIngestAt, nowUnix)
	incrCounts(ctx, pipe, sk, batch.Counts)

	hk := hourlyKey(batch.FactoryID, now)
	incrCounts(ctx, pipe, hk, batch.Counts)
	pipe.Expire(ctx, hk, hourlyTTL)

	ik := instancesKey(batch.FactoryID)
	pipe.HSet(ctx, ik, c.instanceID, nowUnix)
	pipe.Expire(ctx, ik, instancesTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to flush batch: %w", err)
	}
	return nil
}

func incrCounts(ctx context.Context, pipe redis.Pipeliner, key string, counts Counts) {
	if counts.Accepted != 0 {
		pipe.HIncrBy(ctx, key, fieldAccepted, counts.Accepted)
	}
	if counts.Updated != 0 {
		pipe.HIncrBy(ctx, key, fieldUpdated, counts.Updated)
	}
	if counts.Deduped != 0 {
		pipe.HIncrBy(ctx, key, fieldDeduped, counts.Deduped)
	}
	if counts.Rejected != 0 {
		pipe.HIncrBy(ctx, key, fieldRejected, counts.Rejected)
	}
}

// GetStats retrieves current statistics for a factory.
func (c *Client) GetStats(ctx context.Context, factoryID string) (*Stats, error) {
	now := c.now()

	pipe := c.redis.Pipeline()
	statsCmd := pipe.HGetAll(ctx, statsKey(factoryID))

	hourlyCmds := make([]*redis.MapStringStringCmd, 24)
	for i := range hourlyCmds {
		hourlyCmds[i] = pipe.HGetAll(ctx, hourlyKey(factoryID, now.Add(-time.Duration(i)*time.Hour)))
	}

	instancesCmd := pipe.HGetAll(ctx, instancesKey(factoryID))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	stats := &Stats{
		FactoryID:        factoryID,
		StatsRetrievedAt: now,
	}

	raw := statsCmd.Val()
	stats.Total = parseCounts(raw)
	if v, ok := raw[fieldLastIngestAt]; ok {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.Unix(ts, 0).UTC()
			stats.LastIngestAt = &t
		}
	}

	for i, cmd := range hourlyCmds {
		counts := parseCounts(cmd.Val())
		if i == 0 {
			stats.LastHour = counts
		}
		stats.Last24h.Add(counts)
	}

	if instances := instancesCmd.Val(); len(instances) > 0 {
		stats.IngestInstances = instances
	}

	return stats, nil
}

func parseCounts(m map[string]string) Counts {
	get := func(field string) int64 {
		n, _ := strconv.ParseInt(m[field], 10, 64)
		return n
	}
	return Counts{
		Accepted: get(fieldAccepted),
		Updated:  get(fieldUpdated),
		Deduped:  get(fieldDeduped),
		Rejected: get(fieldRejected),
	}
}

// BatchUpdate holds accumulated counts for one factory.
type BatchUpdate struct {
	FactoryID string
	Counts    Counts
}

// NewBatchUpdate creates an empty accumulator for factoryID.
func NewBatchUpdate(factoryID string) *BatchUpdate {
	return &BatchUpdate{FactoryID: factoryID}
}
