package linestats

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Collector accumulates outcome counts and flushes them to Redis periodically.
// Safe for concurrent use.
type Collector struct {
	client        *Client
	flushInterval time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	batches map[string]*BatchUpdate // factoryID -> batch

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollector starts a collector that flushes every flushInterval.
func NewCollector(client *Client, flushInterval time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Collector{
		client:        client,
		flushInterval: flushInterval,
		logger:        logger,
		batches:       make(map[string]*BatchUpdate),
		ctx:           ctx,
		cancel:        cancel,
	}

	c.wg.Add(1)
	go c.flushLoop()

	return c
}

// Record accumulates counts for factoryID.
func (c *Collector) Record(factoryID string, counts Counts) {
	if counts.Total() == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	batch, ok := c.batches[factoryID]
	if !ok {
		batch = NewBatchUpdate(factoryID)
		c.batches[factoryID] = batch
	}
	batch.Counts.Add(counts)
}

func (c *Collector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.flush()
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

func (c *Collector) flush() {
	c.mu.Lock()
	batches := c.batches
	c.batches = make(map[string]*BatchUpdate)
	c.mu.Unlock()

	if len(batches) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	flushed := 0
	var total int64

	for _, batch := range batches {
		if err := c.client.FlushBatch(ctx, batch); err != nil {
			c.logger.Error("failed to flush line stats batch",
				"factory_id", batch.FactoryID,
				"events", batch.Counts.Total(),
				"error", err,
			)
			// merge back for the next tick
			c.mu.Lock()
			if existing, ok := c.batches[batch.FactoryID]; ok {
				existing.Counts.Add(batch.Counts)
			} else {
				c.batches[batch.FactoryID] = batch
			}
			c.mu.Unlock()
			continue
		}
		flushed++
		total += batch.Counts.Total()
	}

	if flushed > 0 {
		c.logger.Debug("flushed line stats", "factories", flushed, "total_events", total)
	}
}

// FlushNow forces an immediate flush.
func (c *Collector) FlushNow() {
	c.flush()
}

// Stop stops the collector after a final flush.
func (c *Collector) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Pending returns counts not yet flushed, keyed by factory.
func (c *Collector) Pending() map[string]Counts {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := make(map[string]Counts, len(c.batches))
	for id, batch := range c.batches {
		pending[id] = batch.Counts
	}
	return pending
}
