package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/telhawk-systems/linehawk/ingest/internal/models"
)

const defaultBasePath = "/var/lib/linehawk/dlq"

// Queue writes one JSON file per failed event under a directory.
// Suitable for a single ingest instance.
type Queue struct {
	basePath string
	mu       sync.Mutex
	written  uint64
	seq      uint64
}

// NewQueue creates the directory if needed. An empty path uses the default.
func NewQueue(basePath string) (*Queue, error) {
	if basePath == "" {
		basePath = defaultBasePath
	}
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("create dlq directory: %w", err)
	}
	return &Queue{basePath: basePath}, nil
}

// Write records a failed event. A nil queue discards.
func (q *Queue) Write(ctx context.Context, event models.InboundEvent, err error, reason models.Reason) error {
	if q == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	failed := newFailedEvent(event, err, reason)
	data, marshalErr := json.MarshalIndent(failed, "", "  ")
	if marshalErr != nil {
		return fmt.Errorf("marshal dlq entry: %w", marshalErr)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	name := fmt.Sprintf("failed_%d_%d.json", failed.Timestamp.UnixNano(), q.seq)
	if writeErr := os.WriteFile(filepath.Join(q.basePath, name), data, 0o640); writeErr != nil {
		return fmt.Errorf("write dlq file: %w", writeErr)
	}

	atomic.AddUint64(&q.written, 1)
	slog.Info("DLQ: wrote failed event", "event_id", event.EventID, "reason", reason, "file", name)
	return nil
}

func (q *Queue) files() ([]string, error) {
	entries, err := os.ReadDir(q.basePath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "failed_") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Stats reports queue counters.
func (q *Queue) Stats(context.Context) map[string]interface{} {
	if q == nil {
		return map[string]interface{}{"enabled": false, "backend": "file"}
	}

	stats := map[string]interface{}{
		"enabled":   true,
		"backend":   "file",
		"base_path": q.basePath,
		"written":   atomic.LoadUint64(&q.written),
	}
	names, err := q.files()
	if err != nil {
		stats["error"] = err.Error()
		return stats
	}
	stats["pending_files"] = len(names)
	return stats
}

// List returns up to limit failed events, oldest first.
func (q *Queue) List(_ context.Context, limit int) ([]FailedEvent, error) {
	if q == nil {
		return nil, ErrNotEnabled
	}
	if limit <= 0 {
		limit = 100
	}

	names, err := q.files()
	if err != nil {
		return nil, fmt.Errorf("read dlq directory: %w", err)
	}

	events := make([]FailedEvent, 0, min(limit, len(names)))
	for _, name := range names {
		if len(events) == limit {
			break
		}
		data, err := os.ReadFile(filepath.Join(q.basePath, name))
		if err != nil {
			slog.Warn("DLQ: failed to read file", "file", name, "error", err)
			continue
		}
		var failed FailedEvent
		if err := json.Unmarshal(data, &failed); err != nil {
			slog.Warn("DLQ: failed to parse file", "file", name, "error", err)
			continue
		}
		events = append(events, failed)
	}
	return events, nil
}

// Purge removes every failed event file.
func (q *Queue) Purge(context.Context) error {
	if q == nil {
		return ErrNotEnabled
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	names, err := q.files()
	if err != nil {
		return fmt.Errorf("read dlq directory: %w", err)
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(q.basePath, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove dlq file %s: %w", name, err)
		}
	}
	slog.Info("DLQ: purged failed events", "count", len(names))
	return nil
}
