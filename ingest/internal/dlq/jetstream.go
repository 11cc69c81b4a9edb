package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telhawk-systems/linehawk/common/messaging"
	"github.com/telhawk-systems/linehawk/common/messaging/nats"
	"github.com/telhawk-systems/linehawk/ingest/internal/models"
)

// JetStreamQueue writes failed events to the INGEST_DLQ stream.
// Safe for use across multiple ingest instances.
type JetStreamQueue struct {
	js      *nats.JetStreamClient
	stream  jetstream.Stream
	written uint64
}

// NewJetStreamQueue ensures the DLQ stream exists.
func NewJetStreamQueue(ctx context.Context, js *nats.JetStreamClient) (*JetStreamQueue, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}

	stream, err := js.CreateOrUpdateStream(ctx, nats.IngestDLQStream)
	if err != nil {
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	slog.Info("DLQ: JetStream stream ready", "stream", nats.IngestDLQStream.Name)
	return &JetStreamQueue{js: js, stream: stream}, nil
}

// Write publishes a failed event on ingest.dlq.<reason>. The event id is the
// JetStream message id so retried writes within the dedup window collapse.
func (q *JetStreamQueue) Write(ctx context.Context, event models.InboundEvent, err error, reason models.Reason) error {
	if q == nil {
		return nil
	}

	data, marshalErr := json.Marshal(newFailedEvent(event, err, reason))
	if marshalErr != nil {
		return fmt.Errorf("marshal dlq entry: %w", marshalErr)
	}

	msg := &messaging.Message{
		Subject:  subjectFor(reason),
		Data:     data,
		Metadata: map[string]string{jetstream.MsgIDHeader: string(reason) + ":" + event.EventID},
	}
	if _, pubErr := q.js.PublishSync(ctx, msg); pubErr != nil {
		return fmt.Errorf("publish dlq entry: %w", pubErr)
	}

	atomic.AddUint64(&q.written, 1)
	slog.Info("DLQ: published failed event", "event_id", event.EventID, "reason", reason)
	return nil
}

func subjectFor(reason models.Reason) string {
	return messaging.DLQSubject(strings.ToLower(string(reason)))
}

// Stats returns stream state.
func (q *JetStreamQueue) Stats(ctx context.Context) map[string]interface{} {
	if q == nil {
		return map[string]interface{}{"enabled": false, "backend": "jetstream"}
	}

	stats := map[string]interface{}{
		"enabled":       true,
		"backend":       "jetstream",
		"written_local": atomic.LoadUint64(&q.written),
	}

	info, err := q.stream.Info(ctx)
	if err != nil {
		stats["error"] = err.Error()
		return stats
	}
	stats["total_messages"] = info.State.Msgs
	stats["total_bytes"] = info.State.Bytes
	stats["first_seq"] = info.State.FirstSeq
	stats["last_seq"] = info.State.LastSeq
	return stats
}

// List reads up to limit failed events through an ephemeral consumer.
func (q *JetStreamQueue) List(ctx context.Context, limit int) ([]FailedEvent, error) {
	if q == nil {
		return nil, ErrNotEnabled
	}
	if limit <= 0 {
		limit = 100
	}

	consumer, err := q.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{messaging.SubjectIngestDLQPrefix + ".>"},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create list consumer: %w", err)
	}

	msgs, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	var events []FailedEvent
	for msg := range msgs.Messages() {
		var failed FailedEvent
		if err := json.Unmarshal(msg.Data(), &failed); err != nil {
			slog.Warn("DLQ: failed to parse message", "error", err)
			continue
		}
		events = append(events, failed)
	}
	if err := msgs.Error(); err != nil {
		slog.Warn("DLQ: fetch completed with error", "error", err)
	}

	return events, nil
}

// Purge removes all messages from the stream.
func (q *JetStreamQueue) Purge(ctx context.Context) error {
	if q == nil {
		return ErrNotEnabled
	}
	if err := q.stream.Purge(ctx); err != nil {
		return fmt.Errorf("purge dlq stream: %w", err)
	}
	slog.Info("DLQ: purged stream", "stream", nats.IngestDLQStream.Name)
	return nil
}
