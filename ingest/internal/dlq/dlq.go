// Package dlq parks events that could not be persisted so they can be
// inspected and replayed later.
package dlq

import (
	"context"
	"errors"
	"time"

	"github.com/telhawk-systems/linehawk/ingest/internal/models"
)

var ErrNotEnabled = errors.New("dlq not enabled")

// FailedEvent is one dead-lettered event.
type FailedEvent struct {
	Timestamp   time.Time           `json:"timestamp"`
	Event       models.InboundEvent `json:"event"`
	Error       string              `json:"error"`
	Reason      string              `json:"reason"`
	Attempts    int                 `json:"attempts"`
	LastAttempt time.Time           `json:"last_attempt"`
}

// Backend is implemented by the file and JetStream queues.
type Backend interface {
	Write(ctx context.Context, event models.InboundEvent, err error, reason models.Reason) error
	Stats(ctx context.Context) map[string]interface{}
	List(ctx context.Context, limit int) ([]FailedEvent, error)
	Purge(ctx context.Context) error
}

func newFailedEvent(event models.InboundEvent, err error, reason models.Reason) FailedEvent {
	now := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return FailedEvent{
		Timestamp:   now,
		Event:       event,
		Error:       msg,
		Reason:      string(reason),
		Attempts:    1,
		LastAttempt: now,
	}
}
