// Package messaging decouples LineHawk publishers from a specific broker.
package messaging

import (
	"context"
	"time"
)

// Message is a message sent to a broker.
type Message struct {
	// Subject is the topic the message is published to.
	Subject string

	// Data is the raw payload.
	Data []byte

	// Metadata becomes message headers.
	Metadata map[string]string

	// Timestamp is when the message was created.
	Timestamp time.Time
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends data to subject, fire-and-forget.
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishMsg sends a Message with headers.
	PublishMsg(ctx context.Context, msg *Message) error

	// Close releases any resources held by the publisher.
	Close() error
}

// Client is a Publisher with connection lifecycle controls.
type Client interface {
	Publisher

	// Drain flushes in-flight messages and closes the connection.
	Drain() error

	// IsConnected reports whether the broker connection is up.
	IsConnected() bool
}

// NoopPublisher discards everything. It is used when notifications are disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NoopPublisher) PublishMsg(context.Context, *Message) error    { return nil }
func (NoopPublisher) Close() error                                  { return nil }
