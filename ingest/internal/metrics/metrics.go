package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Per-event outcomes; reason is empty for accepted/updated.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linehawk_ingest_events_total",
			Help: "Total number of events processed by outcome",
		},
		[]string{"source", "outcome", "reason"},
	)

	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linehawk_ingest_batches_total",
			Help: "Total number of batches processed",
		},
		[]string{"source"},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linehawk_ingest_batch_size",
			Help:    "Number of events per batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linehawk_ingest_batch_duration_seconds",
			Help:    "Duration of batch ingestion in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Store metrics
	StorageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linehawk_ingest_storage_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linehawk_ingest_storage_errors_total",
			Help: "Total number of store errors",
		},
		[]string{"op"},
	)

	// Side channels
	DLQWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linehawk_ingest_dlq_writes_total",
			Help: "Total number of events written to the dead-letter queue",
		},
		[]string{"status"},
	)

	NotificationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linehawk_ingest_notification_errors_total",
			Help: "Total number of record change notifications that failed to publish",
		},
	)

	MQTTMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linehawk_ingest_mqtt_messages_total",
			Help: "Total number of MQTT messages received",
		},
		[]string{"status"},
	)
)
