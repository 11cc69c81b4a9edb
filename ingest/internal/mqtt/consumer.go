package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/telhawk-systems/linehawk/common/logging"
	"github.com/telhawk-systems/linehawk/common/middleware"
	"github.com/telhawk-systems/linehawk/ingest/internal/metrics"
	"github.com/telhawk-systems/linehawk/ingest/internal/models"
	"github.com/telhawk-systems/linehawk/ingest/internal/service"
)

const DefaultTopic = "factory/+/events"

// Ingester is the batch entry point.
type Ingester interface {
	Ingest(ctx context.Context, events []models.InboundEvent) models.BatchResult
}

// Transport is the subset of Client the consumer needs.
type Transport interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Unsubscribe(topics ...string) error
}

// Consumer ingests batches published by machines and replies with the
// BatchResult on the matching results topic.
type Consumer struct {
	transport Transport
	ingester  Ingester
	cfg       Config
	logger    *logging.Logger
	ctx       context.Context
}

func NewConsumer(transport Transport, ingester Ingester, cfg Config, logger *logging.Logger) *Consumer {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Consumer{
		transport: transport,
		ingester:  ingester,
		cfg:       cfg,
		logger:    logger,
		ctx:       context.Background(),
	}
}

func (c *Consumer) subscription() string {
	if c.cfg.SharedGroup != "" {
		return "$share/" + c.cfg.SharedGroup + "/" + c.cfg.Topic
	}
	return c.cfg.Topic
}

// Start subscribes. Messages are processed under ctx until Stop.
func (c *Consumer) Start(ctx context.Context) error {
	c.ctx = ctx
	if err := c.transport.Subscribe(c.subscription(), c.cfg.QoS, c.HandleMessage); err != nil {
		return err
	}
	c.logger.Info("MQTT consumer subscribed", "topic", c.subscription())
	return nil
}

// Stop unsubscribes.
func (c *Consumer) Stop() error {
	return c.transport.Unsubscribe(c.subscription())
}

// HandleMessage ingests one payload. Malformed payloads are logged and dropped.
func (c *Consumer) HandleMessage(topic string, payload []byte) error {
	ctx := middleware.WithRequestID(c.ctx, uuid.NewString())
	ctx = service.WithSource(ctx, "mqtt")

	events, err := models.DecodeBatch(payload)
	if err != nil {
		metrics.MQTTMessages.WithLabelValues("malformed").Inc()
		c.logger.WarnContext(ctx, "dropping malformed MQTT payload",
			"topic", topic, logging.Error(err))
		return fmt.Errorf("decode payload on %s: %w", topic, err)
	}

	result := c.ingester.Ingest(ctx, events)
	metrics.MQTTMessages.WithLabelValues("ok").Inc()

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	reply := ResultTopic(topic)
	if err := c.transport.Publish(reply, c.cfg.QoS, false, data); err != nil {
		c.logger.WarnContext(ctx, "failed to publish batch result",
			"topic", reply, logging.Error(err))
		return err
	}
	return nil
}

// ResultTopic maps factory/F01/events to factory/F01/results. Topics not
// ending in /events get /results appended.
func ResultTopic(topic string) string {
	if base, ok := strings.CutSuffix(topic, "/events"); ok {
		return base + "/results"
	}
	return topic + "/results"
}
