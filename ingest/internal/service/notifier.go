package service

import (
	"context"
	"encoding/json"

	"github.com/telhawk-systems/linehawk/common/logging"
	"github.com/telhawk-systems/linehawk/common/messaging"
	"github.com/telhawk-systems/linehawk/ingest/internal/metrics"
	"github.com/telhawk-systems/linehawk/ingest/internal/models"
)

// RecordNotifier publishes RecordChanged messages. Publish failures are
// logged and counted; they never change an ingestion outcome.
type RecordNotifier struct {
	pub    messaging.Publisher
	logger *logging.Logger
}

func NewRecordNotifier(pub messaging.Publisher, logger *logging.Logger) *RecordNotifier {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RecordNotifier{pub: pub, logger: logger}
}

func subjectForChange(c models.Change) string {
	if c == models.ChangeUpdated {
		return messaging.SubjectRecordsUpdated
	}
	return messaging.SubjectRecordsInserted
}

func (n *RecordNotifier) Notify(ctx context.Context, change models.RecordChanged) {
	data, err := json.Marshal(change)
	if err != nil {
		metrics.NotificationErrors.Inc()
		n.logger.ErrorContext(ctx, "failed to marshal record change", logging.Error(err))
		return
	}

	msg := &messaging.Message{
		Subject: subjectForChange(change.Change),
		Data:    data,
		Metadata: map[string]string{
			"Linehawk-Event-Id":   change.EventID,
			"Linehawk-Factory-Id": change.FactoryID,
		},
	}
	if err := n.pub.PublishMsg(ctx, msg); err != nil {
		metrics.NotificationErrors.Inc()
		n.logger.WarnContext(ctx, "failed to publish record change",
			logging.EventID(change.EventID),
			logging.FactoryID(change.FactoryID),
			logging.LineID(change.LineID),
			logging.Outcome(string(change.Change)),
			logging.Error(err))
	}
}
