// Package service drives inbound events through validation, conflict
// resolution and persistence.
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/telhawk-systems/linehawk/common/linestats"
	"github.com/telhawk-systems/linehawk/common/logging"
	"github.com/telhawk-systems/linehawk/ingest/internal/fingerprint"
	"github.com/telhawk-systems/linehawk/ingest/internal/metrics"
	"github.com/telhawk-systems/linehawk/ingest/internal/models"
	"github.com/telhawk-systems/linehawk/ingest/internal/repository"
	"github.com/telhawk-systems/linehawk/ingest/internal/resolver"
	"github.com/telhawk-systems/linehawk/ingest/internal/validator"
)

const DefaultWorkers = 8

// DeadLetterWriter parks events the store could not accept.
type DeadLetterWriter interface {
	Write(ctx context.Context, event models.InboundEvent, err error, reason models.Reason) error
}

// Notifier announces applied writes. Implementations must not block for long
// and must swallow their own errors.
type Notifier interface {
	Notify(ctx context.Context, change models.RecordChanged)
}

// StatsRecorder accumulates per-factory outcome counts.
type StatsRecorder interface {
	Record(factoryID string, counts linestats.Counts)
}

// Config holds orchestrator settings.
type Config struct {
	Policy validator.Policy
	// Workers bounds per-batch concurrency; 1 processes events sequentially.
	Workers int
}

// Option customizes an IngestService.
type Option func(*IngestService)

// WithClock overrides the receipt clock.
func WithClock(now func() time.Time) Option {
	return func(s *IngestService) { s.now = now }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *IngestService) { s.logger = l }
}

func WithDeadLetter(w DeadLetterWriter) Option {
	return func(s *IngestService) { s.dlq = w }
}

func WithNotifier(n Notifier) Option {
	return func(s *IngestService) { s.notifier = n }
}

func WithStatsRecorder(r StatsRecorder) Option {
	return func(s *IngestService) { s.stats = r }
}

// IngestService is the batch ingestion orchestrator. It holds no per-key
// state; the store's uniqueness constraint and conditional update arbitrate
// concurrent writers.
type IngestService struct {
	store    repository.Store
	chain    *validator.Chain
	workers  int
	now      func() time.Time
	logger   *logging.Logger
	dlq      DeadLetterWriter
	notifier Notifier
	stats    StatsRecorder
	tracer   trace.Tracer
}

func NewIngestService(store repository.Store, cfg Config, opts ...Option) *IngestService {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Policy == (validator.Policy{}) {
		cfg.Policy = validator.DefaultPolicy()
	}

	s := &IngestService{
		store:   store,
		chain:   validator.NewPolicyChain(cfg.Policy),
		workers: cfg.Workers,
		now:     time.Now,
		logger:  logging.Discard(),
		tracer:  otel.Tracer("ingest/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type sourceKey struct{}

// WithSource tags ctx with the transport that delivered the batch ("http", "mqtt").
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "api"
}

type eventResult struct {
	outcome models.Outcome
	reason  models.Reason
}

// Ingest processes every event in the batch and always returns a complete
// result. Events are independent: one event's failure never affects another,
// and nothing is rolled back.
func (s *IngestService) Ingest(ctx context.Context, events []models.InboundEvent) models.BatchResult {
	source := sourceFrom(ctx)
	started := time.Now()

	ctx, span := s.tracer.Start(ctx, "IngestService.Ingest", trace.WithAttributes(
		attribute.String("ingest.source", source),
		attribute.Int("ingest.batch_size", len(events)),
	))
	defer span.End()

	results := make([]eventResult, len(events))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range events {
		g.Go(func() error {
			results[i] = s.processEvent(ctx, events[i])
			return nil
		})
	}
	_ = g.Wait()

	batch := models.BatchResult{Rejections: []models.Rejection{}}
	perFactory := make(map[string]*linestats.Counts)

	for i, r := range results {
		counts, ok := perFactory[events[i].FactoryID]
		if !ok {
			counts = &linestats.Counts{}
			perFactory[events[i].FactoryID] = counts
		}

		switch r.outcome {
		case models.OutcomeAccepted:
			batch.Accepted++
			counts.Accepted++
		case models.OutcomeUpdated:
			batch.Updated++
			counts.Updated++
		case models.OutcomeDeduped:
			batch.Deduped++
			counts.Deduped++
		case models.OutcomeRejected:
			batch.Rejected++
			counts.Rejected++
			batch.Rejections = append(batch.Rejections, models.Rejection{EventID: events[i].EventID, Reason: r.reason})
		}
		metrics.EventsTotal.WithLabelValues(source, string(r.outcome), string(r.reason)).Inc()
	}

	if s.stats != nil {
		for factoryID, counts := range perFactory {
			s.stats.Record(factoryID, *counts)
		}
	}

	metrics.BatchesTotal.WithLabelValues(source).Inc()
	metrics.BatchSize.Observe(float64(len(events)))
	metrics.BatchDuration.Observe(time.Since(started).Seconds())

	span.SetAttributes(
		attribute.Int("ingest.accepted", batch.Accepted),
		attribute.Int("ingest.updated", batch.Updated),
		attribute.Int("ingest.deduped", batch.Deduped),
		attribute.Int("ingest.rejected", batch.Rejected),
	)

	s.logger.DebugContext(ctx, "batch ingested",
		logging.BatchSize(len(events)),
		"source", source,
		"accepted", batch.Accepted,
		"updated", batch.Updated,
		"deduped", batch.Deduped,
		"rejected", batch.Rejected,
		logging.Duration(time.Since(started)),
	)

	return batch
}

func (s *IngestService) processEvent(ctx context.Context, in models.InboundEvent) eventResult {
	receivedAt := models.NormalizeTime(s.now())
	event := in.Normalized()

	if rej := s.chain.Validate(event, receivedAt); rej != nil {
		return eventResult{outcome: models.OutcomeRejected, reason: rej.Reason}
	}

	hash := fingerprint.Compute(event)

	existing, err := s.find(ctx, event.EventID)
	if err != nil {
		return s.storageFailure(ctx, event, "find", err)
	}

	decision := resolver.Resolve(existing, hash, receivedAt)
	switch decision.Action {
	case resolver.Discard:
		return eventResult{outcome: models.OutcomeDeduped, reason: decision.Reason}

	case resolver.Insert:
		rec := models.NewStoredRecord(event, receivedAt, hash)
		if err := s.timed("insert", func() error { return s.store.Insert(ctx, rec) }); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				s.logger.DebugContext(ctx, "insert lost race",
					logging.EventID(event.EventID), logging.Reason(string(models.ReasonRaceLost)))
				return eventResult{outcome: models.OutcomeDeduped, reason: models.ReasonRaceLost}
			}
			return s.storageFailure(ctx, event, "insert", err)
		}
		s.notify(ctx, rec, models.ChangeInserted)
		return eventResult{outcome: models.OutcomeAccepted}

	default:
		rec := models.NewStoredRecord(event, receivedAt, hash)
		var applied bool
		err := s.timed("update", func() error {
			var uerr error
			applied, uerr = s.store.Update(ctx, rec)
			return uerr
		})
		if err != nil {
			return s.storageFailure(ctx, event, "update", err)
		}
		if applied {
			s.notify(ctx, rec, models.ChangeUpdated)
			return eventResult{outcome: models.OutcomeUpdated}
		}
		return s.classifyLostUpdate(ctx, event, hash, receivedAt)
	}
}

// classifyLostUpdate re-reads the record after a conditional update matched no
// row. A concurrent writer committed an identical or newer version.
func (s *IngestService) classifyLostUpdate(ctx context.Context, event models.InboundEvent, hash string, receivedAt time.Time) eventResult {
	current, err := s.find(ctx, event.EventID)
	if err != nil {
		return s.storageFailure(ctx, event, "find", err)
	}

	reason := models.ReasonStale
	if d := resolver.Resolve(current, hash, receivedAt); d.Action == resolver.Discard {
		reason = d.Reason
	}
	s.logger.DebugContext(ctx, "conditional update not applied",
		logging.EventID(event.EventID), logging.Reason(string(reason)))
	return eventResult{outcome: models.OutcomeDeduped, reason: reason}
}

// find returns (nil, nil) when no record exists.
func (s *IngestService) find(ctx context.Context, eventID string) (*models.StoredRecord, error) {
	var rec *models.StoredRecord
	err := s.timed("find", func() error {
		var ferr error
		rec, ferr = s.store.Find(ctx, eventID)
		return ferr
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s *IngestService) timed(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.StorageDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrDuplicateKey) {
		metrics.StorageErrors.WithLabelValues(op).Inc()
	}
	return err
}

func (s *IngestService) storageFailure(ctx context.Context, event models.InboundEvent, op string, err error) eventResult {
	s.logger.ErrorContext(ctx, "store operation failed",
		"op", op,
		logging.EventID(event.EventID),
		logging.MachineID(event.MachineID),
		logging.Error(err),
	)
	trace.SpanFromContext(ctx).RecordError(err, trace.WithAttributes(attribute.String("event.id", event.EventID)))
	trace.SpanFromContext(ctx).SetStatus(codes.Error, "store operation failed")

	if s.dlq != nil {
		if dlqErr := s.dlq.Write(ctx, event, err, models.ReasonStorageFailure); dlqErr != nil {
			metrics.DLQWrites.WithLabelValues("error").Inc()
			s.logger.ErrorContext(ctx, "failed to write dead letter",
				logging.EventID(event.EventID), logging.Error(dlqErr))
		} else {
			metrics.DLQWrites.WithLabelValues("ok").Inc()
		}
	}

	return eventResult{outcome: models.OutcomeRejected, reason: models.ReasonStorageFailure}
}

func (s *IngestService) notify(ctx context.Context, rec *models.StoredRecord, change models.Change) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, models.RecordChanged{
		EventID:      rec.EventID,
		FactoryID:    rec.FactoryID,
		LineID:       rec.LineID,
		MachineID:    rec.MachineID,
		Change:       change,
		ReceivedTime: rec.ReceivedTime.Format(time.RFC3339Nano),
		PayloadHash:  rec.PayloadHash,
	})
}
