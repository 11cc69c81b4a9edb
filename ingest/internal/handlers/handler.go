package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/telhawk-systems/linehawk/common/httputil"
	"github.com/telhawk-systems/linehawk/common/linestats"
	"github.com/telhawk-systems/linehawk/common/logging"
	"github.com/telhawk-systems/linehawk/common/messaging"
	"github.com/telhawk-systems/linehawk/ingest/internal/dlq"
	"github.com/telhawk-systems/linehawk/ingest/internal/models"
	"github.com/telhawk-systems/linehawk/ingest/internal/service"
	"github.com/telhawk-systems/linehawk/ingest/internal/stats"
)

// DefaultMaxBodyBytes caps a batch request body.
const DefaultMaxBodyBytes = 16 << 20

// IngestService is the batch entry point.
type IngestService interface {
	Ingest(ctx context.Context, events []models.InboundEvent) models.BatchResult
}

// StatsService serves read-side aggregates.
type StatsService interface {
	MachineStats(ctx context.Context, machineID string, start, end time.Time) (*models.MachineStats, error)
	TopDefectLines(ctx context.Context, factoryID string, start, end time.Time, limit int) ([]models.LineDefectStats, error)
}

// LineStatsReader reads per-factory outcome counters.
type LineStatsReader interface {
	GetStats(ctx context.Context, factoryID string) (*linestats.Stats, error)
}

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies wires optional collaborators into the Handler. Nil fields
// disable the matching endpoints.
type Dependencies struct {
	Ingest       IngestService
	Stats        StatsService
	LineStats    LineStatsReader
	DLQ          dlq.Backend
	Store        Pinger
	Broker       messaging.Client
	MaxBatchSize int
	MaxBodyBytes int64
	Logger       *logging.Logger
}

type Handler struct {
	deps Dependencies
}

func NewHandler(deps Dependencies) *Handler {
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Handler{deps: deps}
}

// IngestBatch handles POST /events/batch.
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.deps.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	events, err := models.DecodeBatch(body)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.deps.MaxBatchSize > 0 && len(events) > h.deps.MaxBatchSize {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "batch exceeds maximum size")
		return
	}

	ctx := service.WithSource(r.Context(), "http")
	result := h.deps.Ingest.Ingest(ctx, events)

	h.deps.Logger.InfoContext(ctx, "batch processed",
		logging.BatchSize(len(events)),
		"accepted", result.Accepted,
		"updated", result.Updated,
		"deduped", result.Deduped,
		"rejected", result.Rejected,
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// MachineStats handles GET /stats?machineId&start&end.
func (h *Handler) MachineStats(w http.ResponseWriter, r *http.Request) {
	machineID, err := httputil.RequireParam(r, "machineId")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, end, ok := parseWindow(w, r, "start", "end")
	if !ok {
		return
	}

	result, err := h.deps.Stats.MachineStats(r.Context(), machineID, start, end)
	if err != nil {
		h.writeStatsError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// TopDefectLines handles GET /stats/top-defect-lines?factoryId&from&to&limit.
func (h *Handler) TopDefectLines(w http.ResponseWriter, r *http.Request) {
	factoryID, err := httputil.RequireParam(r, "factoryId")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, to, ok := parseWindow(w, r, "from", "to")
	if !ok {
		return
	}
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), stats.DefaultTopLinesLimit)

	result, err := h.deps.Stats.TopDefectLines(r.Context(), factoryID, from, to, limit)
	if err != nil {
		h.writeStatsError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// IngestStats handles GET /stats/ingest?factoryId.
func (h *Handler) IngestStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.LineStats == nil {
		httputil.WriteError(w, http.StatusNotFound, "ingest stats are not enabled")
		return
	}
	factoryID, err := httputil.RequireParam(r, "factoryId")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.deps.LineStats.GetStats(r.Context(), factoryID)
	if err != nil {
		h.deps.Logger.ErrorContext(r.Context(), "failed to read ingest stats", logging.Error(err))
		httputil.WriteError(w, http.StatusServiceUnavailable, "ingest stats unavailable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func parseWindow(w http.ResponseWriter, r *http.Request, startName, endName string) (time.Time, time.Time, bool) {
	start, err := httputil.ParseTimeParam(r, startName)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, time.Time{}, false
	}
	end, err := httputil.ParseTimeParam(r, endName)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (h *Handler) writeStatsError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, stats.ErrInvalidWindow) {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.deps.Logger.ErrorContext(r.Context(), "stats query failed", logging.Error(err))
	httputil.WriteError(w, http.StatusInternalServerError, "stats query failed")
}

// DLQStats handles GET /dlq.
func (h *Handler) DLQStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.DLQ == nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.deps.DLQ.Stats(r.Context()))
}

// DLQList handles GET /dlq/events?limit.
func (h *Handler) DLQList(w http.ResponseWriter, r *http.Request) {
	if h.deps.DLQ == nil {
		httputil.WriteError(w, http.StatusNotFound, dlq.ErrNotEnabled.Error())
		return
	}
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), 100)
	events, err := h.deps.DLQ.List(r.Context(), limit)
	if err != nil {
		h.deps.Logger.ErrorContext(r.Context(), "failed to list dead letters", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}
	if events == nil {
		events = []dlq.FailedEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

// DLQPurge handles DELETE /dlq/events.
func (h *Handler) DLQPurge(w http.ResponseWriter, r *http.Request) {
	if h.deps.DLQ == nil {
		httputil.WriteError(w, http.StatusNotFound, dlq.ErrNotEnabled.Error())
		return
	}
	if err := h.deps.DLQ.Purge(r.Context()); err != nil {
		h.deps.Logger.ErrorContext(r.Context(), "failed to purge dead letters", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to purge dead letters")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /readyz. The store must answer; a disconnected broker is
// reported but does not fail readiness.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ready"}
	status := http.StatusOK

	if h.deps.Store != nil {
		if err := h.deps.Store.Ping(r.Context()); err != nil {
			body["status"] = "not ready"
			body["store"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			body["store"] = "ok"
		}
	}
	if h.deps.Broker != nil {
		body["messaging"] = messaging.CheckClientHealth(h.deps.Broker)
	}

	httputil.WriteJSON(w, status, body)
}
