package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/telhawk-systems/linehawk/common/logging"
	"github.com/telhawk-systems/linehawk/common/middleware"
	"github.com/telhawk-systems/linehawk/ingest/internal/handlers"
)

// NewRouter constructs a ServeMux with ingest API routes registered.
func NewRouter(h *handlers.Handler, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()

	// Ingestion
	mux.HandleFunc("POST /events/batch", h.IngestBatch)

	// Read side
	mux.HandleFunc("GET /stats", h.MachineStats)
	mux.HandleFunc("GET /stats/top-defect-lines", h.TopDefectLines)
	mux.HandleFunc("GET /stats/ingest", h.IngestStats)

	// Dead-letter queue
	mux.HandleFunc("GET /dlq", h.DLQStats)
	mux.HandleFunc("GET /dlq/events", h.DLQList)
	mux.HandleFunc("DELETE /dlq/events", h.DLQPurge)

	// Health endpoints
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	traced := otelhttp.NewHandler(mux, "ingest",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return middleware.RequestID(AccessLog(logger)(traced))
}
