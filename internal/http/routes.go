package httpx

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/target/mediabroker/internal/domain/model"
	"github.com/target/mediabroker/internal/observability/statsd"
	"github.com/target/mediabroker/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs   *service.JobService
	Health *service.HealthService
	// SubmitLimiter throttles job submissions; nil disables throttling.
	SubmitLimiter *rate.Limiter
	Logger        *slog.Logger
	Metrics       statsd.Sink
}

// NewRouter creates the HTTP handler with logging and panic recovery applied.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	registerJobRoutes(mux, &JobHandlers{Svc: services.Jobs, Logger: logger}, services.SubmitLimiter)
	if services.Health != nil {
		hh := &HealthHandlers{Svc: services.Health}
		mux.HandleFunc("GET /api/health", hh.Report)
		mux.HandleFunc("GET /health", hh.Report)
	}
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.HandleFunc("/", notFound)

	return Chain(mux, Logging(logger, services.Metrics), Recover(logger))
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers, limiter *rate.Limiter) {
	mux.Handle("POST /api/jobs", RateLimit(limiter)(http.HandlerFunc(h.Submit)))
	mux.HandleFunc("GET /api/jobs", h.List)
	mux.HandleFunc("GET /api/jobs/{id}", h.Status)
	mux.HandleFunc("GET /api/jobs/{id}/file", h.Fetch)
	mux.HandleFunc("DELETE /api/jobs/{id}", h.Delete)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, ErrorParams{Code: http.StatusNotFound, Category: model.CategoryUnknown, Message: "no such endpoint"})
}
