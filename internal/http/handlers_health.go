package httpx

import (
	"io"
	"net/http"

	"github.com/target/mediabroker/internal/domain/model"
	"github.com/target/mediabroker/internal/service"
)

const healthResponse = `{"status":"ok"}`

// healthHandler returns a simple 200 OK status for readiness/liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

// HealthHandlers serves the diagnostic probe.
type HealthHandlers struct {
	Svc *service.HealthService
}

// Report handles GET /api/health. A degraded report is served with 503 so
// load balancers can act on it.
func (h *HealthHandlers) Report(w http.ResponseWriter, r *http.Request) {
	rep := h.Svc.Report(r.Context())
	code := http.StatusOK
	if rep.Status != model.HealthOK {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, rep)
}
