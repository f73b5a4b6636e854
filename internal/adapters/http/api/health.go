package api

import (
	"net/http"

	"github.com/camspipe/bridge/pkg/logger"
)

// HealthHandler reports bridge liveness.
type HealthHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps Dependencies, log logger.Logger) *HealthHandler {
	return &HealthHandler{deps: deps, log: log}
}

// Handle handles GET /health requests. The body always carries the
// component breakdown; the status code flips to 503 when the store or
// the consumer is unhealthy.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	report := h.deps.Health(r.Context())

	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
		h.log.Warn(r.Context(), "health check degraded",
			logger.String("store", report.Store),
			logger.String("consumer", report.Consumer))
	}
	writeJSON(w, status, report)
}
