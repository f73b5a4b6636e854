package api

import (
	"net/http"

	"github.com/camspipe/bridge/pkg/logger"
)

// StatsHandler handles stats requests.
type StatsHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps Dependencies, log logger.Logger) *StatsHandler {
	return &StatsHandler{deps: deps, log: log}
}

// Handle handles GET /stats requests.
func (h *StatsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.deps.GetStats())
}
