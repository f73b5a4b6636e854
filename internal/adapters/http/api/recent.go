package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/camspipe/bridge/internal/adapters/repository"
	"github.com/camspipe/bridge/pkg/logger"
)

// RecentHandler serves the newest persisted activity events.
type RecentHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewRecentHandler creates a new recent-activity handler.
func NewRecentHandler(deps Dependencies, log logger.Logger) *RecentHandler {
	return &RecentHandler{deps: deps, log: log}
}

// Handle handles GET /recent requests. An optional limit query
// parameter overrides the default page size; the service caps it.
func (h *RecentHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	rows, err := h.deps.RecentN(r.Context(), limit)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidLimit) {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		h.log.Error(r.Context(), "recent query failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch recent activity")
		return
	}

	if rows == nil {
		rows = []repository.Activity{}
	}
	writeJSON(w, http.StatusOK, rows)
}
