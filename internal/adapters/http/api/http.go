// Package api exposes the read side of the bridge over HTTP: a health
// probe, the recent-activity query, runtime stats, the live alerts
// WebSocket endpoint, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/camspipe/bridge/internal/adapters/repository"
	"github.com/camspipe/bridge/internal/adapters/ws"
	app "github.com/camspipe/bridge/internal/app"
	"github.com/camspipe/bridge/pkg/logger"
	"github.com/camspipe/bridge/pkg/metrics"
)

// Dependencies is the surface the handlers need from the application
// layer. *app.Service satisfies it.
type Dependencies interface {
	RecentN(ctx context.Context, n int) ([]repository.Activity, error)
	Health(ctx context.Context) app.Health
	GetStats() map[string]interface{}
	RegisterObserver(ctx context.Context, conn ws.Conn) *ws.Observer
	UnregisterObserver(ctx context.Context, o *ws.Observer)
}

// Register attaches all API routes to the given mux.
func Register(ctx context.Context, mux *http.ServeMux, deps Dependencies) error {
	if mux == nil || deps == nil {
		return NewKind("api.Register", ErrInvalidRequest)
	}

	log := logger.Get()

	mux.Handle("/health", MetricsMiddleware(NewHealthHandler(deps, log).Handle, "/health"))
	mux.Handle("/recent", MetricsMiddleware(NewRecentHandler(deps, log).Handle, "/recent"))
	mux.Handle("/stats", MetricsMiddleware(NewStatsHandler(deps, log).Handle, "/stats"))
	mux.Handle("/ws/alerts", NewAlertsHandler(deps, log))
	mux.Handle("/dashboard", MetricsMiddleware(NewDashboardHandler().Handle, "/dashboard"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	log.Info(ctx, "api routes registered")
	return nil
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}
