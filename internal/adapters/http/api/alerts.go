package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/camspipe/bridge/pkg/logger"
)

const (
	wsReadLimit    = 512
	wsHandshakeTTL = 10 * time.Second
)

// AlertsHandler upgrades connections on /ws/alerts and attaches them
// to the fan-out hub. The endpoint is push-only: anything an observer
// sends is read and discarded, the read loop exists to notice
// disconnects.
type AlertsHandler struct {
	deps     Dependencies
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewAlertsHandler creates a new alerts WebSocket handler.
func NewAlertsHandler(deps Dependencies, log logger.Logger) *AlertsHandler {
	return &AlertsHandler{
		deps: deps,
		log:  log,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: wsHandshakeTTL,
			CheckOrigin:      func(_ *http.Request) bool { return true },
		},
	}
}

func (h *AlertsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	obs := h.deps.RegisterObserver(r.Context(), conn)
	if obs == nil {
		_ = conn.Close()
		return
	}
	h.log.Debug(r.Context(), "observer connected",
		logger.String("remote", conn.RemoteAddr().String()))

	conn.SetReadLimit(wsReadLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	// The request context is tied to this handler, use a fresh one for
	// teardown.
	h.deps.UnregisterObserver(context.WithoutCancel(r.Context()), obs)
	h.log.Debug(r.Context(), "observer disconnected",
		logger.String("remote", conn.RemoteAddr().String()))
}
