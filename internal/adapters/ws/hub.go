package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camspipe/bridge/pkg/logger"
	"github.com/camspipe/bridge/pkg/metrics"
)

// Default hub configuration constants.
const (
	defaultObserverBuffer = 64
	defaultWriteTimeout   = 5 * time.Second
)

// Hub tracks currently-connected observers and performs fan-out broadcast.
// Registry mutation and the broadcast pass are mutually exclusive: a
// connection present in the registry is assumed writable, and failures
// observed during a pass are removed after the pass completes.
type Hub struct {
	mu        sync.Mutex
	observers map[uuid.UUID]*Observer
	closed    bool

	observerBuffer int
	writeTimeout   time.Duration
	logger         logger.Logger
}

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithObserverBuffer sets the per-observer outbound queue size.
func WithObserverBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.observerBuffer = n
		}
	}
}

// WithWriteTimeout bounds a single transport write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates an empty observer registry.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		observers:      make(map[uuid.UUID]*Observer),
		observerBuffer: defaultObserverBuffer,
		writeTimeout:   defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("hub")
	}
	return h
}

// Register wraps the accepted connection in an Observer, starts its write
// pump and adds it to the registry. Returns nil when the hub is closed.
func (h *Hub) Register(ctx context.Context, conn Conn) *Observer {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	o := &Observer{
		id:           uuid.New(),
		conn:         conn,
		out:          make(chan []byte, h.observerBuffer),
		done:         make(chan struct{}),
		writeTimeout: h.writeTimeout,
		logger:       h.logger,
	}
	h.observers[o.id] = o
	go o.writePump()

	metrics.UpdateObserversConnected(len(h.observers))
	h.logger.Debug(ctx, "observer registered",
		logger.String("observer", o.id.String()),
		logger.Int("connected", len(h.observers)),
	)
	return o
}

// Unregister removes an observer and closes its connection. Removing an
// absent observer is a no-op.
func (h *Hub) Unregister(ctx context.Context, o *Observer) {
	if o == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(ctx, o)
}

// removeLocked drops the observer from the registry and tears it down.
// Must be called with h.mu held.
func (h *Hub) removeLocked(ctx context.Context, o *Observer) {
	if _, ok := h.observers[o.id]; !ok {
		return
	}
	delete(h.observers, o.id)

	// Closing the buffer stops the write pump; closing the connection
	// stops the read side in the transport handler.
	close(o.out)
	_ = o.conn.Close()

	metrics.UpdateObserversConnected(len(h.observers))
	h.logger.Debug(ctx, "observer unregistered",
		logger.String("observer", o.id.String()),
		logger.Int("connected", len(h.observers)),
	)
}

// Broadcast queues payload for every registered observer. Per-observer
// failures never abort the pass; the failing set is collected during the
// pass and removed after it completes.
func (h *Hub) Broadcast(ctx context.Context, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	metrics.RecordBroadcast()

	var failed []*Observer
	delivered := 0
	for _, o := range h.observers {
		if o.failed() || !o.enqueue(payload) {
			failed = append(failed, o)
			continue
		}
		delivered++
	}
	metrics.RecordBroadcastDeliveries(delivered)

	for _, o := range failed {
		metrics.RecordObserverSendDrop()
		h.logger.Warn(ctx, "dropping stalled observer",
			logger.String("observer", o.id.String()),
		)
		h.removeLocked(ctx, o)
	}
}

// Len returns the number of registered observers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Close unregisters every observer and rejects further registrations.
func (h *Hub) Close(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for _, o := range h.observers {
		h.removeLocked(ctx, o)
	}
}
