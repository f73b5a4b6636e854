// Package ws implements the live observer registry and broadcast fan-out.
package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/camspipe/bridge/pkg/logger"
)

// Conn is the transport handle an observer writes to. *websocket.Conn
// satisfies it; tests substitute fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Observer is one live push channel to an external consumer. Payloads are
// queued on a bounded outbound buffer and drained by a dedicated write
// pump, so a slow observer never blocks the broadcast pass.
type Observer struct {
	id           uuid.UUID
	conn         Conn
	out          chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	logger       logger.Logger
}

// ID returns the observer's registry identity.
func (o *Observer) ID() uuid.UUID { return o.id }

// enqueue offers a payload to the outbound buffer without blocking.
// Returns false when the observer is closed or its buffer is full.
func (o *Observer) enqueue(payload []byte) bool {
	select {
	case <-o.done:
		return false
	default:
	}

	select {
	case o.out <- payload:
		return true
	default:
		return false
	}
}

// writePump drains the outbound buffer to the connection. It exits when
// the buffer is closed by the hub or a write fails.
func (o *Observer) writePump() {
	for payload := range o.out {
		if o.writeTimeout > 0 {
			_ = o.conn.SetWriteDeadline(time.Now().Add(o.writeTimeout))
		}
		if err := o.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			o.markDone()
			// Drain remaining payloads so the hub's close of the
			// buffer never blocks.
			for range o.out {
			}
			return
		}
	}
	o.markDone()
}

// markDone flags the observer as no longer writable.
func (o *Observer) markDone() {
	o.closeOnce.Do(func() {
		close(o.done)
	})
}

// failed reports whether the write pump has given up on this observer.
func (o *Observer) failed() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}
