package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/camspipe/bridge/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeConn records writes and can be told to fail.
type fakeConn struct {
	mu       sync.Mutex
	written  [][]byte
	failNext bool
	closed   bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext {
		return errors.New("write failed")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.written = append(c.written, cp)
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	return 0, nil, errors.New("not used")
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.written))
	copy(out, c.written)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	ctx := context.Background()
	h := NewHub()
	defer h.Close(ctx)

	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		if o := h.Register(ctx, c); o == nil {
			t.Fatal("expected registration to succeed")
		}
	}
	if h.Len() != 3 {
		t.Fatalf("expected 3 observers, got %d", h.Len())
	}

	h.Broadcast(ctx, []byte(`{"type":"ALERT"}`))

	for i, c := range conns {
		c := c
		waitFor(t, func() bool { return len(c.messages()) == 1 })
		if got := string(c.messages()[0]); got != `{"type":"ALERT"}` {
			t.Errorf("conn %d: unexpected payload %q", i, got)
		}
	}
}

func TestHub_FailedSendDropsObserver(t *testing.T) {
	ctx := context.Background()
	h := NewHub()
	defer h.Close(ctx)

	good1 := &fakeConn{}
	bad := &fakeConn{failNext: true}
	good2 := &fakeConn{}
	h.Register(ctx, good1)
	badObs := h.Register(ctx, bad)
	h.Register(ctx, good2)

	h.Broadcast(ctx, []byte("one"))

	// The two healthy observers receive the message.
	waitFor(t, func() bool { return len(good1.messages()) == 1 && len(good2.messages()) == 1 })

	// The failing observer's write pump gives up; the next pass removes it.
	waitFor(t, func() bool { return badObs.failed() })
	h.Broadcast(ctx, []byte("two"))

	if h.Len() != 2 {
		t.Fatalf("expected failed observer removed, got %d observers", h.Len())
	}
	waitFor(t, func() bool { return len(good1.messages()) == 2 && len(good2.messages()) == 2 })
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := NewHub()
	defer h.Close(ctx)

	c := &fakeConn{}
	o := h.Register(ctx, c)

	h.Unregister(ctx, o)
	h.Unregister(ctx, o) // absent: no-op
	h.Unregister(ctx, nil)

	if h.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", h.Len())
	}
	if !c.closed {
		t.Error("expected connection to be closed on unregister")
	}

	// Broadcast over an empty registry touches zero connections.
	h.Broadcast(ctx, []byte("noop"))
	if got := len(c.messages()); got != 0 {
		t.Errorf("expected no deliveries after unregister, got %d", got)
	}
}

func TestHub_FullBufferDropsObserver(t *testing.T) {
	ctx := context.Background()
	h := NewHub(WithObserverBuffer(1))
	defer h.Close(ctx)

	// A connection that blocks forever would stall its pump; simulate by
	// filling the buffer faster than the pump can drain a failing conn.
	stuck := &fakeConn{failNext: true}
	o := h.Register(ctx, stuck)

	h.Broadcast(ctx, []byte("a"))
	waitFor(t, func() bool { return o.failed() })

	h.Broadcast(ctx, []byte("b"))
	if h.Len() != 0 {
		t.Fatalf("expected stalled observer dropped, got %d", h.Len())
	}
}

func TestHub_CloseRejectsRegistration(t *testing.T) {
	ctx := context.Background()
	h := NewHub()

	c := &fakeConn{}
	h.Register(ctx, c)
	h.Close(ctx)

	if h.Len() != 0 {
		t.Fatalf("expected empty registry after close, got %d", h.Len())
	}
	if o := h.Register(ctx, &fakeConn{}); o != nil {
		t.Error("expected registration to fail after close")
	}
}
