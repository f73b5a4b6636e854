package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/camspipe/bridge/internal/adapters/repository"
	"github.com/camspipe/bridge/internal/domain/dedupe"
	"github.com/camspipe/bridge/internal/domain/model"
	"github.com/camspipe/bridge/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// scriptSource replays a fixed set of payloads, then blocks until ctx is
// canceled.
type scriptSource struct {
	payloads [][]byte
	idx      int
	closed   bool
}

func (s *scriptSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.idx < len(s.payloads) {
		p := s.payloads[s.idx]
		s.idx++
		return p, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *scriptSource) Close() error {
	s.closed = true
	return nil
}

// captureHub records broadcast payloads.
type captureHub struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (h *captureHub) Broadcast(_ context.Context, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payloads = append(h.payloads, payload)
}

func (h *captureHub) all() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.payloads))
	copy(out, h.payloads)
	return out
}

// flakySink fails a configured number of times before succeeding, or
// always returns a fixed error.
type flakySink struct {
	mu       sync.Mutex
	failures int
	err      error
	attempts int
	inserted []model.ActivityEvent
}

func (s *flakySink) Insert(_ context.Context, e model.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.err != nil {
		return s.err
	}
	if s.attempts <= s.failures {
		return fmt.Errorf("%w: simulated", repository.ErrStoreUnavailable)
	}
	s.inserted = append(s.inserted, e)
	return nil
}

func payloadFor(id string, ts int64) []byte {
	return []byte(fmt.Sprintf(`{"student_id":%q,"status":"distracted","confidence":0.82,"timestamp":%d}`, id, ts))
}

func runConsumer(t *testing.T, src Source, sink Sink, hub Broadcaster, opts ...Option) *Consumer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c := New(src, sink, hub, opts...)
	c.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})

	return c
}

func waitForPayloads(t *testing.T, hub *captureHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(hub.all()) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d broadcasts, got %d", n, len(hub.all()))
}

func TestConsumer_OrderPreserved(t *testing.T) {
	src := &scriptSource{payloads: [][]byte{
		payloadFor("S1", 1700000000),
		payloadFor("S2", 1700000001),
		payloadFor("S3", 1700000002),
	}}
	store := repository.NewMemoryStore()
	hub := &captureHub{}

	runConsumer(t, src, store, hub)
	waitForPayloads(t, hub, 3)

	rows, err := store.RecentN(context.Background(), 10)
	if err != nil {
		t.Fatalf("recentN failed: %v", err)
	}
	// Newest-first read of an in-order arrival sequence.
	want := []string{"S3", "S2", "S1"}
	for i, id := range want {
		if rows[i].StudentID != id {
			t.Errorf("row %d: expected %q, got %q", i, id, rows[i].StudentID)
		}
	}
}

func TestConsumer_MalformedSkipped(t *testing.T) {
	src := &scriptSource{payloads: [][]byte{
		payloadFor("S1", 1700000000),
		[]byte(`{{{not json`),
		payloadFor("S2", 1700000001),
	}}
	store := repository.NewMemoryStore()
	hub := &captureHub{}

	c := runConsumer(t, src, store, hub)
	waitForPayloads(t, hub, 2)

	if got := store.Count(context.Background()); got != 2 {
		t.Errorf("expected 2 rows, got %d", got)
	}
	if c.Err() != nil {
		t.Errorf("malformed message must not be fatal: %v", c.Err())
	}
}

func TestConsumer_AlertPayload(t *testing.T) {
	src := &scriptSource{payloads: [][]byte{payloadFor("S1", 1700000000)}}
	store := repository.NewMemoryStore()
	hub := &captureHub{}

	runConsumer(t, src, store, hub)
	waitForPayloads(t, hub, 1)

	var alert map[string]any
	if err := json.Unmarshal(hub.all()[0], &alert); err != nil {
		t.Fatalf("broadcast payload is not valid JSON: %v", err)
	}
	if alert["type"] != "ALERT" || alert["student_id"] != "S1" ||
		alert["status"] != "distracted" || alert["confidence"] != 0.82 ||
		alert["timestamp"] != float64(1700000000) {
		t.Errorf("unexpected alert payload: %v", alert)
	}
}

func TestConsumer_WriteBeforeBroadcast(t *testing.T) {
	store := repository.NewMemoryStore()
	checked := make(chan int, 1)
	hub := &checkingHub{store: store, counts: checked}
	src := &scriptSource{payloads: [][]byte{payloadFor("S1", 1700000000)}}

	runConsumer(t, src, hub.wrap(), hub)

	select {
	case n := <-checked:
		if n != 1 {
			t.Errorf("expected 1 row persisted before broadcast, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never happened")
	}
}

// checkingHub snapshots the store's row count at broadcast time.
type checkingHub struct {
	store  *repository.MemoryStore
	counts chan int
}

func (h *checkingHub) wrap() Sink { return h.store }

func (h *checkingHub) Broadcast(ctx context.Context, _ []byte) {
	select {
	case h.counts <- h.store.Count(ctx):
	default:
	}
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	src := &scriptSource{payloads: [][]byte{payloadFor("S1", 1700000000)}}
	sink := &flakySink{failures: 2}
	hub := &captureHub{}

	c := runConsumer(t, src, sink, hub,
		WithRetryInitialInterval(time.Millisecond),
		WithRetryMaxElapsed(time.Second),
	)
	waitForPayloads(t, hub, 1)

	sink.mu.Lock()
	attempts := sink.attempts
	sink.mu.Unlock()
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if c.Err() != nil {
		t.Errorf("expected recovered run, got %v", c.Err())
	}
}

func TestConsumer_PersistFailureFatal(t *testing.T) {
	src := &scriptSource{payloads: [][]byte{payloadFor("S1", 1700000000)}}
	sink := &flakySink{err: fmt.Errorf("%w: down", repository.ErrStoreUnavailable)}
	hub := &captureHub{}

	c := runConsumer(t, src, sink, hub,
		WithRetryInitialInterval(time.Millisecond),
		WithRetryMaxElapsed(20*time.Millisecond),
	)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not terminate on persistence failure")
	}

	if !errors.Is(c.Err(), repository.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", c.Err())
	}
	if len(hub.all()) != 0 {
		t.Error("no broadcast may happen for an unpersisted event")
	}
	if !src.closed {
		t.Error("expected source released on exit")
	}
}

func TestConsumer_ConstraintFailsFast(t *testing.T) {
	src := &scriptSource{payloads: [][]byte{payloadFor("S1", 1700000000)}}
	sink := &flakySink{err: fmt.Errorf("%w: bad row", repository.ErrConstraint)}
	hub := &captureHub{}

	c := runConsumer(t, src, sink, hub,
		WithRetryInitialInterval(time.Millisecond),
		WithRetryMaxElapsed(time.Second),
	)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not terminate on constraint violation")
	}

	sink.mu.Lock()
	attempts := sink.attempts
	sink.mu.Unlock()
	if attempts != 1 {
		t.Errorf("constraint violations must not be retried; got %d attempts", attempts)
	}
	if !errors.Is(c.Err(), repository.ErrConstraint) {
		t.Errorf("expected ErrConstraint, got %v", c.Err())
	}
}

func TestConsumer_DuplicateSuppressed(t *testing.T) {
	src := &scriptSource{payloads: [][]byte{
		payloadFor("S1", 1700000000),
		payloadFor("S1", 1700000000), // redelivery
		payloadFor("S2", 1700000001),
	}}
	store := repository.NewMemoryStore()
	hub := &captureHub{}

	runConsumer(t, src, store, hub, WithGuard(dedupe.NewRingGuard()))
	waitForPayloads(t, hub, 2)

	if got := store.Count(context.Background()); got != 2 {
		t.Errorf("expected duplicate suppressed, got %d rows", got)
	}
}

func TestConsumer_CleanCancellation(t *testing.T) {
	src := &scriptSource{payloads: [][]byte{payloadFor("S1", 1700000000)}}
	store := repository.NewMemoryStore()
	hub := &captureHub{}

	ctx, cancel := context.WithCancel(context.Background())
	c := New(src, store, hub)
	c.Start(ctx)
	waitForPayloads(t, hub, 1)

	cancel()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop on cancellation")
	}

	if c.Err() != nil {
		t.Errorf("cancellation must be a clean stop, got %v", c.Err())
	}
	if c.Running() {
		t.Error("consumer still reports running after stop")
	}
	if !src.closed {
		t.Error("expected source released on exit")
	}
}
