// Package dedupe provides a bounded guard against broker redeliveries.
//
// The broker gives at-least-once delivery: after a rebalance or an offset
// commit that lags processing, the same message can be handed to the
// consumer again. The guard remembers recently seen event keys so the
// pipeline can suppress the duplicate write and broadcast. The memory is
// process-local; duplicates across restarts are still possible.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Guard records seen event keys for duplicate suppression.
type Guard interface {
	// SeenAndRecord atomically checks whether key was seen and records it
	// if not. Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Forget removes a key, allowing it to be processed again. Used when a
	// key was recorded but the processing of its event failed.
	Forget(ctx context.Context, key string)

	Size() int64
}

// ringGuard implements Guard with a fixed-size ring of keys. When the ring
// is full the oldest key is evicted, which bounds memory at maxSize keys.
type ringGuard struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	ring    []string
	next    int
	maxSize int
	size    atomic.Int64
}

const defaultMaxSize = 50000

// NewRingGuard creates a bounded guard with configuration options.
func NewRingGuard(opts ...Option) Guard {
	g := &ringGuard{
		maxSize: defaultMaxSize,
	}

	for _, opt := range opts {
		opt(g)
	}

	g.seen = make(map[string]struct{}, g.maxSize)
	g.ring = make([]string, g.maxSize)

	return g
}

// SeenAndRecord atomically checks whether key was seen and records it if not.
func (g *ringGuard) SeenAndRecord(_ context.Context, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[key]; ok {
		return true
	}

	// Evict the slot's previous occupant before reusing it.
	if old := g.ring[g.next]; old != "" {
		delete(g.seen, old)
		g.size.Add(-1)
	}

	g.ring[g.next] = key
	g.seen[key] = struct{}{}
	g.next = (g.next + 1) % g.maxSize
	g.size.Add(1)
	return false
}

// Forget removes a key so its event can be retried.
func (g *ringGuard) Forget(_ context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[key]; !ok {
		return
	}
	delete(g.seen, key)
	g.size.Add(-1)

	// Clear the ring slot so eviction does not double-delete.
	for i, k := range g.ring {
		if k == key {
			g.ring[i] = ""
			break
		}
	}
}

// Size returns the current number of recorded keys.
func (g *ringGuard) Size() int64 {
	return g.size.Load()
}

// nopGuard never records anything; used when deduplication is disabled.
type nopGuard struct{}

// NewNopGuard creates a guard that suppresses nothing.
func NewNopGuard() Guard { return nopGuard{} }

func (nopGuard) SeenAndRecord(context.Context, string) bool { return false }
func (nopGuard) Forget(context.Context, string)             {}
func (nopGuard) Size() int64                                { return 0 }
