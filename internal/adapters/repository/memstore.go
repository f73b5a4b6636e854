package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/camspipe/bridge/internal/domain/model"
)

// Default in-memory store configuration constants.
const (
	defaultMemoryCap = 10000
)

// MemoryStore implements Store in process memory. It backs local runs and
// tests; rows survive only as long as the process.
type MemoryStore struct {
	mu  sync.RWMutex
	cap int
	// rows in arrival order; oldest first
	rows []Activity
}

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCapacity bounds how many rows the store retains. When full, the
// oldest arrival is evicted.
func WithCapacity(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.cap = n
		}
	}
}

// NewMemoryStore creates an in-memory store with configuration options.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		cap: defaultMemoryCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rows = make([]Activity, 0, s.cap)
	return s
}

// Insert appends one row, evicting the oldest arrival at capacity.
func (s *MemoryStore) Insert(_ context.Context, e model.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rows) >= s.cap {
		s.rows = s.rows[1:]
	}
	s.rows = append(s.rows, fromEvent(e))
	return nil
}

// RecentN returns up to n rows ordered by ts descending. Ties keep the
// later arrival first, matching the postgres ordering for equal ts.
func (s *MemoryStore) RecentN(_ context.Context, n int) ([]Activity, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Activity, len(s.rows))
	copy(out, s.rows)

	// Stable sort on a reversed-arrival copy keeps later arrivals first
	// among equal timestamps.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TS.After(out[j].TS)
	})

	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Count returns the number of retained rows.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Ping always succeeds; the process is the store.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() {}
