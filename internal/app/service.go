// Package service provides the bridge supervisor that owns the lifecycle
// of the store, the observer hub and the consumer task, and implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/camspipe/bridge/internal/adapters/broker"
	"github.com/camspipe/bridge/internal/adapters/repository"
	"github.com/camspipe/bridge/internal/adapters/ws"
	"github.com/camspipe/bridge/internal/config"
	"github.com/camspipe/bridge/internal/domain/dedupe"
	"github.com/camspipe/bridge/pkg/logger"
)

// Default supervisor configuration constants.
const (
	defaultRecentLimit    = 20
	defaultMaxRecentLimit = 100
	stopTimeout           = 10 * time.Second
)

// Service owns process-wide lifecycle: the connection pool is opened
// before the consumer starts, and torn down only after the consumer has
// stopped using it.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	hub      *ws.Hub
	consumer *broker.Consumer

	// Configuration
	storeBackend    string
	postgresDSN     string
	memoryStoreCap  int
	storeOpTimeout  time.Duration
	kafkaBrokers    []string
	kafkaTopic      string
	kafkaGroup      string
	recentLimit     int
	maxRecentLimit  int
	observerBuffer  int
	writeTimeout    time.Duration
	retryMaxElapsed time.Duration
	dedupeSize      int

	// Injected for tests; built from kafka settings when nil.
	source broker.Source

	// State
	started        bool
	cancelConsumer context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig applies the loaded process configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		s.storeBackend = cfg.Store
		s.postgresDSN = cfg.PostgresDSN()
		s.memoryStoreCap = cfg.MemoryStoreCap
		s.storeOpTimeout = time.Duration(cfg.StoreOpTimeoutMS) * time.Millisecond
		s.kafkaBrokers = cfg.KafkaBrokers
		s.kafkaTopic = cfg.KafkaTopic
		s.kafkaGroup = cfg.KafkaGroup
		s.recentLimit = cfg.RecentLimit
		s.maxRecentLimit = cfg.MaxRecentLimit
		s.observerBuffer = cfg.ObserverBuffer
		s.writeTimeout = time.Duration(cfg.ObserverWriteTimeoutMS) * time.Millisecond
		s.retryMaxElapsed = time.Duration(cfg.WriteRetryMaxElapsedMS) * time.Millisecond
		s.dedupeSize = cfg.DedupeSize
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore injects a pre-built store, bypassing backend selection.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSource injects a pre-built message source, bypassing the Kafka
// subscription. Used by tests.
func WithSource(src broker.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeBackend:   config.StoreMemory,
		recentLimit:    defaultRecentLimit,
		maxRecentLimit: defaultMaxRecentLimit,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes shared resources and launches the consumer task.
// Order matters: the pool must be ready before any message is processed.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting activity bridge...")

	if s.store == nil {
		store, err := s.openStore(ctx)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
	}

	s.hub = ws.NewHub(
		ws.WithObserverBuffer(s.observerBuffer),
		ws.WithWriteTimeout(s.writeTimeout),
		ws.WithLogger(s.logger.Named("hub")),
	)

	if s.source == nil {
		s.source = broker.NewKafkaSource(s.kafkaBrokers, s.kafkaTopic, s.kafkaGroup)
	}

	guard := dedupe.NewNopGuard()
	if s.dedupeSize > 0 {
		guard = dedupe.NewRingGuard(dedupe.WithMaxSize(s.dedupeSize))
	}

	s.consumer = broker.New(s.source, s.store, s.hub,
		broker.WithGuard(guard),
		broker.WithRetryMaxElapsed(s.retryMaxElapsed),
		broker.WithLogger(s.logger.Named("consumer")),
	)

	// The consumer outlives the Start call; it stops via cancelConsumer.
	consumerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelConsumer = cancel
	s.consumer.Start(consumerCtx)

	s.started = true
	s.logger.Info(ctx, "activity bridge started",
		logger.String("store", s.storeBackend),
		logger.String("topic", s.kafkaTopic),
		logger.String("group", s.kafkaGroup),
	)

	return nil
}

// openStore builds the configured persistence backend.
func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	switch s.storeBackend {
	case config.StoreMemory:
		s.logger.Info(ctx, "using in-memory store")
		return repository.NewMemoryStore(repository.WithCapacity(s.memoryStoreCap)), nil
	case config.StorePostgres:
		s.logger.Info(ctx, "using postgres store")
		return repository.NewPostgresStore(ctx, s.postgresDSN,
			repository.WithOpTimeout(s.storeOpTimeout),
			repository.WithPostgresLogger(s.logger.Named("postgres")),
		)
	default:
		return nil, fmt.Errorf("unknown store backend %q", s.storeBackend)
	}
}

// Stop gracefully shuts the service down: signal the consumer, await its
// cooperative termination, then release hub and pool in that order.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping activity bridge...")

	if s.cancelConsumer != nil {
		s.cancelConsumer()
	}
	if s.consumer != nil {
		select {
		case <-s.consumer.Done():
		case <-time.After(stopTimeout):
			s.logger.Warn(ctx, "consumer did not stop within timeout")
		}
	}

	if s.hub != nil {
		s.hub.Close(ctx)
	}

	if s.store != nil {
		s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "activity bridge stopped")
}

// ConsumerDone exposes the consumer termination channel so callers can
// react to a dead ingest loop. Returns a never-closing channel before
// Start.
func (s *Service) ConsumerDone() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.consumer == nil {
		return make(chan struct{})
	}
	return s.consumer.Done()
}

// ConsumerErr reports why the consumer stopped, nil while it is running
// or after a clean shutdown.
func (s *Service) ConsumerErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Err()
}

// RecentN returns up to n most recent activity rows, newest first. A
// non-positive n falls back to the configured default; n is capped by the
// configured maximum.
func (s *Service) RecentN(ctx context.Context, n int) ([]repository.Activity, error) {
	if n <= 0 {
		n = s.recentLimit
	}
	if n > s.maxRecentLimit {
		n = s.maxRecentLimit
	}

	rows, err := s.store.RecentN(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("recent query: %w", err)
	}
	return rows, nil
}

// RegisterObserver adds an accepted connection to the registry.
func (s *Service) RegisterObserver(ctx context.Context, conn ws.Conn) *ws.Observer {
	return s.hub.Register(ctx, conn)
}

// UnregisterObserver removes an observer; absent observers are a no-op.
func (s *Service) UnregisterObserver(ctx context.Context, o *ws.Observer) {
	s.hub.Unregister(ctx, o)
}

// Health reports liveness of the bridge and its dependencies.
type Health struct {
	Healthy  bool   `json:"-"`
	Status   string `json:"status"`
	Store    string `json:"store"`
	Consumer string `json:"consumer"`
}

// Health checks store reachability and consumer-loop state. Liveness
// reflects actual connectivity, not just process-up.
func (s *Service) Health(ctx context.Context) Health {
	s.mu.RLock()
	started := s.started
	store := s.store
	consumer := s.consumer
	s.mu.RUnlock()

	h := Health{Healthy: true, Status: "ok", Store: "ok", Consumer: "ok"}
	if !started {
		return Health{Status: "starting", Store: "unknown", Consumer: "unknown"}
	}

	if err := store.Ping(ctx); err != nil {
		h.Healthy = false
		h.Status = "degraded"
		h.Store = "unreachable"
	}
	if !consumer.Running() {
		h.Healthy = false
		h.Status = "degraded"
		h.Consumer = "stopped"
		if err := consumer.Err(); err != nil {
			h.Consumer = "failed"
		}
	}
	return h
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"store":       s.storeBackend,
		"recentLimit": s.recentLimit,
	}

	if s.started {
		stats["observers"] = s.hub.Len()
		stats["rows"] = s.store.Count(ctx)
		stats["consumerRunning"] = s.consumer.Running()
	}

	return stats
}
