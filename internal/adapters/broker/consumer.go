// Package broker owns the subscription to the activity topic and drives
// the persist-then-broadcast cycle for every delivered message.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/camspipe/bridge/internal/domain/dedupe"
	"github.com/camspipe/bridge/internal/domain/model"
	"github.com/camspipe/bridge/pkg/logger"
	"github.com/camspipe/bridge/pkg/metrics"
)

// Default consumer configuration constants.
const (
	defaultRetryInitialInterval = 100 * time.Millisecond
	defaultRetryMaxElapsed      = 30 * time.Second
)

// Source abstracts ordered message consumption from the broker.
type Source interface {
	// Fetch blocks until the next message payload is available or ctx is
	// canceled. Progress is committed by the implementation (at-least-once).
	Fetch(ctx context.Context) ([]byte, error)

	// Close releases the subscription.
	Close() error
}

// Sink is the durable write half of the repository store.
type Sink interface {
	Insert(ctx context.Context, e model.ActivityEvent) error
}

// Broadcaster fans a payload out to live observers.
type Broadcaster interface {
	Broadcast(ctx context.Context, payload []byte)
}

// Consumer runs the single long-lived pipeline loop: fetch, decode,
// persist, broadcast. The write always precedes the broadcast so a crash
// between the two loses a live notification, never a record.
type Consumer struct {
	source Source
	sink   Sink
	hub    Broadcaster
	guard  dedupe.Guard

	retryInitialInterval time.Duration
	retryMaxElapsed      time.Duration
	logger               logger.Logger

	startOnce sync.Once
	done      chan struct{}

	mu      sync.Mutex
	runErr  error
	started bool
}

// Option applies a configuration option to the Consumer.
type Option func(*Consumer)

// WithGuard installs a duplicate guard for redelivered messages.
func WithGuard(g dedupe.Guard) Option {
	return func(c *Consumer) {
		if g != nil {
			c.guard = g
		}
	}
}

// WithRetryMaxElapsed bounds the backoff window around a persistence
// write before the failure becomes fatal.
func WithRetryMaxElapsed(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.retryMaxElapsed = d
		}
	}
}

// WithRetryInitialInterval sets the first backoff delay.
func WithRetryInitialInterval(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.retryInitialInterval = d
		}
	}
}

// WithLogger sets a custom logger for the consumer.
func WithLogger(l logger.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// New constructs a Consumer over the given source, sink and broadcaster.
func New(source Source, sink Sink, hub Broadcaster, opts ...Option) *Consumer {
	c := &Consumer{
		source:               source,
		sink:                 sink,
		hub:                  hub,
		guard:                dedupe.NewNopGuard(),
		retryInitialInterval: defaultRetryInitialInterval,
		retryMaxElapsed:      defaultRetryMaxElapsed,
		done:                 make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("consumer")
	}
	return c
}

// Start launches the consumer loop as a background task. Subsequent calls
// are no-ops.
func (c *Consumer) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.mu.Lock()
		c.started = true
		c.mu.Unlock()

		go c.run(ctx)
	})
}

// run executes the pipeline until ctx is canceled or persistence fails.
func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)
	defer func() {
		if err := c.source.Close(); err != nil {
			c.logger.Warn(ctx, "failed to close source", logger.Error(err))
		}
	}()

	c.logger.Info(ctx, "consumer loop started")

	for {
		payload, err := c.source.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				c.logger.Info(ctx, "consumer loop stopping")
				return
			}
			c.fail(ctx, fmt.Errorf("fetch: %w", err))
			return
		}

		if err := c.process(ctx, payload); err != nil {
			c.fail(ctx, err)
			return
		}
	}
}

// process handles one delivered payload. A nil return means the loop may
// continue; an error is fatal to the run.
func (c *Consumer) process(ctx context.Context, payload []byte) error {
	start := time.Now()

	event, err := model.Decode(payload)
	if err != nil {
		// A single bad record must not stall the pipeline; the message
		// is dropped permanently.
		metrics.RecordMessageMalformed()
		metrics.RecordErrorByComponent("consumer", "malformed")
		c.logger.Warn(ctx, "skipping malformed message", logger.Error(err))
		return nil
	}

	key := event.Key()
	if c.guard.SeenAndRecord(ctx, key) {
		metrics.RecordMessageDuplicate()
		c.logger.Debug(ctx, "suppressing redelivered event", logger.String("key", key))
		return nil
	}

	if err := c.persist(ctx, event); err != nil {
		// The event was read but not stored; allow a later redelivery
		// to try again.
		c.guard.Forget(ctx, key)
		metrics.RecordStoreInsertError()
		return fmt.Errorf("persist %s: %w", key, err)
	}

	alert, err := model.EncodeAlert(event)
	if err != nil {
		// The row is durable; a missed live notification is acceptable.
		c.logger.Error(ctx, "failed to encode alert", logger.Error(err), logger.String("key", key))
		return nil
	}
	c.hub.Broadcast(ctx, alert)

	metrics.RecordMessageConsumed()
	metrics.RecordConsumeCycleTime(float64(time.Since(start).Milliseconds()))
	return nil
}

// persist writes the event with bounded exponential backoff. Constraint
// violations fail fast: retrying an invalid row cannot succeed.
func (c *Consumer) persist(ctx context.Context, event model.ActivityEvent) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInitialInterval
	bo.MaxElapsedTime = c.retryMaxElapsed

	attempt := 0
	op := func() error {
		attempt++
		err := c.sink.Insert(ctx, event)
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		metrics.RecordStoreInsertRetry()
		c.logger.Warn(ctx, "store write failed; retrying",
			logger.Error(err),
			logger.Int("attempt", attempt),
			logger.Duration("backoff", next),
		)
	}

	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
}

// fail records the fatal error that ended the run.
func (c *Consumer) fail(ctx context.Context, err error) {
	c.mu.Lock()
	c.runErr = err
	c.mu.Unlock()

	metrics.RecordErrorByComponent("consumer", "fatal")
	c.logger.Error(ctx, "consumer loop terminated", logger.Error(err))
}

// Done is closed when the consumer loop has exited.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

// Err returns the fatal error that ended the run, nil after a clean stop.
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

// Running reports whether the loop has started and not yet exited.
func (c *Consumer) Running() bool {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}
