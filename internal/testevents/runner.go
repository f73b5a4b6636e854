package testevents

import (
	"context"
	"fmt"
	"time"

	"github.com/camspipe/bridge/pkg/logger"
)

// Run executes the complete bridge test: health check, publish to
// Kafka, wait for the consumer, then verify the HTTP read side.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	log := logger.Get()
	log.Info(ctx, "starting bridge event test",
		logger.String("baseURL", config.BaseURL),
		logger.Any("brokers", config.Brokers),
		logger.String("topic", config.Topic),
		logger.Int("events", config.NumEvents),
		logger.Int("students", config.Students),
		logger.Float64("malformedRatio", config.MalformedRatio))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate events
	events, err := generateEvents(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("event generation failed: %w", err)
	}

	// Step 3: Publish to Kafka
	if err := publishEvents(ctx, config, events, stats); err != nil {
		return fmt.Errorf("event publishing failed: %w", err)
	}

	// Step 4: Wait for the consumer to drain the topic
	log.Info(ctx, "waiting for events to be processed")
	select {
	case <-ctx.Done():
		return fmt.Errorf("cancelled while waiting: %w", ctx.Err())
	case <-time.After(ProcessingDelay):
	}

	// Step 5: Verify the read side
	if err := verifyRecent(ctx, config, events, stats); err != nil {
		return fmt.Errorf("recent verification failed: %w", err)
	}

	// Step 6: Final report
	svcStats, err := fetchStats(ctx, config)
	if err != nil {
		log.Warn(ctx, "failed to fetch service stats", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	log.Info(ctx, "test completed successfully",
		logger.Int("generated", stats.Generated),
		logger.Int64("published", stats.Published.Load()),
		logger.Int("malformed", stats.Malformed),
		logger.Int64("publishErrors", stats.PublishErrs.Load()),
		logger.Int("recentRows", stats.RecentRows),
		logger.Duration("duration", stats.Duration),
		logger.Any("serviceStats", svcStats))
	return nil
}
