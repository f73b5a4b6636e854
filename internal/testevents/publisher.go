package testevents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/camspipe/bridge/pkg/logger"
)

// publishEvents writes payloads to the activity topic. Messages are
// keyed by student so a partitioned topic keeps per-student order.
func publishEvents(ctx context.Context, config *Config, events []Event, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "publishing events",
		logger.Any("brokers", config.Brokers),
		logger.String("topic", config.Topic),
		logger.Int("count", len(events)))

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Warn(ctx, "closing kafka writer", logger.Error(err))
		}
	}()

	payloads, err := encodeEvents(config, events, stats)
	if err != nil {
		return err
	}

	msgs := make([]kafka.Message, 0, publishBatchSize)
	flush := func() error {
		if len(msgs) == 0 {
			return nil
		}
		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			stats.PublishErrs.Add(int64(len(msgs)))
			return fmt.Errorf("write messages: %w", err)
		}
		stats.Published.Add(int64(len(msgs)))
		msgs = msgs[:0]
		return nil
	}

	for i, raw := range payloads {
		key := keyFor(raw, events, i)
		msgs = append(msgs, kafka.Message{Key: key, Value: raw})
		if len(msgs) == publishBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	log.Info(ctx, "events published",
		logger.Int64("published", stats.Published.Load()),
		logger.Int("malformed", stats.Malformed))
	return nil
}

// keyFor extracts the partition key. Malformed payloads that do not
// decode get an empty key; the broker spreads them arbitrarily.
func keyFor(raw []byte, events []Event, i int) []byte {
	var probe struct {
		StudentID string `json:"student_id"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.StudentID != "" {
		return []byte(probe.StudentID)
	}
	if i < len(events) {
		return []byte(events[i].StudentID)
	}
	return nil
}
