package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kafka reader tuning constants.
const (
	commitInterval = time.Second
	minFetchBytes  = 1
	maxFetchBytes  = 10 << 20
)

// KafkaSource implements Source over a consumer-group reader. With no
// prior committed offset the group starts at the earliest retained offset;
// otherwise it resumes from the last commit. Offsets are committed
// periodically, giving at-least-once delivery.
type KafkaSource struct {
	reader *kafka.Reader
}

// NewKafkaSource subscribes to topic on the given brokers as group.
func NewKafkaSource(brokers []string, topic, group string) *KafkaSource {
	return &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        group,
			StartOffset:    kafka.FirstOffset,
			CommitInterval: commitInterval,
			MinBytes:       minFetchBytes,
			MaxBytes:       maxFetchBytes,
		}),
	}
}

// Fetch blocks for the next message in partition order and marks it for
// the periodic offset commit.
func (s *KafkaSource) Fetch(ctx context.Context) ([]byte, error) {
	m, err := s.reader.ReadMessage(ctx)
	if err != nil {
		// The reader reports EOF once Close has been called.
		if errors.Is(err, io.EOF) {
			return nil, ErrSourceClosed
		}
		return nil, fmt.Errorf("read message: %w", err)
	}
	return m.Value, nil
}

// Close releases the group subscription.
func (s *KafkaSource) Close() error {
	if err := s.reader.Close(); err != nil {
		return fmt.Errorf("close reader: %w", err)
	}
	return nil
}
