package testevents

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/camspipe/bridge/pkg/logger"
)

const randomFloatDivisor = 1000000

// Event is the wire form published to the activity topic.
type Event struct {
	StudentID  string  `json:"student_id"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"timestamp"`
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// pickStatus draws a status from the weighted distribution.
func pickStatus() string {
	r := getRandomFloat()
	acc := 0.0
	for _, sw := range statusWeights {
		acc += sw.weight
		if r < acc {
			return sw.status
		}
	}
	return statusWeights[len(statusWeights)-1].status
}

// generateEvents creates NumEvents activity events over a fixed student
// pool, with per-student strictly increasing timestamps so read-side
// ordering can be verified.
func generateEvents(ctx context.Context, config *Config, stats *Stats) ([]Event, error) {
	logger.Get().Info(ctx, "generating events",
		logger.Int("numEvents", config.NumEvents),
		logger.Int("students", config.Students))

	students := make([]string, config.Students)
	for i := range students {
		students[i] = uuid.New().String()
	}

	base := time.Now().Add(-time.Duration(config.NumEvents) * time.Second).Unix()
	events := make([]Event, 0, config.NumEvents)
	for i := 0; i < config.NumEvents; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("event generation cancelled: %w", ctx.Err())
		default:
		}

		events = append(events, Event{
			StudentID:  students[i%len(students)],
			Status:     pickStatus(),
			Confidence: 0.5 + getRandomFloat()*0.5,
			Timestamp:  base + int64(i),
		})
	}

	stats.Generated = len(events)
	return events, nil
}

// encodeEvents marshals events, replacing a configured fraction with
// payloads the bridge must reject and skip.
func encodeEvents(config *Config, events []Event, stats *Stats) ([][]byte, error) {
	malformedEvery := 0
	if config.MalformedRatio > 0 {
		malformedEvery = int(1 / config.MalformedRatio)
	}

	payloads := make([][]byte, 0, len(events))
	for i, e := range events {
		if malformedEvery > 0 && i%malformedEvery == malformedEvery-1 {
			payloads = append(payloads, malformedPayload(i))
			stats.Malformed++
			continue
		}
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal event: %w", err)
		}
		payloads = append(payloads, raw)
	}
	return payloads, nil
}

// malformedPayload rotates through the breakage modes the consumer has
// to survive.
func malformedPayload(i int) []byte {
	switch i % 3 {
	case 0:
		return []byte("not json at all")
	case 1:
		return []byte(`{"status":"FOCUSED","confidence":0.9,"timestamp":1700000000}`)
	default:
		return []byte(`{"student_id":"s1","status":"FOCUSED","confidence":0.9,"timestamp":"yesterday"}`)
	}
}
