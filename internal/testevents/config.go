// Package testevents drives an end-to-end exercise of the bridge: it
// publishes synthetic student-activity events to Kafka and verifies
// they surface on the HTTP read side.
package testevents

import (
	"sync/atomic"
	"time"
)

// Config holds the test run configuration.
type Config struct {
	Brokers        []string
	Topic          string
	BaseURL        string
	NumEvents      int
	Students       int
	MalformedRatio float64
	Timeout        time.Duration
	LogFile        string
	Verbose        bool
}

// Stats tracks test execution statistics.
type Stats struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Generated int
	Malformed int

	Published   atomic.Int64
	PublishErrs atomic.Int64

	RecentRows int
}
