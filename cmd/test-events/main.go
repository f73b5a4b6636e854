package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/camspipe/bridge/internal/testevents"
)

// Default configuration constants.
const (
	defaultNumEvents      = 1000
	defaultStudents       = 25
	defaultMalformedRatio = 0.02
	defaultTimeout        = 30 * time.Second
	defaultTestTimeout    = 10 * time.Minute
)

func main() {
	var (
		brokers   = flag.String("brokers", "localhost:9092", "Comma-separated Kafka broker addresses")
		topic     = flag.String("topic", "student-activity", "Kafka topic to publish to")
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the bridge service")
		numEvents = flag.Int("events", defaultNumEvents, "Number of events to generate and publish")
		students  = flag.Int("students", defaultStudents, "Size of the synthetic student pool")
		malformed = flag.Float64("malformed", defaultMalformedRatio, "Fraction of payloads to corrupt, 0 disables")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile   = flag.String("log", "", "Log file for test output (default: test_log_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testevents.ShowHelp()
		return
	}

	if err := testevents.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testevents.Config{
		Brokers:        strings.Split(*brokers, ","),
		Topic:          *topic,
		BaseURL:        *baseURL,
		NumEvents:      *numEvents,
		Students:       *students,
		MalformedRatio: *malformed,
		Timeout:        *timeout,
		LogFile:        *logFile,
		Verbose:        *verbose,
	}

	if err := testevents.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
