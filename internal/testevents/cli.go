package testevents

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/camspipe/bridge/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "test_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the test events tool.
func ShowHelp() {
	os.Stdout.WriteString(`Bridge Event Test Tool
======================

Publishes synthetic student-activity events to Kafka and verifies they
surface on the bridge's HTTP read side.

Usage:
  go run cmd/test-events/main.go [options]

Options:
  -brokers string
        Comma-separated Kafka broker addresses (default "localhost:9092")
  -topic string
        Kafka topic to publish to (default "student-activity")
  -url string
        Base URL of the bridge service (default "http://localhost:9080")
  -events int
        Number of events to generate and publish (default 1000)
  -students int
        Size of the synthetic student pool (default 25)
  -malformed float
        Fraction of payloads to corrupt, 0 disables (default 0.02)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for test output (default: test_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show help
`)
}
