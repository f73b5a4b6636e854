package testevents

import "time"

// Timing constants.
const (
	// ProcessingDelay is how long the runner waits for published events
	// to travel through the consumer before verifying the read side.
	ProcessingDelay = 5 * time.Second

	publishBatchSize = 100
)

// Activity statuses with rough real-world frequencies.
var statusWeights = []struct {
	status string
	weight float64
}{
	{"FOCUSED", 0.55},
	{"DISTRACTED", 0.25},
	{"TALKING", 0.12},
	{"SLEEPING", 0.05},
	{"ABSENT", 0.03},
}
