// Package repository defines the activity store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/camspipe/bridge/internal/domain/model"
)

// Activity represents one durable activity row.
type Activity struct {
	StudentID  string    `json:"student_id"`
	Status     string    `json:"status"`
	Confidence float64   `json:"confidence"`
	TS         time.Time `json:"ts"`
}

// Store provides durable writes and bounded recent-history reads.
type Store interface {
	// Insert writes one event as a row, converting the epoch timestamp to
	// an absolute time. Returns ErrStoreUnavailable when no connection can
	// be acquired within the operation deadline, ErrConstraint when the
	// row violates store-level constraints.
	Insert(ctx context.Context, e model.ActivityEvent) error

	// RecentN returns up to n rows ordered by ts descending. An empty
	// store yields an empty slice, not an error. Non-positive n returns
	// ErrInvalidLimit.
	RecentN(ctx context.Context, n int) ([]Activity, error)

	// Count returns the number of stored rows.
	Count(ctx context.Context) int

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close()
}

// fromEvent converts a consumed event into its row representation.
func fromEvent(e model.ActivityEvent) Activity {
	return Activity{
		StudentID:  e.StudentID,
		Status:     e.Status,
		Confidence: e.Confidence,
		TS:         e.OccurredAt(),
	}
}
