package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/camspipe/bridge/internal/domain/model"
)

func TestMemoryStore_InsertAndRecentN(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// 25 events with increasing timestamps
	for i := 0; i < 25; i++ {
		e := model.ActivityEvent{
			StudentID:  fmt.Sprintf("S%d", i),
			Status:     "attentive",
			Confidence: 0.5,
			Timestamp:  1700000000 + int64(i),
		}
		if err := s.Insert(ctx, e); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	rows, err := s.RecentN(ctx, 20)
	if err != nil {
		t.Fatalf("recentN failed: %v", err)
	}
	if len(rows) != 20 {
		t.Fatalf("expected 20 rows, got %d", len(rows))
	}

	// Exactly the 20 most recent, descending by ts.
	for i, row := range rows {
		wantTS := time.Unix(1700000000+int64(24-i), 0).UTC()
		if !row.TS.Equal(wantTS) {
			t.Errorf("row %d: expected ts %v, got %v", i, wantTS, row.TS)
		}
	}
}

func TestMemoryStore_RecentN_Empty(t *testing.T) {
	s := NewMemoryStore()

	rows, err := s.RecentN(context.Background(), 20)
	if err != nil {
		t.Fatalf("expected empty result, got error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestMemoryStore_RecentN_InvalidLimit(t *testing.T) {
	s := NewMemoryStore()

	for _, n := range []int{0, -1} {
		if _, err := s.RecentN(context.Background(), n); !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("limit %d: expected ErrInvalidLimit, got %v", n, err)
		}
	}
}

func TestMemoryStore_TimestampConversion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	e := model.ActivityEvent{StudentID: "S1", Status: "distracted", Confidence: 0.82, Timestamp: 1700000000}
	if err := s.Insert(ctx, e); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	rows, err := s.RecentN(ctx, 1)
	if err != nil {
		t.Fatalf("recentN failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if want := time.Unix(1700000000, 0).UTC(); !rows[0].TS.Equal(want) {
		t.Errorf("expected absolute ts %v, got %v", want, rows[0].TS)
	}
}

func TestMemoryStore_ArrivalOrderPreserved(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Same timestamp; later arrival should rank first.
	for _, id := range []string{"first", "second", "third"} {
		e := model.ActivityEvent{StudentID: id, Status: "attentive", Timestamp: 1700000000}
		if err := s.Insert(ctx, e); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	rows, err := s.RecentN(ctx, 3)
	if err != nil {
		t.Fatalf("recentN failed: %v", err)
	}
	want := []string{"third", "second", "first"}
	for i, id := range want {
		if rows[i].StudentID != id {
			t.Errorf("row %d: expected %q, got %q", i, id, rows[i].StudentID)
		}
	}
}

func TestMemoryStore_CapacityEviction(t *testing.T) {
	s := NewMemoryStore(WithCapacity(3))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e := model.ActivityEvent{StudentID: fmt.Sprintf("S%d", i), Status: "attentive", Timestamp: 1700000000 + int64(i)}
		if err := s.Insert(ctx, e); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	if got := s.Count(ctx); got != 3 {
		t.Errorf("expected count 3, got %d", got)
	}

	rows, err := s.RecentN(ctx, 10)
	if err != nil {
		t.Fatalf("recentN failed: %v", err)
	}
	if len(rows) != 3 || rows[0].StudentID != "S4" || rows[2].StudentID != "S2" {
		t.Errorf("unexpected retained rows: %+v", rows)
	}
}
