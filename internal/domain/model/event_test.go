package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDecode_Valid(t *testing.T) {
	payload := []byte(`{"student_id":"S1","status":"distracted","confidence":0.82,"timestamp":1700000000}`)

	e, err := Decode(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.StudentID != "S1" {
		t.Errorf("expected student S1, got %q", e.StudentID)
	}
	if e.Status != "distracted" {
		t.Errorf("expected status distracted, got %q", e.Status)
	}
	if e.Confidence != 0.82 {
		t.Errorf("expected confidence 0.82, got %v", e.Confidence)
	}
	if e.Timestamp != 1700000000 {
		t.Errorf("expected timestamp 1700000000, got %d", e.Timestamp)
	}
}

func TestDecode_NumericStudentID(t *testing.T) {
	payload := []byte(`{"student_id":42,"status":"attentive","confidence":0.5,"timestamp":1700000001}`)

	e, err := Decode(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.StudentID != "42" {
		t.Errorf("expected student id normalized to \"42\", got %q", e.StudentID)
	}
}

func TestDecode_FloatTimestamp(t *testing.T) {
	payload := []byte(`{"student_id":"S2","status":"attentive","confidence":0.9,"timestamp":1700000000.75}`)

	e, err := Decode(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Timestamp != 1700000000 {
		t.Errorf("expected timestamp truncated to 1700000000, got %d", e.Timestamp)
	}
}

func TestDecode_Malformed(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{{{`},
		{"empty object", `{}`},
		{"missing student_id", `{"status":"attentive","confidence":0.5,"timestamp":1700000000}`},
		{"missing status", `{"student_id":"S1","confidence":0.5,"timestamp":1700000000}`},
		{"missing timestamp", `{"student_id":"S1","status":"attentive","confidence":0.5}`},
		{"timestamp not numeric", `{"student_id":"S1","status":"attentive","confidence":0.5,"timestamp":"later"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.payload))
			if err == nil {
				t.Fatal("expected decode to fail")
			}
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestOccurredAt(t *testing.T) {
	e := ActivityEvent{StudentID: "S1", Status: "attentive", Timestamp: 1700000000}

	want := time.Unix(1700000000, 0).UTC()
	if got := e.OccurredAt(); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestKey(t *testing.T) {
	e := ActivityEvent{StudentID: "S1", Timestamp: 1700000000}
	if got := e.Key(); got != "S1:1700000000" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestEncodeAlert(t *testing.T) {
	e := ActivityEvent{StudentID: "S1", Status: "distracted", Confidence: 0.82, Timestamp: 1700000000}

	b, err := EncodeAlert(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("alert is not valid JSON: %v", err)
	}
	if got["type"] != "ALERT" {
		t.Errorf("expected type ALERT, got %v", got["type"])
	}
	if got["student_id"] != "S1" {
		t.Errorf("expected student_id S1, got %v", got["student_id"])
	}
	if got["status"] != "distracted" {
		t.Errorf("expected status distracted, got %v", got["status"])
	}
	if got["confidence"] != 0.82 {
		t.Errorf("expected confidence 0.82, got %v", got["confidence"])
	}
	if got["timestamp"] != float64(1700000000) {
		t.Errorf("expected timestamp 1700000000, got %v", got["timestamp"])
	}
}
