// Package model contains domain models passed between layers.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ActivityEvent represents one observed student activity record as carried
// on the broker topic. It is immutable once decoded.
type ActivityEvent struct {
	StudentID  string  `json:"student_id"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"` // untrusted; semantically in [0,1]
	Timestamp  int64   `json:"timestamp"`  // epoch seconds
}

// flexID accepts either a JSON string or a JSON number for student_id.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// wireEvent mirrors the broker payload with lenient field types.
type wireEvent struct {
	StudentID  *flexID      `json:"student_id"`
	Status     *string      `json:"status"`
	Confidence float64      `json:"confidence"`
	Timestamp  *json.Number `json:"timestamp"`
}

// Decode constructs an ActivityEvent from one broker message payload.
// It returns ErrMalformedMessage (wrapped) when the payload is not valid
// JSON or a required field is missing.
func Decode(payload []byte) (ActivityEvent, error) {
	var w wireEvent
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return ActivityEvent{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch {
	case w.StudentID == nil || *w.StudentID == "":
		return ActivityEvent{}, fmt.Errorf("%w: missing student_id", ErrMalformedMessage)
	case w.Status == nil || *w.Status == "":
		return ActivityEvent{}, fmt.Errorf("%w: missing status", ErrMalformedMessage)
	case w.Timestamp == nil:
		return ActivityEvent{}, fmt.Errorf("%w: missing timestamp", ErrMalformedMessage)
	}

	ts, err := epochSeconds(*w.Timestamp)
	if err != nil {
		return ActivityEvent{}, fmt.Errorf("%w: invalid timestamp: %v", ErrMalformedMessage, err)
	}

	return ActivityEvent{
		StudentID:  string(*w.StudentID),
		Status:     *w.Status,
		Confidence: w.Confidence,
		Timestamp:  ts,
	}, nil
}

// epochSeconds normalizes a JSON number (integer or float) to whole seconds.
func epochSeconds(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// OccurredAt converts the epoch-seconds timestamp to an absolute time in UTC.
func (e ActivityEvent) OccurredAt() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

// Key returns the (student_id, timestamp) identity used for duplicate
// suppression of broker redeliveries.
func (e ActivityEvent) Key() string {
	return e.StudentID + ":" + strconv.FormatInt(e.Timestamp, 10)
}

// Alert is the push payload delivered to every connected observer.
type Alert struct {
	Type string `json:"type"`
	ActivityEvent
}

// EncodeAlert marshals the ALERT payload for one event. The payload is
// encoded once per broadcast pass and shared across observers.
func EncodeAlert(e ActivityEvent) ([]byte, error) {
	b, err := json.Marshal(Alert{Type: "ALERT", ActivityEvent: e})
	if err != nil {
		return nil, fmt.Errorf("encode alert: %w", err)
	}
	return b, nil
}
