package model

import "errors"

// Sentinel kinds for payload decoding errors.
var (
	// ErrMalformedMessage marks a broker payload that cannot be decoded
	// into an ActivityEvent. Policy: skip the message, keep consuming.
	ErrMalformedMessage = errors.New("malformed message")
)
