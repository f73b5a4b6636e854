package repository

import "errors"

// Sentinel kinds for store errors.
var (
	// ErrStoreUnavailable marks a write or read that could not reach the
	// store within the operation deadline. Fatal to the consumer cycle.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConstraint marks a row rejected by store-level constraints.
	ErrConstraint = errors.New("constraint violation")

	// ErrInvalidLimit marks a non-positive recent-history limit.
	ErrInvalidLimit = errors.New("invalid recent limit")
)
