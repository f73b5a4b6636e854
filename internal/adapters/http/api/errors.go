package api

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest indicates a request the handler could not accept.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInternal indicates an unexpected server side failure.
	ErrInternal = errors.New("internal error")
)

// Wrap annotates err with the operation that produced it.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// NewKind creates a new error of the given kind for an operation.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind attaches both a kind and an underlying cause to an operation error.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
