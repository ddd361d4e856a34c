package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery signals a malformed or unsatisfiable query request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrExpansionOverflow signals that array fan-out exceeded the configured ceiling.
	ErrExpansionOverflow = errors.New("expansion overflow")
	// ErrStoreUnavailable signals that the external document store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrSpillUnavailable signals that spill mode was requested but no spill store is wired.
	ErrSpillUnavailable = errors.New("spill store unavailable")
)

// ExpansionOverflowError wraps ErrExpansionOverflow with the offending stage and sizes.
type ExpansionOverflowError struct {
	Stage string
	Rows  int
	Limit int
}

func (e *ExpansionOverflowError) Error() string {
	return fmt.Sprintf("%s: stage %s produced %d rows (limit %d)",
		ErrExpansionOverflow.Error(), e.Stage, e.Rows, e.Limit)
}

func (e *ExpansionOverflowError) Unwrap() error { return ErrExpansionOverflow }

// NewExpansionOverflow creates an expansion overflow error.
func NewExpansionOverflow(stage string, rows, limit int) error {
	return &ExpansionOverflowError{Stage: stage, Rows: rows, Limit: limit}
}
