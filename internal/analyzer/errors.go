package analyzer

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is matched by every EmptyInputError
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidInput is matched by every InvalidInputError
	ErrInvalidInput = errors.New("invalid input")
)

// EmptyInputError is returned by a query that must select from a bucket table with no rows
type EmptyInputError struct {
	Query string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s: no arrival buckets to select from", e.Query)
}

func (e *EmptyInputError) Unwrap() error {
	return ErrEmptyInput
}

// InvalidInputError reports an event that cannot be bucketed.
// Row is the 0-based index of the event in the input set.
type InvalidInputError struct {
	Row    int
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid arrival event at index %d: %s", e.Row, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}
