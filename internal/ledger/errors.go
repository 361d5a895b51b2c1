package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyLineItem    = errors.New("at least one of particular, details or amount is required")
	ErrNoIdentifyingKey = errors.New("cannot delete: line item has no particular")
	ErrNoOpenSheet      = errors.New("no cost sheet is open")
	ErrUnknownHead      = errors.New("head is not in the validation list")
	ErrInvalidField     = errors.New("invalid value")
	ErrClosed           = errors.New("ledger store is closed")
)

// ValidationError is returned before any network call is made. Local state
// is untouched.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// LoadError reports a failed read. The store keeps its prior state.
type LoadError struct {
	Op  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("could not %s: %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}
