package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrTimeout          = errors.New("operation timed out")
	ErrCategoryNotFound = errors.New("helpdesk category not found")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

// ValidationError reports a malformed identity claim. Nothing is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StoreError wraps a persistence failure of a single operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ImportRowError describes one rejected row of a bulk FAQ import.
type ImportRowError struct {
	Line     int
	Question string
	Err      error
}

func (e *ImportRowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

func (e *ImportRowError) Unwrap() error {
	return e.Err
}

// ExternalServiceError is returned when the helpdesk answers with a non-success status
// or cannot be reached.
type ExternalServiceError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *ExternalServiceError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("helpdesk %s: %v", e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("helpdesk %s: HTTP %d: %s", e.Op, e.Status, e.Body)
	default:
		return fmt.Sprintf("helpdesk %s: HTTP %d", e.Op, e.Status)
	}
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
