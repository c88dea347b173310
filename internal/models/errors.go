package models

import (
	"fmt"
	"strings"
)

// ValidationError represents a single field-scoped validation failure
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ValidationErrors aggregates every violated constraint of a submission.
// The validator always reports all violations, never just the first.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Messages returns the individual error strings for surfacing to callers
func (e ValidationErrors) Messages() []string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return msgs
}

// SequenceStateError represents an attempt to mutate a follow-up sequence
// that is in a terminal or otherwise incompatible state
type SequenceStateError struct {
	SequenceID string
	Status     SequenceStatus
	Operation  string
}

func (e *SequenceStateError) Error() string {
	return fmt.Sprintf("cannot %s sequence %s in status %s", e.Operation, e.SequenceID, e.Status)
}

// NewSequenceStateError creates a new SequenceStateError
func NewSequenceStateError(sequenceID string, status SequenceStatus, operation string) *SequenceStateError {
	return &SequenceStateError{
		SequenceID: sequenceID,
		Status:     status,
		Operation:  operation,
	}
}

// DeliveryError represents an error that occurred while delivering a
// notification or follow-up email to the external endpoint
type DeliveryError struct {
	StatusCode int
	Message    string
	Retriable  bool
	Err        error
}

func (e *DeliveryError) Error() string {
	retriableStr := "non-retriable"
	if e.Retriable {
		retriableStr = "retriable"
	}

	if e.StatusCode > 0 {
		if e.Err != nil {
			return fmt.Sprintf("delivery error (%s): HTTP %d - %s (caused by: %v)",
				retriableStr, e.StatusCode, e.Message, e.Err)
		}
		return fmt.Sprintf("delivery error (%s): HTTP %d - %s",
			retriableStr, e.StatusCode, e.Message)
	}

	if e.Err != nil {
		return fmt.Sprintf("delivery error (%s): %s (caused by: %v)",
			retriableStr, e.Message, e.Err)
	}
	return fmt.Sprintf("delivery error (%s): %s", retriableStr, e.Message)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsRetriable returns true if the delivery error should trigger a retry
func (e *DeliveryError) IsRetriable() bool {
	return e.Retriable
}

// NewDeliveryError creates a new DeliveryError
func NewDeliveryError(statusCode int, message string, retriable bool, err error) *DeliveryError {
	return &DeliveryError{
		StatusCode: statusCode,
		Message:    message,
		Retriable:  retriable,
		Err:        err,
	}
}
