package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a reminder with the same lease, trigger
	// and date already exists. Generation counts it as skipped.
	ErrConflict = errors.New("reminder already exists")
)

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RenderError means a template placeholder could not be resolved.
type RenderError struct {
	Placeholder string
	Reason      string
}

func (e *RenderError) Error() string {
	if e.Placeholder == "" {
		return "render: " + e.Reason
	}
	return fmt.Sprintf("render %q: %s", e.Placeholder, e.Reason)
}

// InvalidStateError is returned for a transition out of a non-pending state.
type InvalidStateError struct {
	ReminderID string
	Current    ReminderStatus
	Target     ReminderStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("reminder %s cannot move from %s to %s", e.ReminderID, e.Current, e.Target)
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsRenderError(err error) bool {
	var r *RenderError
	return errors.As(err, &r)
}

func IsInvalidState(err error) bool {
	var s *InvalidStateError
	return errors.As(err, &s)
}
