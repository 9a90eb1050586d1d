package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("booking not found")
	// ErrConflict is returned by a store when a generated token already exists.
	ErrConflict = errors.New("booking token already exists")
)

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type InvalidTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	if e.From.IsTerminal() {
		return fmt.Sprintf("invalid transition from %s to %s: booking is already %s", e.From, e.To, e.From)
	}
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsInvalidTransition(err error) bool {
	var t *InvalidTransitionError
	return errors.As(err, &t)
}
