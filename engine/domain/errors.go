package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrMissingMake      = errors.New("make is required")
	ErrMissingModel     = errors.New("model is required")
	ErrYearOutOfRange   = errors.New("year out of range")
	ErrSymptomsTooShort = errors.New("symptom description too short")
	ErrSymptomsTooLong  = errors.New("symptom description too long")
	ErrMissingTitle     = errors.New("issue title is required")
	ErrInvalidSeverity  = errors.New("invalid severity")
	ErrInvalidUrgency   = errors.New("invalid urgency")
	ErrFieldTooLong     = errors.New("field too long")
	ErrTextInjection    = errors.New("text contains suspicious content")
	ErrTextProfanity    = errors.New("text contains profanity")
	ErrInvalidStatus    = errors.New("invalid repair status")
	ErrTooManyTags      = errors.New("too many tags")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
