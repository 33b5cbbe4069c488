package errors

import (
	"errors"
	"fmt"
)

// Permanent errors indicate configuration issues that require user intervention.
// An update must not be started while one of these is outstanding.

// ErrPermanentConfig indicates a permanent configuration error that requires user intervention.
// This includes unparsable job files, unknown attributes, or values of the wrong type.
var ErrPermanentConfig = errors.New("permanent configuration error")

// ErrInvalidParameter indicates that an update parameter violates its constraint.
// It is always a permanent configuration error.
var ErrInvalidParameter = errors.New("invalid update parameter")

// ParameterError describes which update parameter was rejected and why.
type ParameterError struct {
	Field  string
	Value  int
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s: %s should be %s, got %d", ErrInvalidParameter, e.Field, e.Reason, e.Value)
}

// Unwrap exposes both ErrInvalidParameter and ErrPermanentConfig to errors.Is.
func (e *ParameterError) Unwrap() []error {
	return []error{ErrInvalidParameter, ErrPermanentConfig}
}

// NewParameterError returns a ParameterError for a field that must be greater than zero.
func NewParameterError(field string, value int) error {
	return &ParameterError{Field: field, Value: value, Reason: "greater than 0"}
}

// WrapPermanentConfig wraps an error as a permanent configuration error.
func WrapPermanentConfig(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrPermanentConfig) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrPermanentConfig, err)
}

// IsPermanent checks if an error is permanent (requires user intervention).
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrPermanentConfig)
}

// IsInvalidParameter reports whether err was caused by an update parameter
// violating its constraint.
func IsInvalidParameter(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrInvalidParameter)
}

// InvalidField returns the name of the rejected parameter, or "" when err does
// not carry a ParameterError.
func InvalidField(err error) string {
	var perr *ParameterError
	if errors.As(err, &perr) {
		return perr.Field
	}
	return ""
}
