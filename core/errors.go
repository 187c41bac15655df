package core

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrForbidden is returned when the acting user lacks the rights for an operation.
var ErrForbidden = errors.New("permission denied")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// TransientError wraps a storage failure (connectivity loss, serialization failure, ...).
// The unit of work it happened in has been rolled back and the caller may retry.
type TransientError struct {
	Err error
}

func NewTransientError(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return err
	}
	return &TransientError{Err: err}
}

func (err *TransientError) Error() string {
	return "transient failure: " + err.Err.Error()
}

func (err *TransientError) Unwrap() error { return err.Err }

// IsTransient reports whether err, or any error it wraps, is a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Boundary is applied to errors leaving a service operation:
// known domain errors are returned as is, anything else becomes a *TransientError.
func Boundary(err error, domainErrs ...error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return err
	}
	cause := errors.Cause(err)
	if cause == ErrForbidden {
		return err
	}
	for _, de := range domainErrs {
		if cause == de {
			return err
		}
	}
	switch cause.(type) {
	case *ValidationError, validator.ValidationErrors:
		return err
	}
	return NewTransientError(err)
}
