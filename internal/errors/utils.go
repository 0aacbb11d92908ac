package errors

import (
	"errors"
)

// As is errors.As, re-exported so callers need a single errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is errors.Is, re-exported so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New is errors.New.
func New(text string) error {
	return errors.New(text)
}

// Wrap wraps an error with additional context, creating a SpoonError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *SpoonError {
	if err == nil {
		return nil
	}

	// Keep the location of a wrapped SpoonError so diagnostics still point at the source.
	var se *SpoonError
	if errors.As(err, &se) {
		return &SpoonError{
			Type:    errType,
			Code:    code,
			Message: message,
			Cause:   se,
			Context: se.Context,
			File:    se.File,
			Line:    se.Line,
			Value:   se.Value,
		}
	}

	return &SpoonError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapInternal wraps an error as an internal error.
func WrapInternal(err error, message string) *SpoonError {
	return Wrap(err, ErrorTypeInternal, ErrCodeInternalError, message)
}
