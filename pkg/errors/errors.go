package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures so callers can decide whether to retry,
// record, or abort
type ErrorType string

const (
	// ErrorTypeValidation marks bad inputs detected before any automation
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNavigation marks pages or elements that never appeared
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeExportTimeout marks an export that was not confirmed in time
	ErrorTypeExportTimeout ErrorType = "export_timeout"
	// ErrorTypeAuth marks login or credential failures
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeBrowser marks a browser that could not start or went away
	ErrorTypeBrowser ErrorType = "browser"
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error carries a type, the operation that failed, and an optional cause
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Op != "" {
		msg += " in " + e.Op
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, op, message string) *Error {
	return &Error{Type: t, Op: op, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, op string, err error) *Error {
	return &Error{Type: t, Op: op, Err: err}
}

// Validation creates a validation error
func Validation(op, format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, op, fmt.Sprintf(format, args...))
}

// Navigation creates a navigation error
func Navigation(op string, err error) *Error {
	return Wrap(ErrorTypeNavigation, op, err)
}

// ExportTimeout creates an export-timeout error
func ExportTimeout(op, format string, args ...interface{}) *Error {
	return New(ErrorTypeExportTimeout, op, fmt.Sprintf(format, args...))
}

// TypeOf returns the type of the first *Error in err's chain
func TypeOf(err error) ErrorType {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain holds an *Error of type t
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNavigation, ErrorTypeExportTimeout, ErrorTypeUnknown:
		return true
	case ErrorTypeValidation, ErrorTypeAuth, ErrorTypeBrowser:
		return false
	default:
		return false
	}
}
