// Package errors defines the failure kinds that cross the request pipeline.
//
// Domain code never picks an HTTP status. It tags a failure with a Kind and
// the error classifier translates the kind through a lookup table.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for translation at the transport boundary.
type Kind int

const (
	// KindUnclassified is any failure nobody tagged. It maps to 500.
	KindUnclassified Kind = iota
	KindValidation
	KindMalformedRequest
	KindUnauthorized
	KindNotFound
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindMalformedRequest:
		return "MALFORMED_REQUEST"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "UNCLASSIFIED"
	}
}

// Error is the tagged application error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is and errors.As to work
func (e *Error) Unwrap() error {
	return e.Cause
}

// Constructor functions for the supported kinds

// Validation creates a validation error
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// MalformedRequest creates an error for a request that could not be parsed
func MalformedRequest(message string, cause error) *Error {
	return &Error{Kind: KindMalformedRequest, Message: message, Cause: cause}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *Error {
	if message == "" {
		message = "unauthorized"
	}
	return &Error{Kind: KindUnauthorized, Message: message}
}

// NotFound creates a not found error
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Internal creates an unclassified error with an explicit message
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindUnclassified, Message: message, Cause: cause}
}

// Wrap adds context to err while keeping its kind.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Message: message, Cause: err}
}

// KindOf returns the kind of the outermost tagged error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnclassified
}

// Message returns the client-facing message of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}
