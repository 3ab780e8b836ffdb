// Package apperrors classifies failures into the kinds the HTTP surface understands.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind names one of the four failure classes exposed to clients.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindInternal     Kind = "internal"
)

const (
	MessageUnauthorized  = "Unauthorized."
	MessageInvalid       = "Invalid request."
	MessageEventNotFound = "Event not found."
	MessageNotFound      = "Not found."
	MessageInternal      = "Internal server error."
)

// Error is a classified failure. Message is safe to show to clients; Err is not.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Unauthorized reports a missing or rejected session.
func Unauthorized(code string, cause error) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: MessageUnauthorized, Err: cause}
}

// Validation reports malformed input without pointing at a specific field.
func Validation(code string, cause error) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: MessageInvalid, Err: cause}
}

// FieldInvalid reports a user-facing problem with one input field.
func FieldInvalid(code, field, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Field: field}
}

// NotFound reports a missing or inaccessible resource.
func NotFound(code, message string) *Error {
	if message == "" {
		message = MessageNotFound
	}
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Internal wraps an unexpected failure. The cause is logged, never returned to clients.
func Internal(code string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: code, Message: MessageInternal, Err: cause}
}

// As extracts the classified error from err's chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf classifies err; anything unclassified is internal.
func KindOf(err error) Kind {
	if classified, ok := As(err); ok {
		return classified.Kind
	}
	return KindInternal
}
