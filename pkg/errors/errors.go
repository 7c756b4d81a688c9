package errors

import (
	"fmt"
)

// Error types
const (
	// ErrInvalidClient is returned when client credentials are bad or missing,
	// or the client's registered authentication method does not match the one used
	ErrInvalidClient = "invalid_client"

	// ErrSessionInvalid is returned when a session is missing, expired or unreadable
	ErrSessionInvalid = "session_invalid"

	// ErrStepsNotPassed is returned when a workflow step is entered before
	// all previous steps were passed
	ErrStepsNotPassed = "steps_not_passed"

	// ErrScriptMissing is returned when no script configuration is registered
	// for the requested ACR and usage type
	ErrScriptMissing = "script_missing"

	// ErrScriptError is returned when a script invocation fails
	ErrScriptError = "script_error"

	// ErrAuthenticationRejected is returned when a script or directory
	// rejected the presented credentials
	ErrAuthenticationRejected = "authentication_rejected"

	// ErrInternal is returned when there is an internal error
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidClientError creates a new invalid client error
func NewInvalidClientError(message string, cause error) *Error {
	return NewError(ErrInvalidClient, message, cause)
}

// NewSessionInvalidError creates a new session invalid error
func NewSessionInvalidError(message string, cause error) *Error {
	return NewError(ErrSessionInvalid, message, cause)
}

// NewStepsNotPassedError creates a new steps not passed error
func NewStepsNotPassedError(message string, cause error) *Error {
	return NewError(ErrStepsNotPassed, message, cause)
}

// NewScriptMissingError creates a new script missing error
func NewScriptMissingError(message string, cause error) *Error {
	return NewError(ErrScriptMissing, message, cause)
}

// NewScriptError creates a new script error
func NewScriptError(message string, cause error) *Error {
	return NewError(ErrScriptError, message, cause)
}

// NewAuthenticationRejectedError creates a new authentication rejected error
func NewAuthenticationRejectedError(message string, cause error) *Error {
	return NewError(ErrAuthenticationRejected, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

// IsInvalidClient checks if the error is an invalid client error
func IsInvalidClient(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrInvalidClient
}

// IsSessionInvalid checks if the error is a session invalid error
func IsSessionInvalid(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrSessionInvalid
}

// IsStepsNotPassed checks if the error is a steps not passed error
func IsStepsNotPassed(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrStepsNotPassed
}

// IsScriptMissing checks if the error is a script missing error
func IsScriptMissing(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrScriptMissing
}

// IsScriptError checks if the error is a script error
func IsScriptError(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrScriptError
}

// IsAuthenticationRejected checks if the error is an authentication rejected error
func IsAuthenticationRejected(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrAuthenticationRejected
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrInternal
}
