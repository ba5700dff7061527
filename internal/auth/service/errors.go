package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes are stable and part of the API surface.
const (
	CodeValidation              = "VALIDATION_ERROR"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeTokenInvalid            = "INVALID_TOKEN"
	CodeInvalidIDToken          = "INVALID_ID_TOKEN"
	CodeForbidden               = "FORBIDDEN"
	CodeNotFound                = "NOT_FOUND"
	CodeEmailExists             = "EMAIL_EXISTS"
	CodeAccountConflict         = "ACCOUNT_CONFLICT"
	CodeEmailAlreadyVerified    = "EMAIL_ALREADY_VERIFIED"
	CodeTooManyRequests         = "TOO_MANY_REQUESTS"
	CodeRegistrationFailed      = "REGISTRATION_FAILED"
	CodeEmailSendFailed         = "EMAIL_SEND_FAILED"
	CodeFederationNotConfigured = "FEDERATION_NOT_CONFIGURED"
	CodeFederationUnavailable   = "FEDERATION_UNAVAILABLE"
	CodeInternal                = "INTERNAL_SERVER_ERROR"
)

// Error is a domain failure with an HTTP status, a machine-readable code and a
// message that is safe to show the caller. Err carries the underlying cause
// for logs and is never written to a production response.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so errors.Is(err, ErrNotFound)
// holds for every not-found regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of e carrying msg.
func (e *Error) WithMessage(msg string) *Error {
	c := *e
	c.Message = msg
	return &c
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

var (
	ErrValidation   = &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: "Validation failed"}
	ErrUnauthorized = &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "Unauthorized"}
	ErrTokenExpired = &Error{Status: http.StatusUnauthorized, Code: CodeTokenExpired, Message: "Token expired"}
	ErrTokenInvalid = &Error{Status: http.StatusUnauthorized, Code: CodeTokenInvalid, Message: "Invalid token"}
	ErrForbidden    = &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: "Forbidden"}
	ErrNotFound     = &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: "Not found"}

	ErrInvalidIDToken = &Error{
		Status:  http.StatusUnauthorized,
		Code:    CodeInvalidIDToken,
		Message: "Invalid ID token",
	}
	ErrEmailExists = &Error{
		Status:  http.StatusConflict,
		Code:    CodeEmailExists,
		Message: "Email already exists",
	}
	ErrAccountConflict = &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeAccountConflict,
		Message: "This email is already linked to a different Google account",
	}
	ErrEmailAlreadyVerified = &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeEmailAlreadyVerified,
		Message: "Email is already verified",
	}
	ErrTooManyRequests = &Error{
		Status:  http.StatusTooManyRequests,
		Code:    CodeTooManyRequests,
		Message: "Too many requests",
	}
	ErrRegistrationFailed = &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeRegistrationFailed,
		Message: "Registration failed",
	}
	ErrEmailSendFailed = &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeEmailSendFailed,
		Message: "Failed to send email",
	}
	ErrFederationNotConfigured = &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeFederationNotConfigured,
		Message: "Firebase authentication is not configured",
	}
	ErrFederationUnavailable = &Error{
		Status:  http.StatusServiceUnavailable,
		Code:    CodeFederationUnavailable,
		Message: "Identity provider is unavailable",
	}
	ErrInternal = &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "Internal server error",
	}
)

// AsError returns err as a *Error. Anything that is not already one becomes
// ErrInternal wrapping it.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.Wrap(err)
}
