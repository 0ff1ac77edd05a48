package courier

import (
	"errors"
	"fmt"
)

// Kind classifies a courier error for the caller's retry decision.
type Kind string

const (
	// KindTransient covers network faults, 5xx responses, timeouts and
	// rate limits. Eligible for retry.
	KindTransient Kind = "transient"

	// KindPermanent covers rejected input (invalid consignee data,
	// unsupported destination). Never retried.
	KindPermanent Kind = "permanent"

	// KindAuth covers expired or invalid integration credentials.
	// Fatal to the whole integration, never retried per-request.
	KindAuth Kind = "auth"

	// KindNotFound means the courier does not know the AWB.
	KindNotFound Kind = "not_found"
)

// Error represents an error from a shipping courier.
type Error struct {
	Courier    string
	Kind       Kind
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s/%s): %s: %v", e.Courier, e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s/%s): %s", e.Courier, e.Kind, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new courier Error.
func NewError(courier string, kind Kind, code, message string) *Error {
	return &Error{
		Courier: courier,
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// KindOf returns the Kind of err. Errors that did not come from a
// courier integration (raw network faults, context deadlines) are
// treated as transient, matching the caller-side retry contract.
func KindOf(err error) Kind {
	var courierErr *Error
	if errors.As(err, &courierErr) {
		return courierErr.Kind
	}
	return KindTransient
}

// IsTransient returns true if err is eligible for retry.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsPermanent returns true if err is a non-retryable input rejection.
func IsPermanent(err error) bool {
	return KindOf(err) == KindPermanent
}

// IsAuth returns true if err is a credential failure.
func IsAuth(err error) bool {
	return KindOf(err) == KindAuth
}

// IsNotFound returns true if the courier does not know the AWB.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// ErrCourierNotFound indicates the requested courier is not registered.
var ErrCourierNotFound = errors.New("courier not found")
