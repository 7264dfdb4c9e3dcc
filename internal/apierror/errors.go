// Package apierror defines the client-facing error taxonomy of the HTTP
// boundary. Every non-2xx response body is built from an *Error, so the
// error shape stays stable across routing, validation and handler failures.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an Error for status mapping and logging.
type Kind int

const (
	// KindUnhandled is a delegated handler failure not otherwise classified.
	KindUnhandled Kind = iota
	// KindValidation is malformed or missing request data.
	KindValidation
	// KindNotFound means no declared operation matches the path.
	KindNotFound
	// KindMethodNotAllowed means the path is declared but not for this method.
	KindMethodNotAllowed
	// KindTimeout means the per-request deadline elapsed before the handler finished.
	KindTimeout
	// KindUnavailable means a required dependency is not ready.
	KindUnavailable
)

// String returns the log name of k.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unhandled"
	}
}

// Machine-readable error codes carried in the response body.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeTimeout          = "TIMEOUT"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrMethodNotAllowed = &Error{Kind: KindMethodNotAllowed}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrUnhandled        = &Error{Kind: KindUnhandled}
	ErrUnavailable      = &Error{Kind: KindUnavailable}
)

// Violation is a single failed constraint on a request field.
type Violation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

// Error is a classified boundary error. Message is always safe to show to
// clients; the wrapped cause is for logs only.
type Error struct {
	Kind       Kind
	Status     int
	Code       string
	Message    string
	Field      string
	Violations []Violation
	// Allow lists the declared methods for a MethodNotAllowed error.
	Allow []string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %q)", e.Field)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Validation builds a ValidationError for a single field and constraint.
func Validation(field, constraint, message string) *Error {
	return ValidationOf([]Violation{{Field: field, Constraint: constraint, Message: message}})
}

// ValidationOf builds a ValidationError from one or more violations. The
// first violation is reported as the primary field.
func ValidationOf(vs []Violation) *Error {
	e := &Error{
		Kind:    KindValidation,
		Status:  http.StatusBadRequest,
		Code:    CodeValidation,
		Message: "request validation failed",
	}
	if len(vs) > 0 {
		e.Field = vs[0].Field
		e.Message = vs[0].Message
		e.Violations = vs
	}
	return e
}

// NotFound builds a NotFoundError.
func NotFound(message string) *Error {
	if message == "" {
		message = "resource not found"
	}
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

// MethodNotAllowed builds a MethodNotAllowedError listing the allowed methods.
func MethodNotAllowed(allow []string) *Error {
	return &Error{
		Kind:    KindMethodNotAllowed,
		Status:  http.StatusMethodNotAllowed,
		Code:    CodeMethodNotAllowed,
		Message: "method not allowed",
		Allow:   allow,
	}
}

// Timeout builds a TimeoutError wrapping the context error.
func Timeout(cause error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Status:  http.StatusGatewayTimeout,
		Code:    CodeTimeout,
		Message: "request timed out",
		cause:   cause,
	}
}

// Unhandled builds an UnhandledError. The cause is never rendered to clients.
func Unhandled(cause error) *Error {
	return &Error{
		Kind:    KindUnhandled,
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: "internal server error",
		cause:   cause,
	}
}

// Unavailable builds a 503 for dependencies that are not ready.
func Unavailable(message string, cause error) *Error {
	if message == "" {
		message = "dependency unavailable"
	}
	return &Error{
		Kind:    KindUnavailable,
		Status:  http.StatusServiceUnavailable,
		Code:    CodeUnavailable,
		Message: message,
		cause:   cause,
	}
}

// FromStatus maps a bare HTTP status (e.g. from the router) to an Error.
func FromStatus(status int, cause error) *Error {
	switch status {
	case http.StatusBadRequest:
		e := Validation("", "request", "bad request")
		e.cause = cause
		return e
	case http.StatusNotFound:
		return NotFound("")
	case http.StatusMethodNotAllowed:
		return MethodNotAllowed(nil)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return Timeout(cause)
	case http.StatusServiceUnavailable:
		return Unavailable("", cause)
	default:
		if status >= 400 && status < 500 {
			return &Error{Kind: KindValidation, Status: status, Code: CodeValidation, Message: http.StatusText(status), cause: cause}
		}
		return Unhandled(cause)
	}
}

// From classifies any error. *Error values (possibly wrapped) are returned
// as is; everything else becomes an UnhandledError.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Unhandled(err)
}
