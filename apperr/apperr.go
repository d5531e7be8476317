// Package apperr defines the error taxonomy shared by the ingestion pipeline,
// the assessment boundary and the HTTP layer.
//
// Every user-facing failure wraps one of the sentinel errors below. The HTTP
// layer maps the sentinel to a status code and a stable class string:
//
//	invalid_input        400  malformed request, unsupported extension
//	size_exceeded        413  upload or fetched body over the ceiling
//	parse_failure        422  PDF/DOCX decoder failed
//	extraction_rejected  422  extracted text judged not to be prose
//	transport_failure    502  non-2xx status or network error on fetch
//	fetch_timeout        504  fetch timed out or was aborted
//	configuration        500  server-side misconfiguration
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrSizeExceeded       = errors.New("size exceeded")
	ErrParse              = errors.New("parse failure")
	ErrExtractionRejected = errors.New("extraction rejected")
	ErrTransport          = errors.New("transport failure")
	ErrFetchTimeout       = errors.New("fetch timed out")
	ErrConfiguration      = errors.New("configuration error")
)

// Error carries a user-facing message on top of a sentinel.
// StatusCode is the HTTP status to answer with; UpstreamStatus is the status
// returned by a remote server when the failure came from a fetch.
type Error struct {
	Err            error
	Message        string
	StatusCode     int
	UpstreamStatus int
	Cause          error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Err.Error(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// New builds an Error whose status code is derived from the sentinel.
func New(sentinel error, message string) *Error {
	return &Error{Err: sentinel, Message: message, StatusCode: statusFor(sentinel)}
}

// Newf is New with a formatted message.
func Newf(sentinel error, format string, args ...any) *Error {
	return New(sentinel, fmt.Sprintf(format, args...))
}

// Wrap builds an Error that keeps cause reachable through errors.Is/As.
func Wrap(sentinel error, cause error, message string) *Error {
	e := New(sentinel, message)
	e.Cause = cause
	return e
}

// TooLarge reports a document over the size ceiling of limit bytes.
func TooLarge(limit int64) *Error {
	const mib = 1 << 20
	if limit%mib == 0 {
		return Newf(ErrSizeExceeded, "Document exceeds max size of %dMB", limit/mib)
	}
	return Newf(ErrSizeExceeded, "Document exceeds max size of %.2fMB", float64(limit)/mib)
}

// Message returns the user-facing message of err. Errors outside the
// taxonomy yield fallback.
func Message(err error, fallback string) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return fallback
}

// HTTPStatus maps err to the status code the API answers with.
func HTTPStatus(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.StatusCode != 0 {
		return ae.StatusCode
	}
	return statusFor(err)
}

// Class returns the stable classification string of err.
func Class(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrSizeExceeded):
		return "size_exceeded"
	case errors.Is(err, ErrParse):
		return "parse_failure"
	case errors.Is(err, ErrExtractionRejected):
		return "extraction_rejected"
	case errors.Is(err, ErrFetchTimeout):
		return "fetch_timeout"
	case errors.Is(err, ErrTransport):
		return "transport_failure"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "internal"
	}
}

// Retryable reports whether resubmitting the same input may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrFetchTimeout)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrSizeExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrParse), errors.Is(err, ErrExtractionRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrFetchTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
