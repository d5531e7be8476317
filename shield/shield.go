// Package shield provides the HTTP middleware wrapped around the API:
// security headers, request body limits, request tracing and HEAD handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.BaseStack() {
//	    r.Use(mw)
//	}
//	r.With(shield.MaxBody(limit)).Post("/upload", h)
//
// MaxBody is left out of BaseStack because routes accept different body
// sizes, and a MaxBytesReader can only be narrowed once applied.
package shield

import (
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// BaseStack returns the middleware shared by every route.
// Order: HeadToGet → SecurityHeaders → TraceID.
func BaseStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		TraceID,
	}
}
