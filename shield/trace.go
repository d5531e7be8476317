package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/policyvet/idgen"
	"github.com/hazyhaar/policyvet/kit"
)

// TraceHeader carries the trace ID in requests and responses.
const TraceHeader = "X-Trace-ID"

const tracePrefix = "trc_"

var newTraceID = idgen.Prefixed(tracePrefix, idgen.Default)

// TraceID assigns a trace ID to each request and injects it into the
// context, the response headers and a per-request structured logger.
// A well-formed incoming X-Trace-ID is kept so traces span services.
// The trace ID is stored under kit.TraceIDKey and the logger under LoggerKey.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, err := idgen.Parse(r.Header.Get(TraceHeader), tracePrefix)
		if err != nil {
			traceID = newTraceID()
		}

		ctx := kit.WithTraceID(r.Context(), traceID)
		ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)
		w.Header().Set(TraceHeader, traceID)

		logger := slog.Default().With(
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("request")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
