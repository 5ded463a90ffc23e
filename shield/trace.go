package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/reviewbuddy/idgen"
	"github.com/hazyhaar/reviewbuddy/kit"
)

var newTraceID = idgen.Prefixed("trc_", idgen.Default)

// TraceID assigns a trace ID to each request, stores it under
// kit.TraceIDKey, echoes it in X-Trace-ID and derives a per-request logger.
func TraceID(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := newTraceID()
			ctx := kit.WithTraceID(r.Context(), traceID)
			w.Header().Set("X-Trace-ID", traceID)

			reqLog := logger.With(
				"trace_id", traceID,
				"method", r.Method,
				"path", r.URL.Path,
			)
			ctx = context.WithValue(ctx, LoggerKey, reqLog)
			reqLog.Debug("shield: request")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
