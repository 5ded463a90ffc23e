// Package shield provides the HTTP middleware of the status server.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.StatusStack(logger) {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// StatusStack returns the middleware stack of the local status server.
// It must be installed on a chi router: GetHead resolves HEAD requests
// against the router's GET routes.
func StatusStack(logger *slog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		chimw.Recoverer,
		chimw.GetHead,
		SecurityHeaders(DefaultHeaders()),
		TraceID(logger),
	}
}

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
