package shield

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/reviewbuddy/kit"
)

func TestStatusStack(t *testing.T) {
	var traceID string
	var method string
	r := chi.NewRouter()
	for _, mw := range StatusStack(nil) {
		r.Use(mw)
	}
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		traceID = kit.GetTraceID(r.Context())
		method = r.Method
		if GetLogger(r.Context()) == nil {
			t.Error("no request logger")
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD /health: got %d", rec.Code)
	}
	if method != http.MethodHead {
		t.Errorf("method: got %s, want HEAD routed to the GET handler", method)
	}
	if !strings.HasPrefix(traceID, "trc_") {
		t.Errorf("trace id: got %q", traceID)
	}
	if rec.Header().Get("X-Trace-ID") != traceID {
		t.Errorf("X-Trace-ID: got %q, want %q", rec.Header().Get("X-Trace-ID"), traceID)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("security headers missing: %v", rec.Header())
	}
}
