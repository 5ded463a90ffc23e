package placewatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/reviewbuddy/kit"
	"github.com/hazyhaar/reviewbuddy/place"
	"github.com/hazyhaar/reviewbuddy/shield"
)

// Router returns the status server routes:
//
//	GET  /health
//	GET  /api/place
//	GET  /api/panel.md
//	POST /api/panel/{op}    (minimize | maximize | toggle)
//	GET  /api/score?name=&address=
//	GET  /api/journal?limit=
//	     /mcp               (when MCP is enabled)
func (w *Watcher) Router() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.StatusStack(w.logger) {
		r.Use(mw)
	}

	r.Get("/health", func(rw http.ResponseWriter, _ *http.Request) {
		writeJSON(rw, 200, map[string]string{"status": "ok"})
	})

	current := w.endpoint("current", w.currentEndpoint)
	r.Get("/api/place", func(rw http.ResponseWriter, r *http.Request) {
		resp, _ := current(r.Context(), nil)
		writeJSON(rw, 200, resp)
	})

	r.Get("/api/panel.md", func(rw http.ResponseWriter, _ *http.Request) {
		md, err := w.PanelMarkdown()
		if err != nil {
			writeError(rw, 500, err)
			return
		}
		rw.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		rw.WriteHeader(200)
		rw.Write([]byte(md))
	})

	r.Post("/api/panel/{op}", func(rw http.ResponseWriter, r *http.Request) {
		op := chi.URLParam(r, "op")
		if !w.SetPanel(op) {
			writeJSON(rw, 400, map[string]string{"error": "unknown panel op: " + op})
			return
		}
		writeJSON(rw, 200, w.Status().Panel)
	})

	score := w.endpoint("score", w.scoreEndpoint)
	r.Get("/api/score", func(rw http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		resp, err := score(r.Context(), &scoreReq{Name: q.Get("name"), Address: q.Get("address")})
		if err != nil {
			writeError(rw, 400, err)
			return
		}
		writeJSON(rw, 200, resp)
	})

	r.Get("/api/journal", func(rw http.ResponseWriter, r *http.Request) {
		if w.journal == nil {
			writeJSON(rw, 404, map[string]string{"error": "journal disabled"})
			return
		}
		events, err := w.journal.Recent(r.Context(), queryInt(r, "limit", 50))
		if err != nil {
			writeError(rw, 500, err)
			return
		}
		writeJSON(rw, 200, events)
	})

	if w.cfg.MCP {
		srv := w.MCPServer()
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil))
	}
	return r
}

// endpoint wraps fn with call logging.
func (w *Watcher) endpoint(name string, fn kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(w.logger, name))(fn)
}

func (w *Watcher) currentEndpoint(_ context.Context, _ any) (any, error) {
	return w.Status(), nil
}

type scoreReq struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type scoreResp struct {
	Score      ScoreStatus `json:"score"`
	City       string      `json:"city,omitempty"`
	RequestURL string      `json:"request_url,omitempty"`
}

func (w *Watcher) scoreEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*scoreReq)
	if r.Name == "" || r.Address == "" {
		return nil, errors.New("name and address are required")
	}
	rec := place.Record{Name: r.Name, Address: r.Address}
	s, u := w.ScoreFor(ctx, rec)
	city, _ := rec.City()
	return scoreResp{Score: s, City: city, RequestURL: u}, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
