package placewatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/reviewbuddy/dbopen"
	"github.com/hazyhaar/reviewbuddy/place"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/config"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/driver"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/journal"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/panel"
)

var (
	recA = place.Record{Name: "Cafe Luna", Address: "123 Main St, Springfield, USA"}
	recB = place.Record{Name: "Bistro Sol", Address: "9 Elm Rd, Shelbyville, USA"}
)

// --- fakes ---

type fakePage struct {
	mu    sync.Mutex
	url   string
	binds map[string]func(string)
}

func (p *fakePage) EvalString(context.Context, string, ...any) (string, error) {
	return "", fmt.Errorf("fakePage: no js")
}

func (p *fakePage) Bind(_ context.Context, name string, fn func(string)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.binds == nil {
		p.binds = make(map[string]func(string))
	}
	p.binds[name] = fn
	return nil
}

func (p *fakePage) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) navigate(u string) {
	p.mu.Lock()
	p.url = u
	p.mu.Unlock()
}

func (p *fakePage) call(name, payload string) {
	p.mu.Lock()
	fn := p.binds[name]
	p.mu.Unlock()
	fn(payload)
}

type fakeExtractor struct {
	mu sync.Mutex
	d  place.Detection
}

func (e *fakeExtractor) Extract(context.Context) place.Detection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.d
}

func (e *fakeExtractor) set(d place.Detection) {
	e.mu.Lock()
	e.d = d
	e.mu.Unlock()
}

type fakeSource struct{ signals chan driver.Signal }

func (s *fakeSource) Arm(context.Context, driver.Scope) error { return nil }
func (s *fakeSource) Signals() <-chan driver.Signal           { return s.signals }

type memSurface struct {
	mu       sync.Mutex
	injected int
	text     map[string]string
	html     map[string]string
	visible  map[string]bool
}

func newMemSurface() *memSurface {
	return &memSurface{text: map[string]string{}, html: map[string]string{}, visible: map[string]bool{}}
}

func (s *memSurface) Inject(context.Context, string, panel.Markup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injected++
	return nil
}

func (s *memSurface) SetText(_ context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text[id] = text
	return nil
}

func (s *memSurface) SetHTML(_ context.Context, id, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html[id] = html
	return nil
}

func (s *memSurface) SetVisible(_ context.Context, id string, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible[id] = v
	return nil
}

func (s *memSurface) textOf(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text[id]
}

// --- harness ---

type harness struct {
	w       *Watcher
	page    *fakePage
	ext     *fakeExtractor
	source  *fakeSource
	surface *memSurface
	hits    *atomic.Int32
}

func scoreServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"score": 4.5}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	srv, hits := scoreServer(t)

	cfg := config.Default()
	cfg.Page.URL = "https://maps.example/place/a"
	cfg.Enrich.Endpoint = srv.URL + "/predict"
	cfg.Watch.NavInterval = 10 * time.Millisecond
	cfg.Watch.RetryInterval = 5 * time.Millisecond
	cfg.Watch.RetryAttempts = 3
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{
		page:    &fakePage{url: cfg.Page.URL},
		ext:     &fakeExtractor{},
		source:  &fakeSource{signals: make(chan driver.Signal, 8)},
		surface: newMemSurface(),
		hits:    hits,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := build(cfg, logger, parts{
		page:      h.page,
		extractor: h.ext,
		source:    h.source,
		surface:   h.surface,
		http:      srv.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}
	h.w = w
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.w.run(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.w.Stop)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// --- tests ---

func TestWatcher_ReadyInjectsAndScores(t *testing.T) {
	h := newHarness(t, nil)
	h.ext.set(place.Found(recA))
	h.start(t)

	h.source.signals <- driver.SignalReady
	waitFor(t, "score", func() bool { return h.w.Status().Score.State == "score" })

	st := h.w.Status()
	if st.Place == nil || st.Place.Name != "Cafe Luna" || st.Place.City != "Springfield" {
		t.Fatalf("place: got %+v", st.Place)
	}
	if *st.Score.Value != 4.5 {
		t.Errorf("score: got %v", *st.Score.Value)
	}
	if !st.Panel.Injected || !st.Panel.Minimized || st.Panel.Observer != "targets" {
		t.Errorf("panel: got %+v", st.Panel)
	}
	if st.Generation != 1 || h.hits.Load() != 1 {
		t.Errorf("generation %d, hits %d; want 1, 1", st.Generation, h.hits.Load())
	}
	if got := h.surface.textOf(panel.IDPlaceName); got != "Cafe Luna" {
		t.Errorf("panel name: got %q", got)
	}

	// Same place again: no new fetch.
	h.source.signals <- driver.SignalMutation
	time.Sleep(20 * time.Millisecond)
	if h.hits.Load() != 1 {
		t.Errorf("hits after unchanged mutation: got %d", h.hits.Load())
	}
}

func TestWatcher_UIBindingTogglesPanel(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	h.page.call(panel.UIBinding, "maximize")
	if h.w.Status().Panel.Minimized {
		t.Fatal("panel should be maximized")
	}
	h.page.call(panel.UIBinding, "minimize")
	if !h.w.Status().Panel.Minimized {
		t.Fatal("panel should be minimized")
	}
}

func TestWatcher_NavigationAwayForgetsPlace(t *testing.T) {
	h := newHarness(t, nil)
	h.ext.set(place.Found(recA))
	h.start(t)

	h.source.signals <- driver.SignalReady
	waitFor(t, "tracking", func() bool { return h.w.Status().State == "tracking" })

	h.ext.set(place.NotFound())
	h.page.navigate("https://maps.example/search?q=coffee")
	waitFor(t, "reset", func() bool { return h.w.Status().State == "uninitialized" })

	st := h.w.Status()
	if st.Place != nil || st.Panel.Injected {
		t.Errorf("after navigating away: got %+v", st)
	}
	waitFor(t, "observer re-armed", func() bool { return h.w.Status().Panel.Observer == "document" })
}

func TestWatcher_NavigationToNewPlace(t *testing.T) {
	h := newHarness(t, nil)
	h.ext.set(place.Found(recA))
	h.start(t)

	h.source.signals <- driver.SignalReady
	waitFor(t, "A scored", func() bool { return h.w.Status().Score.State == "score" })

	h.ext.set(place.Found(recB))
	h.page.navigate("https://maps.example/place/b")
	waitFor(t, "B tracked", func() bool {
		st := h.w.Status()
		return st.Place != nil && st.Place.Name == "Bistro Sol" && st.Score.State == "score"
	})
	if h.w.Status().Generation != 2 {
		t.Errorf("generation: got %d, want 2", h.w.Status().Generation)
	}
}

func TestWatcher_CitylessPlaceIsUnavailable(t *testing.T) {
	h := newHarness(t, nil)
	h.ext.set(place.Found(place.Record{Name: "Nowhere", Address: "Main St"}))
	h.start(t)

	h.source.signals <- driver.SignalReady
	waitFor(t, "unavailable", func() bool {
		st := h.w.Status()
		return st.State == "tracking" && st.Score.State == "unavailable"
	})
	if h.hits.Load() != 0 {
		t.Errorf("hits: got %d, want 0", h.hits.Load())
	}
}

func TestWatcher_LookupFailuresKeepTrackedBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Query().Get("place_name"), "Ghost") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"score": 4.5}`)
	}))
	defer srv.Close()

	h := newHarness(t, func(c *Config) {
		c.Enrich.Endpoint = srv.URL + "/predict"
		c.Enrich.BreakerThreshold = 1
		c.Enrich.BreakerReset = time.Hour
	})
	h.ext.set(place.Found(recA))
	h.start(t)

	ghost := place.Record{Name: "Ghost Diner", Address: "1 Nowhere Rd, Springfield, USA"}
	for range 3 {
		if st, _ := h.w.ScoreFor(context.Background(), ghost); st.State != "unavailable" {
			t.Fatalf("ghost lookup: got %+v", st)
		}
	}

	h.source.signals <- driver.SignalReady
	waitFor(t, "tracked score", func() bool { return h.w.Status().Score.State != "loading" && h.w.Status().State == "tracking" })
	if st := h.w.Status().Score; st.State != "score" || *st.Value != 4.5 {
		t.Fatalf("tracked score after failed lookups: got %+v", st)
	}
}

func TestWatcher_NavigationChangeReattachesObserver(t *testing.T) {
	h := newHarness(t, nil)
	h.ext.set(place.Found(recA))
	h.start(t)

	h.source.signals <- driver.SignalReady
	waitFor(t, "targets scope", func() bool { return h.w.Status().Panel.Observer == string(driver.ScopeTargets) })

	h.ext.set(place.Found(recB))
	h.page.navigate("https://maps.example/place/b")
	waitFor(t, "place B tracked", func() bool {
		st := h.w.Status()
		return st.Place != nil && st.Place.Name == "Bistro Sol"
	})
	waitFor(t, "observer back on document", func() bool {
		return h.w.Status().Panel.Observer == string(driver.ScopeDocument)
	})
}

func TestWatcher_Journal(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Journal = filepath.Join(t.TempDir(), "journal.db")
	})
	h.ext.set(place.Found(recA))
	h.start(t)

	h.source.signals <- driver.SignalReady
	waitFor(t, "score", func() bool { return h.w.Status().Score.State == "score" })

	waitFor(t, "journal rows", func() bool {
		events, err := h.w.journal.Recent(context.Background(), 10)
		return err == nil && len(events) == 2
	})
	if h.w.Status().RunID == "" {
		t.Error("run id missing with journal enabled")
	}
	if h.w.Status().StartedAt == nil {
		t.Error("started_at missing with journal enabled")
	}
}

func TestWatcher_JournalPrunedAtStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := dbopen.Open(path, dbopen.WithSchema(journal.Schema))
	if err != nil {
		t.Fatal(err)
	}
	insert := `INSERT INTO place_events (event_id, run_id, kind, generation, created_at) VALUES (?,?,?,?,?)`
	old := time.Now().Add(-40 * 24 * time.Hour).UnixMilli()
	recent := time.Now().Add(-2 * 24 * time.Hour).UnixMilli()
	for _, row := range []struct {
		id string
		at int64
	}{{"evt_old", old}, {"evt_recent", recent}} {
		if _, err := db.Exec(insert, row.id, "run_earlier", journal.KindReset, 1, row.at); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	h := newHarness(t, func(c *Config) {
		c.Journal = path
		c.JournalRetentionDays = 30
	})
	h.start(t)

	check, err := dbopen.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer check.Close()
	waitFor(t, "old event pruned", func() bool {
		var n int
		err := check.QueryRow(`SELECT COUNT(*) FROM place_events WHERE run_id = 'run_earlier'`).Scan(&n)
		return err == nil && n == 1
	})
	var id string
	if err := check.QueryRow(`SELECT event_id FROM place_events WHERE run_id = 'run_earlier'`).Scan(&id); err != nil {
		t.Fatal(err)
	}
	if id != "evt_recent" {
		t.Errorf("kept event: got %q, want evt_recent", id)
	}
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(config.Default(), nil); err == nil {
		t.Fatal("New without page url should fail")
	}
}

func TestNew_AssetsOverrideMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Page.URL = "https://maps.example"
	cfg.Page.AssetsDir = t.TempDir()
	if _, err := New(cfg, nil); err == nil {
		t.Fatal("empty assets dir should fail")
	}
}
