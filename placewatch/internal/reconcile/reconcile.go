// Package reconcile implements the change reconciler: it owns the last
// confirmed place, filters repeated detections by value, and sequences
// enrichment fetches so that only the newest one may update the panel.
//
// Staleness is detected with a generation token assigned at dispatch time
// and compared at completion time ("latest wins, tagged completion"). All
// transitions run under one mutex, so Feed, completions, and Reset never
// interleave. Rendering happens after that mutex is released, serialized
// by a second one and re-checked against the generation, so a slow page
// never blocks detection.
package reconcile

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazyhaar/reviewbuddy/place"
)

// Fetcher resolves a score for a place. It must not fail: errors are
// reported as place.Unavailable.
type Fetcher interface {
	FetchScore(ctx context.Context, r place.Record) place.Score
}

// Renderer projects the current record and score onto the panel.
type Renderer interface {
	Render(r *place.Record, s place.Score)
}

// Recorder observes confirmed changes and resolved fetches. Optional.
type Recorder interface {
	PlaceChanged(gen uint64, r place.Record)
	ScoreResolved(gen uint64, r place.Record, s place.Score, current bool)
}

// State is the reconciler lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateTracking      State = "tracking"
)

// Outcome reports what Feed did with a detection.
type Outcome int

const (
	// Ignored: the detection was NotFound.
	Ignored Outcome = iota
	// Unchanged: same record as the last confirmed one.
	Unchanged
	// Changed: a new place was confirmed and a fetch dispatched.
	Changed
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	default:
		return "ignored"
	}
}

// Snapshot is a point-in-time copy of the reconciler state.
type Snapshot struct {
	State      State         `json:"state"`
	Record     *place.Record `json:"record,omitempty"`
	Generation uint64        `json:"generation"`
	Score      place.Score   `json:"score"`
}

// Config for creating a Reconciler.
type Config struct {
	Fetcher  Fetcher
	Renderer Renderer
	Recorder Recorder
	Logger   *slog.Logger
}

// Reconciler is the state machine. Create one per watched page.
type Reconciler struct {
	mu       sync.Mutex
	renderMu sync.Mutex

	state State
	last  place.Record
	gen   uint64
	score place.Score

	fetcher  Fetcher
	renderer Renderer
	recorder Recorder
	logger   *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// New creates a Reconciler in the Uninitialized state.
func New(cfg Config) *Reconciler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		state:    StateUninitialized,
		score:    place.Unavailable(),
		fetcher:  cfg.Fetcher,
		renderer: cfg.Renderer,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Feed applies one detection. NotFound never reverts the state; a Found
// record equal to the last confirmed one is a no-op.
func (r *Reconciler) Feed(d place.Detection) Outcome {
	out, gen := r.transition(d)
	if out == Changed {
		// Loading goes out before the fetch starts, so the fetch's own
		// render can never be overwritten by it.
		r.render(gen, d.Record, place.Loading())
		r.dispatch(gen, d.Record)
	}
	return out
}

func (r *Reconciler) transition(d place.Detection) (Outcome, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !d.Found {
		r.logger.Debug("reconcile: detection not found, ignored", "state", r.state)
		return Ignored, r.gen
	}
	if r.state == StateTracking && d.Record == r.last {
		return Unchanged, r.gen
	}

	first := r.state == StateUninitialized
	rec := d.Record
	r.state = StateTracking
	r.last = rec
	r.gen++
	gen := r.gen
	r.score = place.Loading()

	r.logger.Info("reconcile: place changed",
		"name", rec.Name, "address", rec.Address, "generation", gen, "first", first)

	if r.recorder != nil {
		r.recorder.PlaceChanged(gen, rec)
	}
	return Changed, gen
}

// Reset returns to Uninitialized and invalidates every in-flight fetch.
// Used when the host page has been navigated away.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gen++
	r.state = StateUninitialized
	r.last = place.Record{}
	r.score = place.Unavailable()
	r.logger.Info("reconcile: reset", "generation", r.gen)
}

// Snapshot returns a copy of the current state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{State: r.state, Generation: r.gen, Score: r.score}
	if r.state == StateTracking {
		rec := r.last
		s.Record = &rec
	}
	return s
}

// Wait blocks until no fetch is outstanding.
func (r *Reconciler) Wait() {
	r.inflight.Wait()
}

// Close cancels outstanding fetches and waits for them to return.
func (r *Reconciler) Close() {
	r.cancel()
	r.inflight.Wait()
}

// dispatch starts the fetch for gen.
func (r *Reconciler) dispatch(gen uint64, rec place.Record) {
	if r.fetcher == nil {
		return
	}
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		s := r.fetcher.FetchScore(r.ctx, rec)
		r.complete(gen, rec, s)
	}()
}

func (r *Reconciler) complete(gen uint64, rec place.Record, s place.Score) {
	if r.settle(gen, rec, s) {
		r.render(gen, rec, s)
	}
}

// settle records a finished fetch and reports whether it is still current.
func (r *Reconciler) settle(gen uint64, rec place.Record, s place.Score) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := gen == r.gen
	if r.recorder != nil {
		r.recorder.ScoreResolved(gen, rec, s, current)
	}
	if !current {
		r.logger.Debug("reconcile: stale score discarded",
			"name", rec.Name, "generation", gen, "current", r.gen)
		return false
	}

	r.score = s
	r.logger.Info("reconcile: score resolved",
		"name", rec.Name, "score", s.String(), "generation", gen)
	return true
}

// render projects (rec, s) unless gen was superseded. Renders are
// serialized: a newer generation bumps r.gen before it asks for renderMu,
// so an older render either runs first or sees it is stale and skips.
func (r *Reconciler) render(gen uint64, rec place.Record, s place.Score) {
	if r.renderer == nil {
		return
	}
	r.renderMu.Lock()
	defer r.renderMu.Unlock()

	r.mu.Lock()
	stale := gen != r.gen
	r.mu.Unlock()
	if stale {
		return
	}
	r.renderer.Render(&rec, s)
}
