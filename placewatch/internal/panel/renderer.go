// Package panel renders the place record and its score into the injected
// panel, and owns the panel's minimize/maximize state.
//
// Rendering is a projection of the last (record, score) pair. Until the
// markup has been injected, renders only update the in-memory view.
package panel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/reviewbuddy/place"
)

// DefaultParentID is the host page container the panel is appended to.
const DefaultParentID = "lu_pinned_rhs"

// Config for creating a Renderer.
type Config struct {
	Surface  Surface
	Markup   Markup
	ParentID string
	// WriteTimeout bounds each write to the surface. Default: 5s.
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Renderer implements reconcile.Renderer on top of a Surface.
type Renderer struct {
	mu        sync.Mutex
	surface   Surface
	markup    Markup
	parentID  string
	timeout   time.Duration
	injected  bool
	minimized bool
	view      View
	logger    *slog.Logger
}

// New creates a Renderer. The panel starts minimized.
func New(cfg Config) *Renderer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ParentID == "" {
		cfg.ParentID = DefaultParentID
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Renderer{
		surface:   cfg.Surface,
		markup:    cfg.Markup,
		parentID:  cfg.ParentID,
		timeout:   cfg.WriteTimeout,
		minimized: true,
		view:      View{Score: place.Unavailable()},
		logger:    cfg.Logger,
	}
}

// Inject places the markup into the host page and replays the current
// view and visibility. A missing parent is logged and returned; the caller
// does not retry.
func (r *Renderer) Inject(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.surface.Inject(ctx, r.parentID, r.markup); err != nil {
		if errors.Is(err, place.ErrInjectionTarget) {
			r.logger.Warn("panel: parent container not found, panel disabled", "parent", r.parentID)
		} else {
			r.logger.Error("panel: inject failed", "error", err)
		}
		return err
	}
	r.injected = true
	r.logger.Info("panel: injected", "parent", r.parentID)

	r.writeVisibility(ctx)
	r.writeView(ctx)
	return nil
}

// Injected reports whether the markup is currently in the page.
func (r *Renderer) Injected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.injected
}

// Detach forgets the injected markup (the page it lived in is gone). The
// next Inject puts it back.
func (r *Renderer) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.injected = false
	r.view = View{Score: place.Unavailable()}
}

// Render shows rec (nil for none) with s.
func (r *Renderer) Render(rec *place.Record, s place.Score) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := View{Score: s}
	if rec != nil {
		cp := *rec
		v.Record = &cp
	}
	r.view = v
	if !r.injected {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	r.writeView(ctx)
}

// View returns the last rendered view.
func (r *Renderer) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Minimize collapses the panel. Returns false if it already was.
func (r *Renderer) Minimize() bool { return r.setMinimized(true) }

// Maximize expands the panel. Returns false if it already was.
func (r *Renderer) Maximize() bool { return r.setMinimized(false) }

// Toggle flips the panel state.
func (r *Renderer) Toggle() {
	r.mu.Lock()
	target := !r.minimized
	r.mu.Unlock()
	r.setMinimized(target)
}

// Minimized reports the panel state.
func (r *Renderer) Minimized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minimized
}

// HandleUI dispatches a click reported by the page. Clicking the container
// expands the panel, the minimize control collapses it.
func (r *Renderer) HandleUI(op string) {
	switch op {
	case "minimize":
		if r.Minimize() {
			r.logger.Debug("panel: minimized")
		}
	case "maximize":
		if r.Maximize() {
			r.logger.Debug("panel: maximized")
		}
	default:
		r.logger.Warn("panel: unknown ui op", "op", op)
	}
}

func (r *Renderer) setMinimized(v bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.minimized == v {
		return false
	}
	r.minimized = v
	if r.injected {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.writeVisibility(ctx)
	}
	return true
}

// writeView pushes r.view to the surface. Must be called with mu held.
func (r *Renderer) writeView(ctx context.Context) {
	v := r.view
	r.logIfErr(r.surface.SetText(ctx, IDPlaceName, v.NameText()))
	r.logIfErr(r.surface.SetText(ctx, IDPlaceAddress, v.AddressText()))
	r.logIfErr(r.surface.SetHTML(ctx, IDScore, ScoreHTML(v.Score)))
}

// writeVisibility pushes r.minimized to the surface. Must be called with mu held.
func (r *Renderer) writeVisibility(ctx context.Context) {
	show := !r.minimized
	r.logIfErr(r.surface.SetVisible(ctx, IDContent, show))
	r.logIfErr(r.surface.SetVisible(ctx, IDMinimizeButton, show))
}

func (r *Renderer) logIfErr(err error) {
	if err != nil {
		r.logger.Warn("panel: write failed", "error", err)
	}
}
