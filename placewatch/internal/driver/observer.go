package driver

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/hazyhaar/reviewbuddy/placewatch/internal/extractor"
)

// Scope is what the subtree observer is attached to.
type Scope string

const (
	// ScopeDocument watches the whole document until both targets exist.
	ScopeDocument Scope = "document"
	// ScopeTargets watches only the two target element subtrees.
	ScopeTargets Scope = "targets"
)

// Signal is emitted by a Source.
type Signal string

const (
	// SignalReady: both targets exist (document scope).
	SignalReady Signal = "ready"
	// SignalMutation: a target subtree changed (targets scope).
	SignalMutation Signal = "mutation"
)

// ErrTargetsMissing is returned by Source.Arm when the targets scope cannot
// attach because an element disappeared.
var ErrTargetsMissing = errors.New("driver: target elements missing")

// Source attaches a mutation observer to the page.
type Source interface {
	// Arm replaces any previous observer with one of the given scope.
	Arm(ctx context.Context, scope Scope) error
	Signals() <-chan Signal
}

// ObserverConfig configures a SubtreeObserver.
type ObserverConfig struct {
	Source    Source
	Extractor extractor.Extractor
	Feeder    Feeder
	// OnReady runs once each time the targets first appear, before the
	// first detection is fed (panel injection).
	OnReady func(ctx context.Context)
	Logger  *slog.Logger
}

// SubtreeObserver waits broadly for the targets, then narrows to them and
// feeds one detection per mutation signal.
type SubtreeObserver struct {
	cfg     ObserverConfig
	scope   atomic.Value // Scope
	resetCh chan struct{}
	ready   atomic.Int64
	fed     atomic.Int64
}

// NewSubtreeObserver creates a SubtreeObserver.
func NewSubtreeObserver(cfg ObserverConfig) *SubtreeObserver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	o := &SubtreeObserver{cfg: cfg, resetCh: make(chan struct{}, 1)}
	o.scope.Store(ScopeDocument)
	return o
}

// Scope returns the current scope.
func (o *SubtreeObserver) Scope() Scope { return o.scope.Load().(Scope) }

// ReadyCount is how many times the targets appeared.
func (o *SubtreeObserver) ReadyCount() int64 { return o.ready.Load() }

// Reset asks the run loop to go back to waiting on the whole document.
func (o *SubtreeObserver) Reset() {
	select {
	case o.resetCh <- struct{}{}:
	default:
	}
}

// Run arms the document scope and processes signals until ctx is done.
func (o *SubtreeObserver) Run(ctx context.Context) error {
	log := o.cfg.Logger
	if err := o.arm(ctx, ScopeDocument); err != nil {
		return err
	}
	log.Info("observer: waiting for target elements")

	signals := o.cfg.Source.Signals()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-o.resetCh:
			log.Info("observer: reset, waiting for target elements")
			if err := o.arm(ctx, ScopeDocument); err != nil {
				log.Error("observer: re-arm document failed", "error", err)
			}

		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			switch sig {
			case SignalReady:
				if o.Scope() != ScopeDocument {
					continue
				}
				o.handleReady(ctx)
			case SignalMutation:
				if o.Scope() != ScopeTargets {
					continue
				}
				o.feed(ctx)
			}
		}
	}
}

func (o *SubtreeObserver) handleReady(ctx context.Context) {
	log := o.cfg.Logger
	o.ready.Add(1)
	log.Info("observer: target elements found")

	if o.cfg.OnReady != nil {
		o.cfg.OnReady(ctx)
	}
	o.feed(ctx)

	err := o.arm(ctx, ScopeTargets)
	switch {
	case err == nil:
		log.Info("observer: observing target elements")
	case errors.Is(err, ErrTargetsMissing):
		log.Info("observer: targets vanished before narrowing, waiting again")
		if err := o.arm(ctx, ScopeDocument); err != nil {
			log.Error("observer: re-arm document failed", "error", err)
		}
	default:
		log.Error("observer: arm targets failed", "error", err)
	}
}

func (o *SubtreeObserver) feed(ctx context.Context) {
	o.fed.Add(1)
	o.cfg.Feeder.Feed(o.cfg.Extractor.Extract(ctx))
}

func (o *SubtreeObserver) arm(ctx context.Context, scope Scope) error {
	if err := o.cfg.Source.Arm(ctx, scope); err != nil {
		return err
	}
	o.scope.Store(scope)
	return nil
}
