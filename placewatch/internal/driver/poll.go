package driver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/reviewbuddy/placewatch/internal/extractor"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/reconcile"
)

// PollConfig configures a PollRetry.
type PollConfig struct {
	Extractor extractor.Extractor
	Feeder    Feeder
	Clock     Clock
	// Interval between attempts. Default: 1s.
	Interval time.Duration
	// Attempts is the retry budget. Default: 5.
	Attempts int
	Logger   *slog.Logger
}

// PollRetry re-reads the page a bounded number of times after a navigation,
// for place changes the subtree observer missed.
type PollRetry struct {
	ext      extractor.Extractor
	feeder   Feeder
	clock    Clock
	interval time.Duration
	attempts int
	logger   *slog.Logger
}

// PollResult summarises one run.
type PollResult struct {
	Attempts int
	// Changed: a new place was confirmed; the run stopped early.
	Changed bool
	// Found: at least one attempt saw the target elements.
	Found bool
}

// NewPollRetry creates a PollRetry.
func NewPollRetry(cfg PollConfig) *PollRetry {
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PollRetry{
		ext:      cfg.Extractor,
		feeder:   cfg.Feeder,
		clock:    cfg.Clock,
		interval: cfg.Interval,
		attempts: cfg.Attempts,
		logger:   cfg.Logger,
	}
}

// Run performs up to Attempts detections, the first one immediately. It
// stops early once a detection is confirmed as a new place.
func (p *PollRetry) Run(ctx context.Context) PollResult {
	var res PollResult
	for res.Attempts < p.attempts {
		res.Attempts++
		d := p.ext.Extract(ctx)
		if d.Found {
			res.Found = true
		}
		if p.feeder.Feed(d) == reconcile.Changed {
			res.Changed = true
			p.logger.Info("poll: new place detected", "attempt", res.Attempts, "name", d.Record.Name)
			return res
		}
		p.logger.Debug("poll: place not changed yet", "attempt", res.Attempts, "left", p.attempts-res.Attempts)

		if res.Attempts == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return res
		case <-p.clock.After(p.interval):
		}
	}
	p.logger.Debug("poll: retry budget exhausted", "attempts", res.Attempts, "found", res.Found)
	return res
}

// NavigateConfig configures a RetryOnNavigate.
type NavigateConfig struct {
	Poll *PollRetry
	// OnGone runs when a run completes without ever seeing the target
	// elements: the page was navigated away.
	OnGone func(ctx context.Context)
	// OnChanged runs when a run confirms a new place, so the observer can
	// re-attach to the nodes that now show it.
	OnChanged func(ctx context.Context)
	Logger    *slog.Logger
}

// RetryOnNavigate starts a fresh PollRetry on every navigation, cancelling
// the previous run. Only the latest run reports its outcome.
type RetryOnNavigate struct {
	cfg NavigateConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	runs   int
	wg     sync.WaitGroup
}

// NewRetryOnNavigate creates the navigation policy around cfg.Poll.
func NewRetryOnNavigate(cfg NavigateConfig) *RetryOnNavigate {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RetryOnNavigate{cfg: cfg}
}

// Navigated is a NavDetector callback.
func (r *RetryOnNavigate) Navigated(ctx context.Context, from, to string) {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.runs++
	run := r.runs
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer cancel()
		res := r.cfg.Poll.Run(runCtx)
		if runCtx.Err() != nil {
			return
		}
		r.mu.Lock()
		superseded := run != r.runs
		r.mu.Unlock()
		if superseded {
			return
		}
		switch {
		case res.Changed:
			if r.cfg.OnChanged != nil {
				r.cfg.OnChanged(ctx)
			}
		case !res.Found:
			r.cfg.Logger.Info("poll: targets gone after navigation", "url", to, "attempts", res.Attempts)
			if r.cfg.OnGone != nil {
				r.cfg.OnGone(ctx)
			}
		}
	}()
}

// Stop cancels the running retry and waits for it.
func (r *RetryOnNavigate) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Wait blocks until no retry is running.
func (r *RetryOnNavigate) Wait() {
	r.wg.Wait()
}
