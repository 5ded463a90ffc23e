// Package placewatch watches a place-details page in a Chrome tab, resolves
// a review score for the place currently shown, and renders it into a
// panel injected next to it.
//
// The Watcher wires one extractor, one reconciler and one panel to three
// drivers: a subtree observer for in-page updates, a URL poller for
// client-side navigations, and a bounded retry that runs after each
// navigation.
package placewatch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/reviewbuddy/placewatch/internal/browser"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/config"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/driver"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/enrich"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/extractor"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/journal"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/panel"
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/reconcile"
)

// Watcher is the top-level orchestrator. Create one per watched tab.
type Watcher struct {
	cfg    *config.Config
	logger *slog.Logger

	mgr  *browser.Manager
	live *livePage

	page      Page
	extractor extractor.Extractor
	enrich    *enrich.Client
	lookup    *enrich.Client
	journal   *journal.Journal
	renderer  *panel.Renderer
	rec       *reconcile.Reconciler
	observer  *driver.SubtreeObserver
	retry     *driver.RetryOnNavigate
	clock     driver.Clock

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	status *http.Server
}

// parts are the page-facing components. New derives them from the browser
// tab; tests substitute fakes.
type parts struct {
	page      Page
	extractor extractor.Extractor
	source    driver.Source
	surface   panel.Surface
	clock     driver.Clock
	http      *http.Client
}

// New creates a Watcher from configuration. Call Start to launch Chrome.
func New(cfg *Config, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	live := newLivePage()
	sel := selectors(cfg)
	w, err := build(cfg, logger, parts{
		page:      live,
		extractor: extractor.NewLive(live, sel, logger),
		source:    driver.NewPageSource(live, sel, logger),
		surface:   panel.NewPageSurface(live),
	})
	if err != nil {
		return nil, err
	}
	w.live = live
	w.mgr = browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Stealth:          browser.ParseStealth(cfg.Browser.Stealth),
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		ConnectAttempts:  cfg.Browser.ConnectAttempts,
		Logger:           logger,
	})
	return w, nil
}

func selectors(cfg *Config) extractor.Selectors {
	return extractor.Selectors{
		Title:   cfg.Page.TitleSelector,
		Address: cfg.Page.AddressSelector,
	}.WithDefaults()
}

func build(cfg *Config, logger *slog.Logger, p parts) (*Watcher, error) {
	markup, err := loadMarkup(cfg.Page.AssetsDir)
	if err != nil {
		return nil, err
	}

	opts := []enrich.Option{
		enrich.WithReviews(cfg.Enrich.Reviews),
		enrich.WithTimeout(cfg.Enrich.Timeout),
		enrich.WithBreaker(cfg.Enrich.BreakerThreshold, cfg.Enrich.BreakerReset),
		enrich.WithLogger(logger),
	}
	if p.http != nil {
		opts = append(opts, enrich.WithHTTPClient(p.http))
	}
	client := enrich.New(cfg.Enrich.Endpoint, opts...)
	// Ad-hoc lookups from the status API and MCP get their own breaker so
	// that failures for arbitrary names never trip the tracked place's.
	lookup := enrich.New(cfg.Enrich.Endpoint, opts...)

	var jrn *journal.Journal
	var recorder reconcile.Recorder
	if cfg.Journal != "" {
		jrn, err = journal.Open(cfg.Journal, journal.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("placewatch: %w", err)
		}
		recorder = jrn
	}

	if p.clock == nil {
		p.clock = driver.RealClock{}
	}

	renderer := panel.New(panel.Config{
		Surface:  p.surface,
		Markup:   markup,
		ParentID: cfg.Page.PanelParentID,
		Logger:   logger,
	})
	rec := reconcile.New(reconcile.Config{
		Fetcher:  client,
		Renderer: renderer,
		Recorder: recorder,
		Logger:   logger,
	})

	w := &Watcher{
		cfg:       cfg,
		logger:    logger,
		page:      p.page,
		extractor: p.extractor,
		enrich:    client,
		lookup:    lookup,
		journal:   jrn,
		renderer:  renderer,
		rec:       rec,
		clock:     p.clock,
	}
	w.observer = driver.NewSubtreeObserver(driver.ObserverConfig{
		Source:    p.source,
		Extractor: p.extractor,
		Feeder:    rec,
		OnReady:   func(ctx context.Context) { renderer.Inject(ctx) },
		Logger:    logger,
	})
	poll := driver.NewPollRetry(driver.PollConfig{
		Extractor: p.extractor,
		Feeder:    rec,
		Clock:     p.clock,
		Interval:  cfg.Watch.RetryInterval,
		Attempts:  cfg.Watch.RetryAttempts,
		Logger:    logger,
	})
	w.retry = driver.NewRetryOnNavigate(driver.NavigateConfig{
		Poll:      poll,
		OnGone:    w.forget,
		OnChanged: func(context.Context) { w.observer.Reset() },
		Logger:    logger,
	})
	return w, nil
}

// loadMarkup reads panel.html and panel.css from dir, or the bundled copy.
func loadMarkup(dir string) (panel.Markup, error) {
	var fsys fs.FS = panel.Bundled()
	if dir != "" {
		fsys = os.DirFS(dir)
	}
	m, err := panel.LoadMarkup(fsys)
	if err != nil {
		return panel.Markup{}, fmt.Errorf("placewatch: %w", err)
	}
	return m, nil
}

// Start launches Chrome, opens the configured page and starts watching.
func (w *Watcher) Start(ctx context.Context) error {
	if _, err := w.mgr.Start(ctx); err != nil {
		return fmt.Errorf("placewatch: start browser: %w", err)
	}
	tab, err := browser.OpenTab(ctx, w.mgr, w.cfg.Page.URL)
	if err != nil {
		w.mgr.Close()
		return fmt.Errorf("placewatch: open tab: %w", err)
	}
	if err := w.live.swap(ctx, tab); err != nil {
		w.mgr.Close()
		return err
	}

	w.mgr.SetRecycleCallback(&browser.RecycleCallback{
		BeforeRecycle: func() { w.live.swap(ctx, nil) },
		AfterRecycle:  func(*rod.Browser) { go w.reopen() },
	})
	return w.run(ctx)
}

// run starts the drivers and the status server against the current page.
func (w *Watcher) run(ctx context.Context) error {
	w.mu.Lock()
	w.ctx, w.cancel = context.WithCancel(ctx)
	runCtx := w.ctx
	w.mu.Unlock()

	if err := w.page.Bind(runCtx, panel.UIBinding, w.renderer.HandleUI); err != nil {
		w.logger.Warn("placewatch: ui binding failed, panel toggle disabled", "error", err)
	}

	initial, err := w.page.URL(runCtx)
	if err != nil || initial == "" {
		initial = w.cfg.Page.URL
	}
	nav := driver.NewNavDetector(driver.NavConfig{
		URL:        w.page.URL,
		Initial:    initial,
		OnNavigate: w.retry.Navigated,
		Clock:      w.clock,
		Interval:   w.cfg.Watch.NavInterval,
		Logger:     w.logger,
	})

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		if err := w.observer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("placewatch: observer stopped", "error", err)
		}
	}()
	go func() {
		defer w.wg.Done()
		nav.Run(runCtx)
	}()
	if w.journal != nil && w.cfg.JournalRetentionDays > 0 {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.pruneJournal(runCtx)
		}()
	}

	if w.cfg.StatusAddr != "" {
		w.startStatus()
	}
	w.logger.Info("placewatch: watching", "url", initial, "run_id", w.runID())
	return nil
}

// journalPruneEvery is the period of journal retention passes.
const journalPruneEvery = 24 * time.Hour

// pruneJournal drops events past the retention window, now and then daily.
func (w *Watcher) pruneJournal(ctx context.Context) {
	days := w.cfg.JournalRetentionDays
	for {
		n, err := w.journal.Cleanup(ctx, days)
		if err != nil {
			w.logger.Warn("placewatch: journal cleanup", "error", err)
		} else if n > 0 {
			w.logger.Info("placewatch: journal pruned", "events", n, "retention_days", days)
		}
		select {
		case <-ctx.Done():
			return
		case <-w.clock.After(journalPruneEvery):
		}
	}
}

// reopen replaces the tab after Chrome was recycled and starts over.
func (w *Watcher) reopen() {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	tab, err := browser.OpenTab(ctx, w.mgr, w.cfg.Page.URL)
	if err != nil {
		w.logger.Error("placewatch: reopen tab after recycle failed", "error", err)
		return
	}
	if err := w.live.swap(ctx, tab); err != nil {
		w.logger.Error("placewatch: rebind after recycle failed", "error", err)
	}
	w.forget(ctx)
}

// forget drops the tracked place: the page that showed it is gone.
func (w *Watcher) forget(context.Context) {
	w.rec.Reset()
	if w.journal != nil {
		w.journal.Reset(w.rec.Snapshot().Generation)
	}
	w.renderer.Detach()
	w.observer.Reset()
}

// Stop shuts down drivers, pending fetches, the status server, the journal
// and the browser.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	status := w.status
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.retry.Stop()
	w.wg.Wait()
	w.rec.Close()

	if status != nil {
		ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := status.Shutdown(ctx); err != nil {
			w.logger.Warn("placewatch: status server shutdown", "error", err)
		}
	}
	if w.journal != nil {
		if err := w.journal.Close(); err != nil {
			w.logger.Warn("placewatch: journal close", "error", err)
		}
	}
	if w.live != nil {
		w.live.swap(context.Background(), nil)
	}
	if w.mgr != nil {
		w.mgr.Close()
	}
	w.logger.Info("placewatch: stopped")
}

func (w *Watcher) startStatus() {
	srv := &http.Server{
		Addr:              w.cfg.StatusAddr,
		Handler:           w.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	w.mu.Lock()
	w.status = srv
	w.mu.Unlock()

	go func() {
		w.logger.Info("placewatch: status server listening", "addr", srv.Addr, "mcp", w.cfg.MCP)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("placewatch: status server", "error", err)
		}
	}()
}

func (w *Watcher) runID() string {
	if w.journal == nil {
		return ""
	}
	return w.journal.RunID()
}
