package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab wraps the Rod page hosting the watched panel. It exposes the narrow
// evaluation and binding surface the extractor, observer and panel need.
type Tab struct {
	Page    *rod.Page
	PageURL string
	Stealth StealthLevel

	router *rod.HijackRouter

	mu       sync.Mutex
	bindings map[string]bool
	events   context.CancelFunc
}

// OpenTab creates a new tab and navigates to pageURL with stealth applied.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	level := mgr.cfg.Stealth

	var page *rod.Page
	var err error
	if level >= LevelHeadless {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{
		Page:     page,
		PageURL:  pageURL,
		Stealth:  level,
		bindings: make(map[string]bool),
	}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		router, err := blockResources(page, mgr.cfg.ResourceBlocking)
		if err != nil {
			page.Close()
			return nil, err
		}
		t.router = router
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return t, nil
}

// EvalString evaluates a JS function with args and returns its string result.
func (t *Tab) EvalString(ctx context.Context, js string, args ...any) (string, error) {
	res, err := t.Page.Context(ctx).Eval(js, args...)
	if err != nil {
		return "", fmt.Errorf("browser: eval: %w", err)
	}
	return res.Value.Str(), nil
}

// URL returns the current document URL. Client-side navigations update it
// without a load event.
func (t *Tab) URL(ctx context.Context) (string, error) {
	return t.EvalString(ctx, `() => location.href`)
}

// Bind exposes a window function named name whose calls are delivered to
// fn. Bindings survive reloads. Binding the same name twice is a no-op.
func (t *Tab) Bind(ctx context.Context, name string, fn func(payload string)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bindings[name] {
		return nil
	}
	if err := (proto.RuntimeAddBinding{Name: name}).Call(t.Page.Context(ctx)); err != nil {
		return fmt.Errorf("browser: add binding %s: %w", name, err)
	}
	t.bindings[name] = true

	// Events outlive the caller's ctx: they stop when the tab closes.
	evCtx, cancel := context.WithCancel(context.Background())
	prev := t.events
	t.events = func() {
		if prev != nil {
			prev()
		}
		cancel()
	}
	wait := t.Page.Context(evCtx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name == name {
			fn(e.Payload)
		}
	})
	go wait()
	return nil
}

// Close stops binding listeners and closes the tab.
func (t *Tab) Close() error {
	t.mu.Lock()
	if t.events != nil {
		t.events()
		t.events = nil
	}
	t.mu.Unlock()

	if t.router != nil {
		t.router.Stop()
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
