package placewatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hazyhaar/reviewbuddy/placewatch/internal/browser"
)

// Page is what the watcher needs from the browser tab.
type Page interface {
	EvalString(ctx context.Context, js string, args ...any) (string, error)
	Bind(ctx context.Context, name string, fn func(payload string)) error
	URL(ctx context.Context) (string, error)
}

var errNoTab = errors.New("placewatch: no open tab")

// livePage forwards to the current tab. Chrome recycling swaps the tab
// underneath; bindings are replayed on the new one.
type livePage struct {
	mu       sync.RWMutex
	tab      *browser.Tab
	bindings map[string]func(string)
}

func newLivePage() *livePage {
	return &livePage{bindings: make(map[string]func(string))}
}

func (p *livePage) current() (*browser.Tab, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.tab == nil {
		return nil, errNoTab
	}
	return p.tab, nil
}

func (p *livePage) EvalString(ctx context.Context, js string, args ...any) (string, error) {
	tab, err := p.current()
	if err != nil {
		return "", err
	}
	return tab.EvalString(ctx, js, args...)
}

func (p *livePage) URL(ctx context.Context) (string, error) {
	tab, err := p.current()
	if err != nil {
		return "", err
	}
	return tab.URL(ctx)
}

func (p *livePage) Bind(ctx context.Context, name string, fn func(string)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bindings[name] = fn
	if p.tab == nil {
		return nil
	}
	return p.tab.Bind(ctx, name, fn)
}

// swap installs tab (nil to detach), closing the previous one.
func (p *livePage) swap(ctx context.Context, tab *browser.Tab) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tab != nil {
		p.tab.Close()
	}
	p.tab = tab
	if tab == nil {
		return nil
	}
	for name, fn := range p.bindings {
		if err := tab.Bind(ctx, name, fn); err != nil {
			return fmt.Errorf("placewatch: rebind %s: %w", name, err)
		}
	}
	return nil
}
