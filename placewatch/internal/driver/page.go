package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/reviewbuddy/placewatch/internal/extractor"
)

// ObserverBinding is the runtime binding the injected observer reports to.
const ObserverBinding = "__reviewbuddy_observer"

// Page is the slice of browser.Tab the page source needs.
type Page interface {
	EvalString(ctx context.Context, js string, args ...any) (string, error)
	Bind(ctx context.Context, name string, fn func(payload string)) error
}

// armJS installs a MutationObserver of the requested scope, replacing the
// previous one. Arguments: binding, scope, title selector, address selector.
const armJS = `(binding, scope, titleSel, addrSel) => {
	const prev = window.__reviewbuddy_mo;
	if (prev) prev.disconnect();
	window.__reviewbuddy_mo = null;
	const send = (sig) => { if (typeof window[binding] === "function") window[binding](sig); };
	const find = () => [document.querySelector(titleSel), document.querySelector(addrSel)];
	const ready = () => { const [t, a] = find(); return !!t && !!a && a.children.length > 1; };

	if (scope === "document") {
		if (ready()) { send("ready"); return "armed"; }
		const mo = new MutationObserver(() => {
			if (!ready()) return;
			mo.disconnect();
			window.__reviewbuddy_mo = null;
			send("ready");
		});
		mo.observe(document, { childList: true, subtree: true });
		window.__reviewbuddy_mo = mo;
		return "armed";
	}

	const [t, a] = find();
	if (!t || !a) return "missing";
	const mo = new MutationObserver(() => send("mutation"));
	mo.observe(t, { childList: true, subtree: true });
	mo.observe(a, { childList: true, subtree: true });
	window.__reviewbuddy_mo = mo;
	return "armed";
}`

// PageSource is a Source backed by a MutationObserver injected in the tab.
type PageSource struct {
	page    Page
	sel     extractor.Selectors
	signals chan Signal
	logger  *slog.Logger
	bound   bool
}

// NewPageSource creates a PageSource.
func NewPageSource(page Page, sel extractor.Selectors, logger *slog.Logger) *PageSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageSource{
		page:    page,
		sel:     sel.WithDefaults(),
		signals: make(chan Signal, 64),
		logger:  logger,
	}
}

// Signals implements Source.
func (s *PageSource) Signals() <-chan Signal { return s.signals }

// Arm implements Source. The binding is registered on first use.
func (s *PageSource) Arm(ctx context.Context, scope Scope) error {
	if !s.bound {
		if err := s.page.Bind(ctx, ObserverBinding, s.receive); err != nil {
			return fmt.Errorf("driver: bind observer: %w", err)
		}
		s.bound = true
	}
	res, err := s.page.EvalString(ctx, armJS, ObserverBinding, string(scope), s.sel.Title, s.sel.Address)
	if err != nil {
		return fmt.Errorf("driver: arm %s: %w", scope, err)
	}
	if res == "missing" {
		return ErrTargetsMissing
	}
	s.logger.Debug("driver: observer armed", "scope", scope)
	return nil
}

// receive runs on the binding event goroutine. Mutation signals are
// dropped when the buffer is full: one pending mutation already causes a
// fresh read of the whole state.
func (s *PageSource) receive(payload string) {
	sig := Signal(strings.TrimSpace(payload))
	switch sig {
	case SignalReady:
		s.signals <- sig
	case SignalMutation:
		select {
		case s.signals <- sig:
		default:
		}
	default:
		s.logger.Warn("driver: unknown observer signal", "payload", payload)
	}
}
