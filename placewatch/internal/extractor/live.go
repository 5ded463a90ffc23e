package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/reviewbuddy/place"
)

// Evaluator runs a JS function in the page and returns its string result.
// browser.Tab implements it.
type Evaluator interface {
	EvalString(ctx context.Context, js string, args ...any) (string, error)
}

// readJS collects both targets in a single round trip. Arguments: title
// selector, address selector.
const readJS = `(titleSel, addrSel) => {
	const t = document.querySelector(titleSel);
	const a = document.querySelector(addrSel);
	const out = {
		title_found: !!t,
		title: t ? t.innerText : "",
		address_found: !!a,
		address_children: [],
	};
	if (a) {
		for (const c of a.children) out.address_children.push(c.innerText);
	}
	return JSON.stringify(out);
}`

// Live extracts from the tab's current DOM.
type Live struct {
	page   Evaluator
	sel    Selectors
	logger *slog.Logger
}

// NewLive creates a live extractor over page.
func NewLive(page Evaluator, sel Selectors, logger *slog.Logger) *Live {
	if logger == nil {
		logger = slog.Default()
	}
	return &Live{page: page, sel: sel.WithDefaults(), logger: logger}
}

// Selectors returns the effective selectors.
func (l *Live) Selectors() Selectors { return l.sel }

// Read evaluates the read script once.
func (l *Live) Read(ctx context.Context) (Read, error) {
	raw, err := l.page.EvalString(ctx, readJS, l.sel.Title, l.sel.Address)
	if err != nil {
		return Read{}, fmt.Errorf("extractor: eval: %w", err)
	}
	var r Read
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Read{}, fmt.Errorf("extractor: decode read: %w", err)
	}
	return r, nil
}

// Extract implements Extractor. Evaluation failures (navigation in
// progress, closed tab) count as NotFound.
func (l *Live) Extract(ctx context.Context) place.Detection {
	r, err := l.Read(ctx)
	if err != nil {
		l.logger.Debug("extractor: live read failed", "error", err)
		return place.NotFound()
	}
	d, err := Decide(r)
	if err != nil {
		l.logger.Debug("extractor: live read", "error", err)
	}
	return d
}
