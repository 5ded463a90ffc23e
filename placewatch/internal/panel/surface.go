package panel

import (
	"context"
	"fmt"

	"github.com/hazyhaar/reviewbuddy/place"
)

// Element ids addressed inside the panel markup.
const (
	IDContainer      = "reviewBuddyContainer"
	IDContent        = "reviewBuddyContent"
	IDMinimizeButton = "reviewBuddyMinimizeButton"
	IDPlaceName      = "placeName"
	IDPlaceAddress   = "placeAddress"
	IDScore          = "reviewModelScore"

	// UIBinding is the runtime binding the panel's click handlers call with
	// "minimize" or "maximize".
	UIBinding = "__reviewbuddy_ui"
)

// Surface is where the panel lives. The page surface writes into the host
// tab; tests use an in-memory one.
type Surface interface {
	// Inject appends markup under the element with parentID. Returns an
	// error wrapping place.ErrInjectionTarget when the parent is absent.
	Inject(ctx context.Context, parentID string, m Markup) error
	SetText(ctx context.Context, id, text string) error
	SetHTML(ctx context.Context, id, html string) error
	SetVisible(ctx context.Context, id string, visible bool) error
}

// Evaluator runs a JS function in the page and returns its string result.
type Evaluator interface {
	EvalString(ctx context.Context, js string, args ...any) (string, error)
}

// PageSurface writes the panel into a live tab.
type PageSurface struct {
	page Evaluator
}

// NewPageSurface creates a Surface over page.
func NewPageSurface(page Evaluator) *PageSurface {
	return &PageSurface{page: page}
}

const injectJS = `(parentID, markup, css, binding) => {
	const parent = document.getElementById(parentID);
	if (!parent) return "missing";
	let style = document.getElementById("reviewBuddyStyle");
	if (!style) {
		style = document.createElement("style");
		style.id = "reviewBuddyStyle";
		document.head.appendChild(style);
	}
	style.textContent = css;
	const old = document.getElementById("reviewBuddyRoot");
	if (old) old.remove();
	const root = document.createElement("div");
	root.id = "reviewBuddyRoot";
	root.innerHTML = markup;
	parent.appendChild(root);
	const send = (op) => { if (typeof window[binding] === "function") window[binding](op); };
	const min = document.getElementById("` + IDMinimizeButton + `");
	if (min) min.addEventListener("click", (e) => { e.stopPropagation(); send("minimize"); });
	const box = document.getElementById("` + IDContainer + `");
	if (box) box.addEventListener("click", () => send("maximize"));
	return "ok";
}`

const setTextJS = `(id, text) => {
	const el = document.getElementById(id);
	if (!el) return "missing";
	el.innerText = text;
	return "ok";
}`

const setHTMLJS = `(id, html) => {
	const el = document.getElementById(id);
	if (!el) return "missing";
	el.innerHTML = html;
	return "ok";
}`

const setVisibleJS = `(id, visible) => {
	const el = document.getElementById(id);
	if (!el) return "missing";
	el.style.display = visible ? "block" : "none";
	return "ok";
}`

func (s *PageSurface) Inject(ctx context.Context, parentID string, m Markup) error {
	res, err := s.page.EvalString(ctx, injectJS, parentID, m.HTML, m.CSS, UIBinding)
	if err != nil {
		return fmt.Errorf("panel: inject: %w", err)
	}
	if res != "ok" {
		return fmt.Errorf("panel: parent #%s: %w", parentID, place.ErrInjectionTarget)
	}
	return nil
}

func (s *PageSurface) SetText(ctx context.Context, id, text string) error {
	return s.call(ctx, setTextJS, id, text)
}

func (s *PageSurface) SetHTML(ctx context.Context, id, html string) error {
	return s.call(ctx, setHTMLJS, id, html)
}

func (s *PageSurface) SetVisible(ctx context.Context, id string, visible bool) error {
	return s.call(ctx, setVisibleJS, id, visible)
}

func (s *PageSurface) call(ctx context.Context, js, id string, arg any) error {
	res, err := s.page.EvalString(ctx, js, id, arg)
	if err != nil {
		return fmt.Errorf("panel: #%s: %w", id, err)
	}
	if res != "ok" {
		return fmt.Errorf("panel: #%s: %w", id, place.ErrElementNotFound)
	}
	return nil
}
