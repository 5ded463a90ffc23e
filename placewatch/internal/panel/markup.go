package panel

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/microcosm-cc/bluemonday"
)

//go:embed assets/panel.html assets/panel.css
var bundled embed.FS

// Bundled returns the resource FS compiled into the binary.
func Bundled() fs.FS {
	sub, err := fs.Sub(bundled, "assets")
	if err != nil {
		panic("panel: bundled assets: " + err.Error())
	}
	return sub
}

// Markup is the panel skeleton injected into the host page.
type Markup struct {
	HTML string
	CSS  string
}

// LoadMarkup reads panel.html and panel.css from fsys. The HTML is passed
// through a sanitizing policy: only layout elements and the attributes the
// renderer addresses survive, scripts and handlers never do. Operators may
// point fsys at a directory of their own.
func LoadMarkup(fsys fs.FS) (Markup, error) {
	h, err := fs.ReadFile(fsys, "panel.html")
	if err != nil {
		return Markup{}, fmt.Errorf("panel: read panel.html: %w", err)
	}
	css, err := fs.ReadFile(fsys, "panel.css")
	if err != nil {
		return Markup{}, fmt.Errorf("panel: read panel.css: %w", err)
	}
	return Markup{HTML: markupPolicy().Sanitize(string(h)), CSS: string(css)}, nil
}

func markupPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("div", "span", "p", "button", "strong", "em", "small", "h2", "h3")
	p.AllowAttrs("id", "class", "role", "title", "aria-label", "aria-hidden").Globally()
	p.AllowAttrs("type").Matching(bluemonday.SpaceSeparatedTokens).OnElements("button")
	return p
}
