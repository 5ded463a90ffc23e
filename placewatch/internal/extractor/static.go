package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/reviewbuddy/place"
)

// Static extracts from a parsed HTML document. Used by the inspect command
// and for fixtures; it sees the server-rendered markup only.
type Static struct {
	doc    *html.Node
	sel    Selectors
	logger *slog.Logger
}

// NewStatic wraps an already parsed document.
func NewStatic(doc *html.Node, sel Selectors, logger *slog.Logger) *Static {
	if logger == nil {
		logger = slog.Default()
	}
	return &Static{doc: doc, sel: sel.WithDefaults(), logger: logger}
}

// ParseStatic parses r as HTML.
func ParseStatic(r io.Reader, sel Selectors, logger *slog.Logger) (*Static, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("extractor: parse html: %w", err)
	}
	return NewStatic(doc, sel, logger), nil
}

// Read returns the raw content of both target locations.
func (s *Static) Read() Read {
	var r Read
	if t := querySelector(s.doc, s.sel.Title); t != nil {
		r.TitleFound = true
		r.Title = collectText(t)
	}
	if a := querySelector(s.doc, s.sel.Address); a != nil {
		r.AddressFound = true
		for _, c := range elementChildren(a) {
			r.AddressChildren = append(r.AddressChildren, collectText(c))
		}
	}
	return r
}

// Extract implements Extractor.
func (s *Static) Extract(_ context.Context) place.Detection {
	d, err := Decide(s.Read())
	if err != nil {
		s.logger.Debug("extractor: static read", "error", err)
	}
	return d
}
