// Package extractor reads the current place record from a page. Reads are
// pure: no caching, no side effects, every call reflects the DOM as it is.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/reviewbuddy/place"
)

// Default selectors for the host page.
const (
	DefaultTitleSelector   = `[data-attrid="title"]`
	DefaultAddressSelector = `[data-local-attribute="d3adr"]`
)

// Extractor performs one detection.
type Extractor interface {
	Extract(ctx context.Context) place.Detection
}

// Selectors locate the two target elements.
type Selectors struct {
	Title   string `json:"title" yaml:"title"`
	Address string `json:"address" yaml:"address"`
}

// WithDefaults fills empty selectors.
func (s Selectors) WithDefaults() Selectors {
	if s.Title == "" {
		s.Title = DefaultTitleSelector
	}
	if s.Address == "" {
		s.Address = DefaultAddressSelector
	}
	return s
}

// Read is the raw content of the two target locations.
type Read struct {
	TitleFound      bool     `json:"title_found"`
	Title           string   `json:"title"`
	AddressFound    bool     `json:"address_found"`
	AddressChildren []string `json:"address_children"`
}

// Decide turns a raw read into a detection. The address is the text of the
// address element's second child; fewer than two children is a partial
// render. The returned error says why the detection is NotFound.
func Decide(r Read) (place.Detection, error) {
	if !r.TitleFound {
		return place.NotFound(), fmt.Errorf("extractor: title: %w", place.ErrElementNotFound)
	}
	if !r.AddressFound {
		return place.NotFound(), fmt.Errorf("extractor: address: %w", place.ErrElementNotFound)
	}
	if len(r.AddressChildren) < 2 {
		return place.NotFound(), fmt.Errorf("extractor: address has %d children: %w",
			len(r.AddressChildren), place.ErrElementNotFound)
	}
	return place.Found(place.Record{
		Name:    strings.TrimSpace(r.Title),
		Address: strings.TrimSpace(r.AddressChildren[1]),
	}), nil
}
