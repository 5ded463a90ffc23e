package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/reviewbuddy/place"
)

const lunaFixture = `<!doctype html>
<html><body>
<div id="rhs">
  <div data-attrid="title"><span>Cafe Luna</span></div>
  <div data-local-attribute="d3adr">
    <span>Address:</span>
    <span>123 Main St, Springfield, USA</span>
  </div>
</div>
</body></html>`

func staticFrom(t *testing.T, doc string) *Static {
	t.Helper()
	s, err := ParseStatic(strings.NewReader(doc), Selectors{}, nil)
	if err != nil {
		t.Fatalf("ParseStatic: %v", err)
	}
	return s
}

func TestStatic_RoundTrip(t *testing.T) {
	d := staticFrom(t, lunaFixture).Extract(context.Background())
	want := place.Found(place.Record{Name: "Cafe Luna", Address: "123 Main St, Springfield, USA"})
	if d != want {
		t.Fatalf("Extract: got %s, want %s", d, want)
	}
	city, ok := d.Record.City()
	if !ok || city != "Springfield" {
		t.Errorf("City: got %q ok=%v", city, ok)
	}
}

func TestStatic_AddressSingleChild(t *testing.T) {
	doc := `<div data-attrid="title">Cafe Luna</div>
<div data-local-attribute="d3adr"><span>Address:</span></div>`
	if d := staticFrom(t, doc).Extract(context.Background()); d.Found {
		t.Errorf("Extract: got %s, want not_found", d)
	}
}

func TestStatic_MissingTitle(t *testing.T) {
	doc := `<div data-local-attribute="d3adr"><span>a</span><span>b, c</span></div>`
	if d := staticFrom(t, doc).Extract(context.Background()); d.Found {
		t.Errorf("Extract: got %s, want not_found", d)
	}
}

func TestStatic_TextNodesAreNotChildren(t *testing.T) {
	// Only element children count, as with the DOM children collection.
	doc := `<div data-attrid="title">X</div>
<div data-local-attribute="d3adr">Address: <span>1 Road, Town</span></div>`
	if d := staticFrom(t, doc).Extract(context.Background()); d.Found {
		t.Errorf("Extract: got %s, want not_found", d)
	}
}

func TestStatic_CustomSelectors(t *testing.T) {
	doc := `<h1 class="name">Bistro Sol</h1><p id="addr"><b>at</b><i>9 Elm Rd, Shelbyville</i></p>`
	s, err := ParseStatic(strings.NewReader(doc), Selectors{Title: "h1.name", Address: "#addr"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	d := s.Extract(context.Background())
	if !d.Found || d.Record.Name != "Bistro Sol" || d.Record.Address != "9 Elm Rd, Shelbyville" {
		t.Errorf("Extract: got %s", d)
	}
}

func TestQuerySelector_Descendant(t *testing.T) {
	doc := `<div class="a"><p data-x="1">no</p></div><section><div class="a"><span><p data-x="1">yes</p></span></div></section>`
	s := staticFrom(t, doc)
	n := querySelector(s.doc, `section [data-x="1"]`)
	if n == nil {
		t.Fatal("querySelector: no match")
	}
	if got := collectText(n); got != "yes" {
		t.Errorf("match text: got %q, want %q", got, "yes")
	}
}

func TestDecide_Reasons(t *testing.T) {
	_, err := Decide(Read{TitleFound: true, AddressFound: true, AddressChildren: []string{"only"}})
	if !errors.Is(err, place.ErrElementNotFound) {
		t.Errorf("Decide: got %v, want ErrElementNotFound", err)
	}
	d, err := Decide(Read{TitleFound: true, Title: " A ", AddressFound: true, AddressChildren: []string{"x", " 1 St, Town "}})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Record != (place.Record{Name: "A", Address: "1 St, Town"}) {
		t.Errorf("Decide: got %+v", d.Record)
	}
}

type fakeEval struct {
	out string
	err error
}

func (f fakeEval) EvalString(context.Context, string, ...any) (string, error) {
	return f.out, f.err
}

func TestLive_Decodes(t *testing.T) {
	l := NewLive(fakeEval{out: `{"title_found":true,"title":"Cafe Luna","address_found":true,"address_children":["Address:","123 Main St, Springfield, USA"]}`}, Selectors{}, nil)
	d := l.Extract(context.Background())
	if !d.Found || d.Record.Name != "Cafe Luna" {
		t.Errorf("Extract: got %s", d)
	}
}

func TestLive_EvalErrorIsNotFound(t *testing.T) {
	l := NewLive(fakeEval{err: errors.New("context destroyed")}, Selectors{}, nil)
	if d := l.Extract(context.Background()); d.Found {
		t.Errorf("Extract: got %s, want not_found", d)
	}
}
