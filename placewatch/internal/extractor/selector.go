package extractor

import (
	"strings"

	"golang.org/x/net/html"
)

// Supported selector subset:
//   - tag: "div"
//   - .class, #id, tag.class, tag#id
//   - [attr], [attr=val], [attr="val"], tag[attr="val"]
//   - descendant combinator (space separated parts)

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
	hasVal  bool
}

// querySelector returns the first node in document order matching sel,
// or nil.
func querySelector(root *html.Node, sel string) *html.Node {
	parts := strings.Fields(sel)
	if len(parts) == 0 {
		return nil
	}
	chain := make([]simpleSelector, len(parts))
	for i, p := range parts {
		chain[i] = parseSimpleSelector(p)
	}

	var found *html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if matchesChain(n, chain) {
			found = n
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return found
}

// matchesChain checks the last part against n and the preceding parts
// against n's ancestors, right to left.
func matchesChain(n *html.Node, chain []simpleSelector) bool {
	last := len(chain) - 1
	if !matchesSelector(n, chain[last]) {
		return false
	}
	i := last - 1
	for p := n.Parent; p != nil && i >= 0; p = p.Parent {
		if matchesSelector(p, chain[i]) {
			i--
		}
	}
	return i < 0
}

func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eq := strings.IndexByte(attrPart, '='); eq >= 0 {
			s.attrKey = attrPart[:eq]
			s.attrVal = strings.Trim(attrPart[eq+1:], `"'`)
			s.hasVal = true
		} else {
			s.attrKey = attrPart
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}

	s.tag = sel
	return s
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && getAttr(n, "id") != s.id {
		return false
	}
	if s.class != "" {
		found := false
		for _, c := range strings.Fields(getAttr(n, "class")) {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.attrKey != "" {
		val, ok := lookupAttr(n, s.attrKey)
		if !ok {
			return false
		}
		if s.hasVal && val != s.attrVal {
			return false
		}
	}
	return true
}

func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// elementChildren mirrors the DOM "children" collection: element nodes only.
func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// collectText approximates innerText: concatenated text content with runs
// of whitespace collapsed. Script and style contents are skipped.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
