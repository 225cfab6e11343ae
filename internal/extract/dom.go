package extract

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Parse parses a page or fragment into a node tree.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ParseString is Parse for an in-memory document.
func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

// Matcher reports whether a node matches a selector.
type Matcher func(n *html.Node) bool

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && (tag == "" || n.Data == tag)
}

// walk visits n and its descendants in document order until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// findAll returns descendants of root (excluding root) matching m.
func findAll(root *html.Node, m Matcher) []*html.Node {
	var out []*html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		walk(c, func(n *html.Node) bool {
			if m(n) {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}

// findFirst returns the first descendant of root matching m.
func findFirst(root *html.Node, m Matcher) *html.Node {
	var found *html.Node
	for c := root.FirstChild; c != nil && found == nil; c = c.NextSibling {
		walk(c, func(n *html.Node) bool {
			if m(n) {
				found = n
				return false
			}
			return true
		})
	}
	return found
}

// closest returns n or its nearest ancestor matching m.
func closest(n *html.Node, m Matcher) *html.Node {
	for x := n; x != nil; x = x.Parent {
		if m(x) {
			return x
		}
	}
	return nil
}

// contains reports whether descendant lies inside root (or is root).
func contains(root, descendant *html.Node) bool {
	for x := descendant; x != nil; x = x.Parent {
		if x == root {
			return true
		}
	}
	return false
}

// innerText approximates the rendered text of n: text nodes are concatenated,
// <br> and block boundaries become newlines, script and style are skipped.
func innerText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(x *html.Node) {
		switch x.Type {
		case html.TextNode:
			b.WriteString(x.Data)
			return
		case html.ElementNode:
			switch x.Data {
			case "script", "style", "noscript":
				return
			case "br":
				b.WriteByte('\n')
				return
			case "img":
				// Emoji images carry their glyph in alt.
				b.WriteString(attr(x, "alt"))
				return
			}
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
		if x.Type == html.ElementNode && isBlock(x.Data) {
			b.WriteByte('\n')
		}
	}
	visit(n)
	return b.String()
}

func isBlock(tag string) bool {
	switch tag {
	case "div", "p", "li", "ul", "ol", "section", "article", "blockquote", "pre", "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}
