package extract

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Composer is a reply input found on the page together with the wrapper
// that also holds its toolbar.
type Composer struct {
	Input   *html.Node
	Wrapper *html.Node
	Toolbar *html.Node
	// InModal is true for the reply dialog composer.
	InModal bool
}

// Text returns the composer's current content.
func (c Composer) Text() string {
	return strings.TrimSpace(innerText(c.Input))
}

// Key identifies the composer across snapshots using the nearest stable
// attribute; ordinal is the fallback.
func (c Composer) Key(ordinal int) string {
	for x := c.Input; x != nil; x = x.Parent {
		if id := attr(x, "id"); id != "" {
			return "id:" + id
		}
	}
	if c.InModal {
		return "modal"
	}
	return "composer-" + strconv.Itoa(ordinal)
}

// FindComposers returns every reply composer whose ancestors include a
// toolbar wrapper.
func FindComposers(doc *html.Node) []Composer {
	var out []Composer
	for _, input := range findAll(doc, isComposerInput) {
		for w := input.Parent; w != nil && !isElement(w, "body"); w = w.Parent {
			if tb := findFirst(w, isToolbar); tb != nil {
				out = append(out, Composer{
					Input:   input,
					Wrapper: w,
					Toolbar: tb,
					InModal: closest(input, isDialog) != nil,
				})
				break
			}
		}
	}
	return out
}

// InsertionText returns what to type into a composer that already contains
// existing: a separating space is added when it is not empty.
func InsertionText(existing, reply string) string {
	if strings.TrimSpace(existing) != "" {
		return " " + reply
	}
	return reply
}
