// Package marker finds the marker element in a rendered HTML document.
//
// The marker is the first element, in document order, that carries a given
// attribute. Parsing is tolerant: golang.org/x/net/html applies the same
// recovery rules browsers do, so malformed markup never fails extraction.
package marker

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// DefaultAttribute is the attribute that identifies the element of interest.
const DefaultAttribute = "data-test-id"

// Observation is the result of looking for the marker in one document.
// Found distinguishes "no element" from an element whose attribute is empty.
type Observation struct {
	Value string
	Found bool
}

func (o Observation) String() string {
	if !o.Found {
		return "<absent>"
	}
	return fmt.Sprintf("%q", o.Value)
}

// Extract parses doc and returns the value of attr on the first element carrying it.
func Extract(doc string, attr string) (Observation, error) {
	return ExtractFrom(strings.NewReader(doc), attr)
}

// ExtractFrom is Extract over a reader. The only error source is r itself.
func ExtractFrom(r io.Reader, attr string) (Observation, error) {
	root, err := html.Parse(r)
	if err != nil {
		return Observation{}, fmt.Errorf("parse html: %w", err)
	}
	return Find(root, attr), nil
}

// Find walks the tree rooted at n depth-first (document order) and stops at the
// first element with attr.
func Find(n *html.Node, attr string) Observation {
	key := strings.ToLower(strings.TrimSpace(attr))
	if key == "" || n == nil {
		return Observation{}
	}

	var walk func(*html.Node) (Observation, bool)
	walk = func(n *html.Node) (Observation, bool) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Namespace == "" && a.Key == key {
					return Observation{Value: a.Val, Found: true}, true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if obs, ok := walk(c); ok {
				return obs, true
			}
		}
		return Observation{}, false
	}

	obs, _ := walk(n)
	return obs
}
