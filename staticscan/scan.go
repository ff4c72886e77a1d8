// Package staticscan audits static HTML for editable markers without a
// browser. It is the lint companion to the live registry scan: site authors
// run it over their templates to catch unnamed markers and duplicate ids
// before the page ships.
package staticscan

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Element is one marked element found in the document.
type Element struct {
	// ID is the marker attribute's value.
	ID string
	// Tag is the element's tag name (lowercase).
	Tag string
	// Ordinal is the element's 1-based position among marked elements in
	// document order. The parser exposes no source positions, so this is
	// the only locator available.
	Ordinal int
}

// Report is the audit result for one document.
type Report struct {
	Marker string
	// Elements lists every marked element in document order, including
	// duplicates and unnamed ones.
	Elements []Element
	// Duplicates maps each id registered more than once to its occurrence
	// count. On a live page these resolve last-write-wins, which is rarely
	// what the template author meant.
	Duplicates map[string]int
	// Unnamed counts marked elements with an empty marker value; the live
	// scan skips them silently.
	Unnamed int
}

// IDs returns the distinct ids in sorted order.
func (r *Report) IDs() []string {
	seen := make(map[string]struct{})
	for _, el := range r.Elements {
		if el.ID != "" {
			seen[el.ID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clean reports whether the document has no duplicate and no unnamed
// markers.
func (r *Report) Clean() bool {
	return len(r.Duplicates) == 0 && r.Unnamed == 0
}

// Scan parses the document and collects every element bearing the marker
// attribute.
func Scan(r io.Reader, marker string) (*Report, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("staticscan: parse: %w", err)
	}

	rep := &Report{Marker: marker, Duplicates: make(map[string]int)}
	counts := make(map[string]int)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key != marker {
					continue
				}
				rep.Elements = append(rep.Elements, Element{
					ID:      attr.Val,
					Tag:     strings.ToLower(n.Data),
					Ordinal: len(rep.Elements) + 1,
				})
				if attr.Val == "" {
					rep.Unnamed++
				} else {
					counts[attr.Val]++
				}
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	for id, n := range counts {
		if n > 1 {
			rep.Duplicates[id] = n
		}
	}
	return rep, nil
}

// ScanString is Scan over an in-memory document.
func ScanString(doc, marker string) (*Report, error) {
	return Scan(strings.NewReader(doc), marker)
}
