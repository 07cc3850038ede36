// Package query selects elements from XML payloads by namespace-agnostic
// slash-separated paths.
//
// A selector such as "propstat/prop/getetag" matches child elements by local
// name, so "D:propstat", "d:propstat" and an unprefixed "propstat" in the
// DAV: namespace all match. Selectors are compiled once to XPath and cached.
package query

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// Document is a parsed XML payload.
type Document struct {
	root *xmlquery.Node
}

// Node is a single matched element.
type Node struct {
	n *xmlquery.Node
}

// Nodes is an ordered set of matched elements.
type Nodes []Node

// Parse parses body as XML.
func Parse(body []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	return &Document{root: root}, nil
}

// Select returns every element matching selector anywhere in the document.
// The first selector segment may appear at any depth.
func (d *Document) Select(selector string) (Nodes, error) {
	expr, err := compile(selector, true)
	if err != nil {
		return nil, err
	}
	return wrap(xmlquery.QuerySelectorAll(d.root, expr)), nil
}

// Root returns the document element, or a zero Node for an empty document.
func (d *Document) Root() Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return Node{n: c}
		}
	}
	return Node{}
}

// Select returns the descendants of n reached by following selector's
// segments one child level at a time.
func (n Node) Select(selector string) (Nodes, error) {
	if n.n == nil {
		return nil, nil
	}
	expr, err := compile(selector, false)
	if err != nil {
		return nil, err
	}
	return wrap(xmlquery.QuerySelectorAll(n.n, expr)), nil
}

// Text returns the trimmed text content of n.
func (n Node) Text() string {
	if n.n == nil {
		return ""
	}
	return strings.TrimSpace(n.n.InnerText())
}

// Name returns the local element name of n.
func (n Node) Name() string {
	if n.n == nil {
		return ""
	}
	return n.n.Data
}

// OutputXML serialises n and its children.
func (n Node) OutputXML() string {
	if n.n == nil {
		return ""
	}
	return n.n.OutputXML(true)
}

// Count returns the number of matched nodes.
func (ns Nodes) Count() int {
	return len(ns)
}

// Text returns the text of the first match, or "" when nothing matched.
func (ns Nodes) Text() string {
	if len(ns) == 0 {
		return ""
	}
	return ns[0].Text()
}

// First returns the first match and whether there was one.
func (ns Nodes) First() (Node, bool) {
	if len(ns) == 0 {
		return Node{}, false
	}
	return ns[0], true
}

// Each calls fn for every match in document order. Returning an error stops
// the iteration and returns that error.
func (ns Nodes) Each(fn func(i int, n Node) error) error {
	for i, n := range ns {
		if err := fn(i, n); err != nil {
			return err
		}
	}
	return nil
}

func wrap(in []*xmlquery.Node) Nodes {
	out := make(Nodes, 0, len(in))
	for _, n := range in {
		out = append(out, Node{n: n})
	}
	return out
}

type cacheKey struct {
	selector string
	anywhere bool
}

var compiled sync.Map // cacheKey -> *xpath.Expr

// compile translates "a/b/c" into an XPath expression matching by local name.
func compile(selector string, anywhere bool) (*xpath.Expr, error) {
	key := cacheKey{selector: selector, anywhere: anywhere}
	if expr, ok := compiled.Load(key); ok {
		return expr.(*xpath.Expr), nil
	}

	segments := strings.Split(strings.Trim(selector, "/"), "/")
	var b strings.Builder
	if anywhere {
		b.WriteString("/")
	} else {
		b.WriteString(".")
	}
	for _, seg := range segments {
		if seg == "" || strings.ContainsAny(seg, "'\"[]()@*:") {
			return nil, fmt.Errorf("invalid selector %q", selector)
		}
		fmt.Fprintf(&b, "/*[local-name()='%s']", seg)
	}

	expr, err := xpath.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	compiled.Store(key, expr)
	return expr, nil
}
