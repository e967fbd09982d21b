// Package dom parses rendered HTML snapshots into extract.Element handles.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/partscout/internal/extract"
)

// Document is a parsed snapshot.
type Document struct {
	doc *goquery.Document
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseBytes parses an in-memory snapshot.
func ParseBytes(body []byte) (*Document, error) {
	return Parse(bytes.NewReader(body))
}

// ParseString parses an in-memory snapshot.
func ParseString(body string) (*Document, error) {
	return Parse(strings.NewReader(body))
}

// Select returns one handle per node matching selector, in document order.
func (d *Document) Select(selector string) []extract.Element {
	return wrap(d.doc.Find(selector))
}

// Count reports how many nodes match selector.
func (d *Document) Count(selector string) int {
	return d.doc.Find(selector).Length()
}

// Title returns the document title, trimmed.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// Node is an extract.Element backed by a single goquery node.
type Node struct {
	sel *goquery.Selection
}

var _ extract.Element = Node{}

// Attr implements extract.Element.
func (n Node) Attr(name string) (string, error) {
	value, ok := n.sel.Attr(name)
	if !ok {
		return "", fmt.Errorf("attribute %q: %w", name, extract.ErrNotFound)
	}
	return value, nil
}

// Text returns the node's text with runs of whitespace collapsed to one space.
func (n Node) Text() (string, error) {
	return strings.Join(strings.Fields(n.sel.Text()), " "), nil
}

// Find implements extract.Element.
func (n Node) Find(selector string) (extract.Element, error) {
	match := n.sel.Find(selector).First()
	if match.Length() == 0 {
		return nil, fmt.Errorf("find %q: %w", selector, extract.ErrNotFound)
	}
	return Node{sel: match}, nil
}

// FindAll implements extract.Element.
func (n Node) FindAll(selector string) ([]extract.Element, error) {
	return wrap(n.sel.Find(selector)), nil
}

// Parent implements extract.Element.
func (n Node) Parent() (extract.Element, error) {
	parent := n.sel.Parent()
	if parent.Length() == 0 {
		return nil, fmt.Errorf("parent: %w", extract.ErrNotFound)
	}
	return Node{sel: parent}, nil
}

// HTML renders the node and its children.
func (n Node) HTML() (string, error) {
	return goquery.OuterHtml(n.sel)
}

func wrap(sel *goquery.Selection) []extract.Element {
	out := make([]extract.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, Node{sel: s})
	})
	return out
}
