package extract

import "errors"

// ErrNotFound reports that an attribute, text node, or descendant is absent.
var ErrNotFound = errors.New("element not found")

// Element is a read-only handle to one node of a rendered snapshot.
//
// Implementations return an error wrapping ErrNotFound on a miss. Handles are borrowed
// for the duration of a single extraction call and are never retained.
type Element interface {
	// Attr reads the named attribute.
	Attr(name string) (string, error)
	// Text reads the visible text of the node and its descendants.
	Text() (string, error)
	// Find returns the first descendant matching the CSS selector.
	Find(selector string) (Element, error)
	// FindAll returns every descendant matching the CSS selector, in document order.
	FindAll(selector string) ([]Element, error)
	// Parent returns the enclosing node.
	Parent() (Element, error)
}

// Ancestor walks up depth levels from el.
func Ancestor(el Element, depth int) (Element, error) {
	cur := el
	for i := 0; i < depth; i++ {
		parent, err := cur.Parent()
		if err != nil {
			return nil, err
		}
		cur = parent
	}
	return cur, nil
}

// TextOf finds the first descendant matching selector and reads its text.
func TextOf(el Element, selector string) (string, error) {
	node, err := el.Find(selector)
	if err != nil {
		return "", err
	}
	return node.Text()
}

// AttrOf finds the first descendant matching selector and reads the named attribute.
func AttrOf(el Element, selector, name string) (string, error) {
	node, err := el.Find(selector)
	if err != nil {
		return "", err
	}
	return node.Attr(name)
}

// attrOrEmpty reads an optional attribute.
func attrOrEmpty(el Element, name string) string {
	value, err := el.Attr(name)
	if err != nil {
		return ""
	}
	return value
}
