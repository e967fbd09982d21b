package extract

import "fmt"

// fakeNode is an in-memory Element keyed by exact selector strings.
type fakeNode struct {
	attrs    map[string]string
	text     *string
	children map[string][]*fakeNode
	parent   *fakeNode
	panics   bool
}

func node() *fakeNode {
	return &fakeNode{attrs: map[string]string{}, children: map[string][]*fakeNode{}}
}

func (n *fakeNode) withAttr(name, value string) *fakeNode {
	n.attrs[name] = value
	return n
}

func (n *fakeNode) withText(text string) *fakeNode {
	n.text = &text
	return n
}

func (n *fakeNode) withChild(selector string, child *fakeNode) *fakeNode {
	n.children[selector] = append(n.children[selector], child)
	return n
}

// under makes n a descendant of parent and returns n.
func (n *fakeNode) under(parent *fakeNode) *fakeNode {
	n.parent = parent
	return n
}

func (n *fakeNode) Attr(name string) (string, error) {
	if n.panics {
		panic("stale handle")
	}
	value, ok := n.attrs[name]
	if !ok {
		return "", fmt.Errorf("attr %s: %w", name, ErrNotFound)
	}
	return value, nil
}

func (n *fakeNode) Text() (string, error) {
	if n.panics {
		panic("stale handle")
	}
	if n.text == nil {
		return "", fmt.Errorf("text: %w", ErrNotFound)
	}
	return *n.text, nil
}

func (n *fakeNode) Find(selector string) (Element, error) {
	if n.panics {
		panic("stale handle")
	}
	matches := n.children[selector]
	if len(matches) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return matches[0], nil
}

func (n *fakeNode) FindAll(selector string) ([]Element, error) {
	if n.panics {
		panic("stale handle")
	}
	out := make([]Element, 0, len(n.children[selector]))
	for _, child := range n.children[selector] {
		out = append(out, child)
	}
	return out, nil
}

func (n *fakeNode) Parent() (Element, error) {
	if n.panics {
		panic("stale handle")
	}
	if n.parent == nil {
		return nil, fmt.Errorf("parent: %w", ErrNotFound)
	}
	return n.parent, nil
}

// inventoryCard builds img -> wrapper -> container with an anchor and the given date/row nodes.
func inventoryCard(title, image, href string) (*fakeNode, *fakeNode) {
	container := node()
	if href != "" {
		container.withChild("a", node().withAttr("href", href))
	}
	wrapper := node().under(container)
	img := node().under(wrapper)
	if title != "" {
		img.withAttr("alt", title)
	}
	if image != "" {
		img.withAttr("data-src", image)
	}
	return img, container
}

// soldCard builds one sold-result item; empty strings leave the field out.
func soldCard(title, price, thumb, link string) *fakeNode {
	item := node()
	if title != "" {
		item.withChild("h3.s-item__title", node().withText(title))
	}
	if price != "" {
		item.withChild(".s-item__price", node().withText(price))
	}
	if thumb != "" {
		item.withChild("img.s-item__image-img", node().withAttr("src", thumb))
	}
	if link != "" {
		item.withChild("a.s-item__link", node().withAttr("href", link))
	}
	return item
}

type recorder struct {
	events []Event
}

func (r *recorder) Observe(evt Event) {
	r.events = append(r.events, evt)
}

func (r *recorder) kinds() []EventKind {
	out := make([]EventKind, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Kind)
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, evt := range r.events {
		if evt.Kind == kind {
			n++
		}
	}
	return n
}
