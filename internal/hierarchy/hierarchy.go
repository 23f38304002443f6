// internal/hierarchy/hierarchy.go

// Package hierarchy parses the XML page source exposed by the device driver
// into a read-only snapshot that the self-healing resolver can query
// without touching the device again.
package hierarchy

import (
	"fmt"

	"github.com/beevik/etree"
)

// Node is a single element in the captured UI tree. The widget class is the
// XML tag ("android.widget.Button"); everything else comes from attributes.
type Node struct {
	elem *etree.Element
}

// Class returns the widget class of the node.
func (n Node) Class() string { return n.elem.Tag }

// Text returns the visible text of the node, if any.
func (n Node) Text() string { return n.attr("text") }

// ContentDesc returns the accessibility label of the node, if any.
func (n Node) ContentDesc() string { return n.attr("content-desc") }

// ResourceID returns the full resource identifier of the node, if any.
func (n Node) ResourceID() string { return n.attr("resource-id") }

// Hint returns the placeholder/hint attribute of the node, if any.
func (n Node) Hint() string { return n.attr("hint") }

// Displayed reports whether the node claims to be visible. Nodes without a
// "displayed" attribute are treated as visible; many backends omit it.
func (n Node) Displayed() bool { return n.attr("displayed") != "false" }

func (n Node) attr(key string) string {
	if a := n.elem.SelectAttr(key); a != nil {
		return a.Value
	}
	return ""
}

// Snapshot is an immutable view of the UI tree at a single point in time.
type Snapshot struct {
	doc *etree.Document
}

// Parse builds a snapshot from raw page-source XML.
func Parse(source []byte) (*Snapshot, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(source); err != nil {
		return nil, fmt.Errorf("hierarchy: parse page source: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("hierarchy: page source has no root element")
	}
	return &Snapshot{doc: doc}, nil
}

// Walk visits every displayed node in document order.
func (s *Snapshot) Walk(visit func(Node)) {
	var descend func(e *etree.Element)
	descend = func(e *etree.Element) {
		n := Node{elem: e}
		if n.Displayed() {
			visit(n)
		}
		for _, child := range e.ChildElements() {
			descend(child)
		}
	}
	descend(s.doc.Root())
}

// Len returns the number of displayed nodes in the snapshot.
func (s *Snapshot) Len() int {
	count := 0
	s.Walk(func(Node) { count++ })
	return count
}
