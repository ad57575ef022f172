// Package content holds the normalized document tree produced from EPUB
// XHTML documents. Pagination and progress counting operate on this tree
// instead of raw markup.
package content

import "strings"

// Kind identifies the variant of a Node.
type Kind int

const (
	KindText Kind = iota
	KindElement
	KindParagraph
	KindHeading
	KindImage
	KindLink
	KindRuby
	KindRubyText
	KindBreak
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindElement:
		return "element"
	case KindParagraph:
		return "paragraph"
	case KindHeading:
		return "heading"
	case KindImage:
		return "image"
	case KindLink:
		return "link"
	case KindRuby:
		return "ruby"
	case KindRubyText:
		return "rt"
	case KindBreak:
		return "break"
	}
	return "unknown"
}

// Node is a node of the normalized tree.
type Node interface {
	Kind() Kind
	// Clone returns a deep copy of the node.
	Clone() Node
}

// Parent is implemented by nodes that carry children.
type Parent interface {
	Node
	Nodes() []Node
	SetNodes([]Node)
}

// Text is a run of character data.
type Text struct {
	Value string
}

func (t *Text) Kind() Kind  { return KindText }
func (t *Text) Clone() Node { return &Text{Value: t.Value} }

// Break is a line break (<br>).
type Break struct{}

func (b *Break) Kind() Kind  { return KindBreak }
func (b *Break) Clone() Node { return &Break{} }

// Element is a generic container (div, span, section, svg, ...).
type Element struct {
	Tag      string
	ID       string
	Class    string
	Children []Node
}

func (e *Element) Kind() Kind         { return KindElement }
func (e *Element) Nodes() []Node      { return e.Children }
func (e *Element) SetNodes(ns []Node) { e.Children = ns }
func (e *Element) Clone() Node {
	return &Element{Tag: e.Tag, ID: e.ID, Class: e.Class, Children: cloneNodes(e.Children)}
}

// Paragraph is the atomic unit of progress tracking and pagination.
// Index is the position of the paragraph in the flattened cross-block
// paragraph order, or -1 before IndexParagraphs has run.
type Paragraph struct {
	ID       string
	Class    string
	Index    int
	Children []Node
}

// NewParagraph returns an unindexed paragraph.
func NewParagraph(children ...Node) *Paragraph {
	return &Paragraph{Index: -1, Children: children}
}

func (p *Paragraph) Kind() Kind         { return KindParagraph }
func (p *Paragraph) Nodes() []Node      { return p.Children }
func (p *Paragraph) SetNodes(ns []Node) { p.Children = ns }
func (p *Paragraph) Clone() Node {
	return &Paragraph{ID: p.ID, Class: p.Class, Index: p.Index, Children: cloneNodes(p.Children)}
}

// Heading is an h1-h6 element.
type Heading struct {
	Level    int
	ID       string
	Children []Node
}

func (h *Heading) Kind() Kind         { return KindHeading }
func (h *Heading) Nodes() []Node      { return h.Children }
func (h *Heading) SetNodes(ns []Node) { h.Children = ns }
func (h *Heading) Clone() Node {
	return &Heading{Level: h.Level, ID: h.ID, Children: cloneNodes(h.Children)}
}

// ImageRef is the resolved reference of an image node.
type ImageRef struct {
	// Name is the bare filename the reference was looked up with.
	Name string
	// Handle is the locally resolvable blob handle, empty when Broken.
	Handle string
	Broken bool
}

// Image is an <img> or an SVG <image> element.
type Image struct {
	Ref    ImageRef
	Alt    string
	Vector bool // true for svg <image>
}

func (i *Image) Kind() Kind { return KindImage }
func (i *Image) Clone() Node {
	c := *i
	return &c
}

// Link is an anchor. Href is always fragment-only ("#frag").
type Link struct {
	Href     string
	ID       string
	Children []Node
}

func (l *Link) Kind() Kind         { return KindLink }
func (l *Link) Nodes() []Node      { return l.Children }
func (l *Link) SetNodes(ns []Node) { l.Children = ns }
func (l *Link) Clone() Node {
	return &Link{Href: l.Href, ID: l.ID, Children: cloneNodes(l.Children)}
}

// Ruby is a <ruby> annotation container.
type Ruby struct {
	Children []Node
}

func (r *Ruby) Kind() Kind         { return KindRuby }
func (r *Ruby) Nodes() []Node      { return r.Children }
func (r *Ruby) SetNodes(ns []Node) { r.Children = ns }
func (r *Ruby) Clone() Node        { return &Ruby{Children: cloneNodes(r.Children)} }

// RubyText is a phonetic gloss (<rt> or <rp>).
type RubyText struct {
	Children []Node
}

func (r *RubyText) Kind() Kind         { return KindRubyText }
func (r *RubyText) Nodes() []Node      { return r.Children }
func (r *RubyText) SetNodes(ns []Node) { r.Children = ns }
func (r *RubyText) Clone() Node        { return &RubyText{Children: cloneNodes(r.Children)} }

// Block is one normalized sub-document of the book.
type Block struct {
	// ID is derived from the source filename with its extension stripped.
	ID       string
	Source   string
	Children []Node
}

func (b *Block) Kind() Kind         { return KindElement }
func (b *Block) Nodes() []Node      { return b.Children }
func (b *Block) SetNodes(ns []Node) { b.Children = ns }
func (b *Block) Clone() Node {
	return &Block{ID: b.ID, Source: b.Source, Children: cloneNodes(b.Children)}
}

func cloneNodes(ns []Node) []Node {
	if ns == nil {
		return nil
	}
	out := make([]Node, len(ns))
	for i, n := range ns {
		out[i] = n.Clone()
	}
	return out
}

// Walk visits n and its descendants in document order. If fn returns
// false the children of the visited node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	if p, ok := n.(Parent); ok {
		for _, c := range p.Nodes() {
			Walk(c, fn)
		}
	}
}

// TextContent concatenates all character data below n.
func TextContent(n Node) string {
	var sb strings.Builder
	Walk(n, func(c Node) bool {
		if t, ok := c.(*Text); ok {
			sb.WriteString(t.Value)
		}
		return true
	})
	return sb.String()
}

// Contains reports whether n has a descendant of kind k (n itself excluded).
func Contains(n Node, k Kind) bool {
	found := false
	p, ok := n.(Parent)
	if !ok {
		return false
	}
	for _, c := range p.Nodes() {
		Walk(c, func(d Node) bool {
			if d.Kind() == k {
				found = true
			}
			return !found
		})
		if found {
			return true
		}
	}
	return false
}

// Remove deletes every descendant of n whose kind is k.
func Remove(n Node, k Kind) {
	p, ok := n.(Parent)
	if !ok {
		return
	}
	kept := p.Nodes()[:0]
	for _, c := range p.Nodes() {
		if c.Kind() == k {
			continue
		}
		Remove(c, k)
		kept = append(kept, c)
	}
	p.SetNodes(kept)
}
