package content

// Paragraphs returns every paragraph of blocks in document order.
func Paragraphs(blocks []*Block) []*Paragraph {
	var out []*Paragraph
	for _, b := range blocks {
		Walk(b, func(n Node) bool {
			if p, ok := n.(*Paragraph); ok {
				out = append(out, p)
			}
			return true
		})
	}
	return out
}

// IndexParagraphs assigns sequential zero-based indices to every
// paragraph across blocks and returns them in that order.
func IndexParagraphs(blocks []*Block) []*Paragraph {
	ps := Paragraphs(blocks)
	for i, p := range ps {
		p.Index = i
	}
	return ps
}

// Images returns every image node of blocks in document order.
func Images(blocks []*Block) []*Image {
	var out []*Image
	for _, b := range blocks {
		Walk(b, func(n Node) bool {
			if img, ok := n.(*Image); ok {
				out = append(out, img)
			}
			return true
		})
	}
	return out
}

// Links returns every link node of blocks in document order.
func Links(blocks []*Block) []*Link {
	var out []*Link
	for _, b := range blocks {
		Walk(b, func(n Node) bool {
			if l, ok := n.(*Link); ok {
				out = append(out, l)
			}
			return true
		})
	}
	return out
}

// FirstParagraph returns the first paragraph found in nodes, searching
// descendants as well.
func FirstParagraph(nodes []Node) (*Paragraph, bool) {
	for _, n := range nodes {
		var found *Paragraph
		Walk(n, func(c Node) bool {
			if found != nil {
				return false
			}
			if p, ok := c.(*Paragraph); ok {
				found = p
				return false
			}
			return true
		})
		if found != nil {
			return found, true
		}
	}
	return nil, false
}

// Anchors returns the set of element ids reachable by fragment links,
// block ids included.
func Anchors(blocks []*Block) map[string]bool {
	ids := make(map[string]bool)
	for _, b := range blocks {
		if b.ID != "" {
			ids[b.ID] = true
		}
		Walk(b, func(n Node) bool {
			var id string
			switch v := n.(type) {
			case *Element:
				id = v.ID
			case *Paragraph:
				id = v.ID
			case *Heading:
				id = v.ID
			case *Link:
				id = v.ID
			}
			if id != "" {
				ids[id] = true
			}
			return true
		})
	}
	return ids
}
