// Package layout partitions normalized content into viewport-sized pages.
package layout

import (
	"github.com/yuanying/epub-reader/internal/content"
)

// SeekThreshold is the lowest last-read index that selects an initial
// page. Indexes at or below it open at the first page.
const SeekThreshold = 1

// Measurer reports the rendered height of a unit on the display surface.
type Measurer interface {
	MeasureHeight(n content.Node) float64
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func(n content.Node) float64

func (f MeasureFunc) MeasureHeight(n content.Node) float64 { return f(n) }

// Page is one screenful of cloned units.
type Page struct {
	Units []content.Node
}

// FirstParagraph returns the index of the first paragraph on the page.
func (p Page) FirstParagraph() (int, bool) {
	for _, u := range p.Units {
		if para, ok := u.(*content.Paragraph); ok && para.Index >= 0 {
			return para.Index, true
		}
	}
	return 0, false
}

// Indices returns the paragraph indices on the page in order.
func (p Page) Indices() []int {
	var out []int
	for _, u := range p.Units {
		if para, ok := u.(*content.Paragraph); ok && para.Index >= 0 {
			out = append(out, para.Index)
		}
	}
	return out
}

// Result is the output of Paginate.
type Result struct {
	Pages []Page
	// Initial is the page holding the last-read paragraph, 0 if none.
	Initial int
}

// Select returns the units that take part in layout: paragraphs and
// headings without an embedded image, plus every image. An image inside a
// paragraph is laid out on its own and the paragraph is skipped.
func Select(blocks []*content.Block) []content.Node {
	var units []content.Node
	for _, b := range blocks {
		content.Walk(b, func(n content.Node) bool {
			switch n.(type) {
			case *content.Paragraph, *content.Heading:
				if content.Contains(n, content.KindImage) {
					return true
				}
				units = append(units, n)
				return false
			case *content.Image:
				units = append(units, n)
				return false
			}
			return true
		})
	}
	return units
}

// Paginate lays the selected units of blocks onto pages of at most
// viewportHeight, first fit, in document order. A unit taller than the
// viewport gets a page of its own. Units are cloned; blocks are not
// modified.
func Paginate(blocks []*content.Block, m Measurer, viewportHeight float64, lastReadIndex int) Result {
	var (
		res     Result
		current []content.Node
		height  float64
		found   bool
	)

	seal := func() {
		if len(current) == 0 {
			return
		}
		page := Page{Units: current}
		if !found && lastReadIndex > SeekThreshold {
			for _, idx := range page.Indices() {
				if idx == lastReadIndex {
					res.Initial = len(res.Pages)
					found = true
					break
				}
			}
		}
		res.Pages = append(res.Pages, page)
		current = nil
		height = 0
	}

	for _, u := range Select(blocks) {
		h := m.MeasureHeight(u)
		clone := u.Clone()
		if height+h <= viewportHeight {
			current = append(current, clone)
			height += h
			continue
		}
		seal()
		current = []content.Node{clone}
		height = h
	}
	seal()
	return res
}

// Seek returns the page containing paragraph index. When no page holds
// it, the page with the nearest preceding paragraph is returned, and 0
// when there is none.
func (r Result) Seek(index int) int {
	best, bestIdx := 0, -1
	for i, p := range r.Pages {
		for _, idx := range p.Indices() {
			if idx == index {
				return i
			}
			if idx < index && idx > bestIdx {
				best, bestIdx = i, idx
			}
		}
	}
	return best
}

// Clamp bounds a page index to the pages of r.
func (r Result) Clamp(i int) int {
	if i >= len(r.Pages) {
		i = len(r.Pages) - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
