package layout

import "github.com/yuanying/epub-reader/internal/content"

// Flow is the geometry of continuous mode: every unit stacked in one
// column.
type Flow struct {
	units   []content.Node
	tops    []float64
	bottoms []float64
	height  float64
}

// NewFlow measures the selected units of blocks.
func NewFlow(blocks []*content.Block, m Measurer) *Flow {
	f := &Flow{units: Select(blocks)}
	f.tops = make([]float64, len(f.units))
	f.bottoms = make([]float64, len(f.units))
	y := 0.0
	for i, u := range f.units {
		f.tops[i] = y
		y += m.MeasureHeight(u)
		f.bottoms[i] = y
	}
	f.height = y
	return f
}

// Height returns the total height of the column.
func (f *Flow) Height() float64 { return f.height }

// Units returns the laid out units.
func (f *Flow) Units() []content.Node { return f.units }

// Bottoms returns the bottom of every unit relative to the viewport top
// when scrolled to offset.
func (f *Flow) Bottoms(offset float64) []float64 {
	out := make([]float64, len(f.bottoms))
	for i, b := range f.bottoms {
		out[i] = b - offset
	}
	return out
}

// OffsetOf returns the scroll offset aligning paragraph index with the
// viewport top, and false when no unit carries that index.
func (f *Flow) OffsetOf(index int) (float64, bool) {
	for i, u := range f.units {
		if p, ok := u.(*content.Paragraph); ok && p.Index == index {
			return f.tops[i], true
		}
	}
	return 0, false
}

// LastPassed returns the last paragraph scrolled entirely above the
// viewport at offset. Scanning stops at the first paragraph still
// visible.
func (f *Flow) LastPassed(offset float64) (int, bool) {
	last, ok := 0, false
	for i, u := range f.units {
		p, isPara := u.(*content.Paragraph)
		if !isPara || p.Index < 0 {
			continue
		}
		if f.bottoms[i]-offset > 0 {
			break
		}
		last, ok = p.Index, true
	}
	return last, ok
}
