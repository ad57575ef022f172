package progress

import (
	"fmt"

	"github.com/yuanying/epub-reader/internal/content"
)

// Count returns the readable characters of p. Ruby annotations are
// stripped from a copy first; p is left untouched.
func Count(p *content.Paragraph) int {
	c := p.Clone()
	content.Remove(c, content.KindRubyText)
	return CountString(content.TextContent(c))
}

// Calculator holds the cumulative readable character count of a
// paragraph sequence.
type Calculator struct {
	// Cumulative[i] counts paragraphs 0..i inclusive.
	Cumulative []int
}

// New counts every paragraph of ps.
func New(ps []*content.Paragraph) *Calculator {
	cum := make([]int, len(ps))
	total := 0
	for i, p := range ps {
		total += Count(p)
		cum[i] = total
	}
	return &Calculator{Cumulative: cum}
}

// Total returns the readable characters of the whole sequence.
func (c *Calculator) Total() int {
	if len(c.Cumulative) == 0 {
		return 0
	}
	return c.Cumulative[len(c.Cumulative)-1]
}

// CharsAt returns the characters read through paragraph i. Indexes before
// the first paragraph count zero; indexes past the last are clamped.
func (c *Calculator) CharsAt(i int) int {
	if i < 0 || len(c.Cumulative) == 0 {
		return 0
	}
	if i >= len(c.Cumulative) {
		i = len(c.Cumulative) - 1
	}
	return c.Cumulative[i]
}

// Percentage returns CharsAt(i) as a percentage of Total, or 0 for a book
// without readable text.
func (c *Calculator) Percentage(i int) float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.CharsAt(i)) / float64(total) * 100
}

// Format renders the counter shown under the page, e.g. "120/4000 (3.00%)".
func (c *Calculator) Format(i int) string {
	return fmt.Sprintf("%d/%d (%.2f%%)", c.CharsAt(i), c.Total(), c.Percentage(i))
}
