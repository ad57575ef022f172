package layout

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/text/width"

	"github.com/yuanying/epub-reader/internal/content"
)

// EstimatingMeasurer approximates rendered heights for a fixed-width
// surface without a layout engine. Text is broken into lines by glyph
// width; images keep their aspect ratio scaled down to the viewport width.
type EstimatingMeasurer struct {
	FontSize      float64
	LineSpacing   float64
	ViewportWidth float64
	ParagraphGap  float64

	// ImageData returns the encoded bytes behind an image handle.
	ImageData func(handle string) ([]byte, bool)
}

// NewEstimatingMeasurer returns a measurer with the reader's default
// spacing.
func NewEstimatingMeasurer(fontSize, viewportWidth float64, images func(string) ([]byte, bool)) *EstimatingMeasurer {
	return &EstimatingMeasurer{
		FontSize:      fontSize,
		LineSpacing:   1.8,
		ViewportWidth: viewportWidth,
		ParagraphGap:  fontSize,
		ImageData:     images,
	}
}

func (m *EstimatingMeasurer) lineHeight() float64 {
	return m.FontSize * m.LineSpacing
}

// MeasureHeight implements Measurer.
func (m *EstimatingMeasurer) MeasureHeight(n content.Node) float64 {
	if img, ok := n.(*content.Image); ok {
		return m.imageHeight(img)
	}
	return float64(m.lines(n))*m.lineHeight() + m.ParagraphGap
}

// lines counts wrapped lines of n. Ruby annotations are rendered above
// the base text and take no line of their own.
func (m *EstimatingMeasurer) lines(n content.Node) int {
	perLine := m.ViewportWidth / m.FontSize
	if perLine < 1 {
		perLine = 1
	}

	total, ems := 0, 0.0
	flush := func() {
		l := int(math.Ceil(ems / perLine))
		if l < 1 {
			l = 1
		}
		total += l
		ems = 0
	}

	content.Walk(n, func(c content.Node) bool {
		switch v := c.(type) {
		case *content.RubyText:
			return false
		case *content.Break:
			flush()
		case *content.Text:
			for _, r := range v.Value {
				ems += runeWidth(r)
			}
		}
		return true
	})
	flush()
	return total
}

// runeWidth returns the advance of r in ems.
func runeWidth(r rune) float64 {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 1
	}
	if r == '\n' || r == '\r' || r == '\t' {
		return 0
	}
	return 0.5
}

func (m *EstimatingMeasurer) imageHeight(img *content.Image) float64 {
	placeholder := m.lineHeight()
	if img.Ref.Broken || m.ImageData == nil {
		return placeholder
	}
	data, ok := m.ImageData(img.Ref.Handle)
	if !ok {
		return placeholder
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width == 0 {
		return placeholder
	}
	scale := m.ViewportWidth / float64(cfg.Width)
	if scale > 1 {
		scale = 1
	}
	return float64(cfg.Height) * scale
}
