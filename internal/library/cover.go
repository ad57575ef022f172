package library

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/bbrks/go-blurhash"
	"github.com/disintegration/imaging"
)

const (
	// DefaultCoverWidth is the thumbnail width used when none is given.
	DefaultCoverWidth  = 300
	coverJPEGQuality   = 85
	blurHashSampleSize = 64
)

// Cover is a JPEG thumbnail of a book cover with its blurhash placeholder.
type Cover struct {
	Data     []byte
	Width    int
	Height   int
	BlurHash string
}

// Cover renders the cover of key scaled down to fit width by 1.5 width.
// It returns epub.ErrNoCover when the book has none.
func (l *Library) Cover(ctx context.Context, key string, width int) (*Cover, error) {
	if width <= 0 {
		width = DefaultCoverWidth
	}
	b, err := l.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer b.Release()

	blob, err := b.Cover()
	if err != nil {
		return nil, err
	}
	src, _, err := image.Decode(bytes.NewReader(blob.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cover %s: %w", blob.Name, err)
	}

	thumb := imaging.Fit(src, width, width*3/2, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(coverJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode cover: %w", err)
	}

	// A small sample gives the same hash at a fraction of the cost.
	sample := imaging.Fit(src, blurHashSampleSize, blurHashSampleSize, imaging.Box)
	hash, err := blurhash.Encode(4, 3, sample)
	if err != nil {
		return nil, fmt.Errorf("failed to encode blurhash: %w", err)
	}

	return &Cover{
		Data:     buf.Bytes(),
		Width:    thumb.Bounds().Dx(),
		Height:   thumb.Bounds().Dy(),
		BlurHash: hash,
	}, nil
}
