package epub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/yuanying/epub-reader/internal/content"
	"github.com/yuanying/epub-reader/internal/domain"
)

// Book is one EPUB together with its reading state. Metadata is loaded on
// construction; content is loaded on demand by LoadContent and released by
// Release.
type Book struct {
	Key        string // store key, empty before the first save
	Title      string
	Creator    string
	Creators   []string
	Language   string
	Identifier string
	UpdatedAt  int64 // unix milliseconds

	LastReadIndex int
	TotalIndex    int

	AddedAt  int64
	Checksum string

	RootPath        string
	RootContentPath string
	CoverPath       string

	// Derived artifacts, scoped to a reading session.
	Blocks     []*content.Block
	Navigation []NavEntry
	Images     *ImageMap
	Defects    []Defect

	file    []byte
	archive *Lazy[*Archive]
	logger  *slog.Logger

	loadMu sync.Mutex
	loaded bool
}

// Option configures a Book.
type Option func(*Book)

// WithLogger sets the logger used while loading content.
func WithLogger(l *slog.Logger) Option {
	return func(b *Book) { b.logger = l }
}

// NewFromFile builds a book from raw archive bytes. Only metadata is read.
func NewFromFile(data []byte, opts ...Option) (*Book, error) {
	b := newBook(data, opts)
	if err := b.loadMetadata(); err != nil {
		return nil, err
	}
	return b, nil
}

// NewFromRecord rehydrates a persisted book. Reading state comes from the
// record; metadata is re-read from the archive for the paths.
func NewFromRecord(key string, rec domain.BookRecord, opts ...Option) (*Book, error) {
	b := newBook(rec.File, opts)
	b.Key = key
	b.UpdatedAt = rec.UpdatedAt
	b.LastReadIndex = rec.LastReadIndex
	b.TotalIndex = rec.TotalIndex
	b.AddedAt = rec.AddedAt
	b.Checksum = rec.Checksum

	if err := b.loadMetadata(); err != nil {
		return nil, err
	}
	// The stored record is authoritative for descriptive fields.
	b.Title = rec.Title
	b.Creator = rec.Creator
	b.Language = rec.Language
	b.Identifier = rec.Identifier
	return b, nil
}

func newBook(data []byte, opts []Option) *Book {
	b := &Book{file: data}
	b.archive = NewLazy(func() (*Archive, error) {
		if len(b.file) == 0 {
			return nil, ErrNoFile
		}
		return OpenArchive(b.file)
	})
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	return b
}

// Archive returns the decoded archive, decoding it on first use.
func (b *Book) Archive() (*Archive, error) {
	return b.archive.Get()
}

// File returns the raw archive bytes.
func (b *Book) File() []byte { return b.file }

func (b *Book) loadMetadata() error {
	a, err := b.Archive()
	if err != nil {
		return err
	}
	md, err := LoadMetadata(a)
	if err != nil {
		return err
	}
	b.Title = md.Title
	b.Creator = md.Creator
	b.Creators = md.Creators
	b.Language = md.Language
	b.Identifier = md.Identifier
	b.RootPath = md.RootPath
	b.RootContentPath = md.RootContentPath
	b.CoverPath = md.CoverPath
	return nil
}

// Loaded reports whether content is loaded.
func (b *Book) Loaded() bool {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()
	return b.loaded
}

// LoadContent normalizes the book content. It is a no-op when content is
// already loaded unless reload is set. Concurrent callers wait for the
// load in progress instead of repeating it.
func (b *Book) LoadContent(ctx context.Context, reload bool) error {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()
	if b.loaded && !reload {
		return nil
	}

	a, err := b.Archive()
	if err != nil {
		return err
	}
	c, err := Normalize(ctx, a, b.RootPath, b.RootContentPath, b.logger.With("title", b.Title))
	if err != nil {
		return err
	}
	b.Blocks = c.Blocks
	b.Navigation = c.Navigation
	b.Images = c.Images
	b.Defects = c.Defects
	b.loaded = true
	return nil
}

// Release drops the session-scoped artifacts and the decoded archive.
func (b *Book) Release() {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()
	b.Blocks = nil
	b.Navigation = nil
	b.Images = nil
	b.Defects = nil
	b.loaded = false
	b.archive.Reset()
}

// Cover returns the cover image blob.
func (b *Book) Cover() (*Blob, error) {
	if b.CoverPath == "" {
		return nil, ErrNoCover
	}
	a, err := b.Archive()
	if err != nil {
		return nil, err
	}
	return a.ReadBlob(b.CoverPath)
}

// Record returns the persisted form of the book.
func (b *Book) Record() domain.BookRecord {
	return domain.BookRecord{
		Title:         b.Title,
		Creator:       b.Creator,
		Language:      b.Language,
		Identifier:    b.Identifier,
		LastReadIndex: b.LastReadIndex,
		TotalIndex:    b.TotalIndex,
		UpdatedAt:     b.UpdatedAt,
		AddedAt:       b.AddedAt,
		Checksum:      b.Checksum,
		File:          b.file,
	}
}
