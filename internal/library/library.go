// Package library manages the local book collection: importing archives,
// listing them with their progress, opening them for reading and
// rendering cover thumbnails.
package library

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/zeebo/blake3"

	"github.com/yuanying/epub-reader/internal/domain"
	"github.com/yuanying/epub-reader/internal/epub"
	"github.com/yuanying/epub-reader/internal/logger"
	"github.com/yuanying/epub-reader/internal/store"
)

// maxDownloadBytes caps archives fetched by ImportURL.
const maxDownloadBytes = 512 << 20

// Store is the persistence used by the library.
type Store interface {
	GetAll(ctx context.Context) ([]domain.Item, error)
	Get(ctx context.Context, key string) (*domain.BookRecord, error)
	Add(ctx context.Context, rec domain.BookRecord) (string, error)
	Remove(ctx context.Context, key string) error
	HasChecksum(ctx context.Context, sum string) (bool, error)
}

// Entry is one book of the collection listing.
type Entry struct {
	Key           string
	Title         string
	Creator       string
	Language      string
	LastReadIndex int
	TotalIndex    int
	Progress      float64
}

// Library is the collection service.
type Library struct {
	store  Store
	http   *http.Client
	logger *slog.Logger
}

// New returns a library backed by s.
func New(s Store, l *slog.Logger) *Library {
	return &Library{
		store:  s,
		http:   &http.Client{Timeout: 2 * time.Minute},
		logger: logger.OrDiscard(l),
	}
}

// Checksum returns the hex blake3 digest of an archive.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Import reads the metadata of an archive and adds it to the collection.
// Nothing is stored when the archive is malformed or already present.
func (l *Library) Import(ctx context.Context, data []byte) (string, error) {
	sum := Checksum(data)
	dup, err := l.store.HasChecksum(ctx, sum)
	if err != nil {
		return "", fmt.Errorf("failed to check archive: %w", err)
	}
	if dup {
		return "", fmt.Errorf("archive %s already imported: %w", sum[:12], store.ErrDuplicateBook)
	}

	b, err := epub.NewFromFile(data, epub.WithLogger(l.logger))
	if err != nil {
		return "", err
	}
	rec := b.Record()
	rec.Checksum = sum
	if rec.Title == "" {
		rec.Title = "Untitled " + sum[:8]
	}

	key, err := l.store.Add(ctx, rec)
	if err != nil {
		return "", err
	}
	l.logger.Info("book imported", "key", key, "title", rec.Title, "bytes", len(data))
	return key, nil
}

// ImportFile imports the archive at path.
func (l *Library) ImportFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return l.Import(ctx, data)
}

// ImportURL downloads an archive and imports it.
func (l *Library) ImportURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", url, err)
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: HTTP %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	if len(data) > maxDownloadBytes {
		return "", fmt.Errorf("archive at %s exceeds %d bytes", url, maxDownloadBytes)
	}
	return l.Import(ctx, data)
}

// List returns the collection in import order.
func (l *Library) List(ctx context.Context) ([]Entry, error) {
	items, err := l.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		rec := it.Value
		entries = append(entries, Entry{
			Key:           it.Key,
			Title:         rec.Title,
			Creator:       rec.Creator,
			Language:      rec.Language,
			LastReadIndex: rec.LastReadIndex,
			TotalIndex:    rec.TotalIndex,
			Progress:      rec.Progress(),
		})
	}
	return entries, nil
}

// Open rehydrates a stored book. Content is not loaded.
func (l *Library) Open(ctx context.Context, key string) (*epub.Book, error) {
	rec, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return epub.NewFromRecord(key, *rec, epub.WithLogger(l.logger))
}

// Remove deletes a book from the collection.
func (l *Library) Remove(ctx context.Context, key string) error {
	return l.store.Remove(ctx, key)
}
