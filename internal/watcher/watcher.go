// Package watcher imports EPUB files dropped into a directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yuanying/epub-reader/internal/logger"
	"github.com/yuanying/epub-reader/internal/store"
)

// DefaultSettleDelay is how long a file must stay unchanged before it is
// imported.
const DefaultSettleDelay = 500 * time.Millisecond

// Importer adds an archive on disk to the collection.
type Importer interface {
	ImportFile(ctx context.Context, path string) (string, error)
}

// Result reports the outcome of one import attempt. Skipped is set when
// the archive was already in the collection.
type Result struct {
	Path    string
	Key     string
	Skipped bool
	Err     error
}

// Options configures a Watcher.
type Options struct {
	SettleDelay time.Duration
	// OnResult, when set, is called after every import attempt.
	OnResult func(Result)
}

// Watcher watches one directory.
type Watcher struct {
	dir      string
	importer Importer
	opts     Options
	logger   *slog.Logger
	fs       *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*pending
	wg      sync.WaitGroup
}

type pending struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// New returns a watcher for dir. Call Run to start it.
func New(dir string, imp Importer, opts Options, l *slog.Logger) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:      filepath.Clean(dir),
		importer: imp,
		opts:     opts,
		logger:   logger.OrDiscard(l),
		fs:       fs,
		pending:  make(map[string]*pending),
	}, nil
}

// Run imports the archives already in the directory, then imports new
// ones as they settle until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && isEPUB(e.Name()) {
			w.importPath(ctx, filepath.Join(w.dir, e.Name()))
		}
	}
	w.logger.Info("watching directory", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !isEPUB(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(ev.Name)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.settle(ctx, ev.Name)
	}
}

// settle (re)starts the timer of path.
func (w *Watcher) settle(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		w.cancel(path)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if old, ok := w.pending[path]; ok && old.timer.Stop() {
		w.wg.Done()
	}
	p := &pending{size: info.Size(), modTime: info.ModTime()}
	w.wg.Add(1)
	p.timer = time.AfterFunc(w.opts.SettleDelay, func() {
		defer w.wg.Done()
		w.check(ctx, path, p)
	})
	w.pending[path] = p
}

// check imports path when it has not changed since p was recorded.
func (w *Watcher) check(ctx context.Context, path string, p *pending) {
	w.mu.Lock()
	if w.pending[path] != p {
		w.mu.Unlock()
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		w.mu.Unlock()
		return
	}
	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		next := &pending{size: info.Size(), modTime: info.ModTime()}
		w.wg.Add(1)
		next.timer = time.AfterFunc(w.opts.SettleDelay, func() {
			defer w.wg.Done()
			w.check(ctx, path, next)
		})
		w.pending[path] = next
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	w.importPath(ctx, path)
}

func (w *Watcher) importPath(ctx context.Context, path string) {
	key, err := w.importer.ImportFile(ctx, path)
	res := Result{Path: path, Key: key, Err: err}
	switch {
	case errors.Is(err, store.ErrDuplicateBook):
		res.Skipped = true
		res.Err = nil
		w.logger.Debug("already imported", "path", path)
	case err != nil:
		w.logger.Warn("import failed", "path", path, "error", err)
	default:
		w.logger.Info("imported", "path", path, "key", key)
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(res)
	}
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		if p.timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

func (w *Watcher) close() {
	w.mu.Lock()
	for path, p := range w.pending {
		if p.timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
	w.fs.Close()
}

func isEPUB(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".epub")
}
