package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yuanying/epub-reader/internal/content"
	"github.com/yuanying/epub-reader/internal/domain"
	"github.com/yuanying/epub-reader/internal/epub"
	"github.com/yuanying/epub-reader/internal/layout"
)

// bookEPUB builds an archive whose first document holds a cover image and
// first paragraphs, and whose second document holds the rest.
func bookEPUB(t *testing.T, first, second int) []byte {
	t.Helper()
	paras := func(from, n int) string {
		var sb strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&sb, "<p>第%d段落</p>\n", from+i)
		}
		return sb.String()
	}
	files := []struct{ name, body string }{
		{"META-INF/container.xml", `<container><rootfiles><rootfile full-path="OPS/book.opf" media-type="application/oebps-package+xml"/></rootfiles></container>`},
		{"OPS/book.opf", `<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
<metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Reader Test</dc:title><dc:language>ja</dc:language></metadata>
<manifest>
<item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>
<item id="b" href="b.xhtml" media-type="application/xhtml+xml"/>
<item id="img" href="cover.png" media-type="image/png"/>
</manifest>
<spine><itemref idref="a"/><itemref idref="b"/></spine></package>`},
		{"OPS/a.xhtml", `<html><body><div><img src="cover.png"/></div>` + paras(0, first) + `</body></html>`},
		{"OPS/b.xhtml", `<html><body>` + paras(first, second) + `</body></html>`},
		{"OPS/cover.png", "not really a png"},
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.Create(f.name)
		if err != nil {
			t.Fatalf("failed to create %s: %v", f.name, err)
		}
		fw.Write([]byte(f.body))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func newBook(t *testing.T, lastRead int) *epub.Book {
	t.Helper()
	b, err := epub.NewFromFile(bookEPUB(t, 5, 4))
	if err != nil {
		t.Fatalf("NewFromFile() failed: %v", err)
	}
	b.Key = "book-test"
	b.LastReadIndex = lastRead
	return b
}

// fixedMeasurer: paragraphs 40, images 500.
var fixedMeasurer = layout.MeasureFunc(func(n content.Node) float64 {
	if n.Kind() == content.KindImage {
		return 500
	}
	return 40
})

type savedPosition struct {
	key   string
	index int
}

type fakeStore struct {
	mu    sync.Mutex
	saved []savedPosition
	err   error
	now   int64
}

func (f *fakeStore) UpdatePosition(_ context.Context, key string, rec domain.BookRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.now++
	f.saved = append(f.saved, savedPosition{key: key, index: rec.LastReadIndex})
	return f.now, nil
}

func (f *fakeStore) writes() []savedPosition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]savedPosition(nil), f.saved...)
}

type recordingSurface struct {
	mu    sync.Mutex
	views []View
}

func (r *recordingSurface) Render(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recordingSurface) last() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[len(r.views)-1]
}

type fakeTimer struct {
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
	delays []time.Duration
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{f: f}
	s.timers = append(s.timers, t)
	s.delays = append(s.delays, d)
	return t
}

// fire runs every pending timer and returns how many ran.
func (s *fakeScheduler) fire() int {
	s.mu.Lock()
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped {
			t.stopped = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}
