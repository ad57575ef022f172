// Package reader drives a reading session: it owns the open book, the
// display mode and the reading position, and persists position changes.
package reader

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/yuanying/epub-reader/internal/content"
	"github.com/yuanying/epub-reader/internal/domain"
	"github.com/yuanying/epub-reader/internal/epub"
	"github.com/yuanying/epub-reader/internal/layout"
	"github.com/yuanying/epub-reader/internal/logger"
	"github.com/yuanying/epub-reader/internal/progress"
	"github.com/yuanying/epub-reader/internal/settings"
)

// MinSwipeDistance is the horizontal travel below which a swipe is
// ignored.
const MinSwipeDistance = 30

const persistTimeout = 5 * time.Second

// Mode is the display mode of a session.
type Mode int

const (
	ModeNone Mode = iota
	ModeContinuous
	ModePaginated
)

func (m Mode) String() string {
	switch m {
	case ModeContinuous:
		return "continuous"
	case ModePaginated:
		return "paginated"
	}
	return "none"
}

// Positioner persists reading positions. UpdatePosition returns the new
// update timestamp in unix milliseconds.
type Positioner interface {
	UpdatePosition(ctx context.Context, key string, rec domain.BookRecord) (int64, error)
}

// View is what the surface shows after every change.
type View struct {
	Mode      Mode
	Page      layout.Page // paginated mode only
	PageIndex int
	PageCount int
	Offset    float64 // continuous mode only
	Units     []content.Node
	Progress  string
}

// Surface displays session views.
type Surface interface {
	Render(v View)
}

// Option configures a Session.
type Option func(*Session)

// WithViewport sets the surface size.
func WithViewport(width, height float64) Option {
	return func(s *Session) { s.width, s.height = width, height }
}

// WithMeasurer replaces the estimating measurer.
func WithMeasurer(m layout.Measurer) Option {
	return func(s *Session) { s.measurer = m }
}

// WithScheduler replaces the timer source of the scroll debouncer.
func WithScheduler(sc Scheduler) Option {
	return func(s *Session) { s.debounce.sched = sc }
}

// WithSettleDelay sets how long scrolling must pause before the position
// is recomputed.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Session) { s.debounce.delay = d }
}

// WithBus uses b instead of a private bus.
func WithBus(b *Bus) Option {
	return func(s *Session) { s.bus = b }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is one reader view. Its methods are safe for concurrent use;
// Render is called with the session lock held and must not call back into
// the session.
type Session struct {
	mu sync.Mutex

	store    Positioner
	prefs    settings.Settings
	surface  Surface
	bus      *Bus
	sub      *Subscription
	logger   *slog.Logger
	debounce *debouncer
	measurer layout.Measurer
	width    float64
	height   float64

	book   *epub.Book
	calc   *progress.Calculator
	mode   Mode
	pages  layout.Result
	page   int
	flow   *layout.Flow
	offset float64
	active layout.Measurer
}

// New returns a session without a book.
func New(store Positioner, prefs settings.Settings, surface Surface, opts ...Option) *Session {
	s := &Session{
		store:    store,
		prefs:    prefs,
		surface:  surface,
		debounce: &debouncer{sched: realScheduler{}, delay: DefaultSettleDelay},
		width:    720,
		height:   1280,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = NewBus()
	}
	s.logger = logger.OrDiscard(s.logger)
	return s
}

// Bus returns the bus the session listens on.
func (s *Session) Bus() *Bus { return s.bus }

// SetBook makes b the current book. The previous book is released, the
// content of b is loaded, paragraphs are indexed and the view is restored
// at the stored position.
func (s *Session) SetBook(ctx context.Context, b *epub.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardown()
	if err := b.LoadContent(ctx, false); err != nil {
		return fmt.Errorf("failed to load book content: %w", err)
	}

	ps := content.IndexParagraphs(b.Blocks)
	b.TotalIndex = len(ps)
	s.book = b
	s.calc = progress.New(ps)
	s.active = s.measurer
	if s.active == nil {
		s.active = layout.NewEstimatingMeasurer(float64(s.prefs.FontSize), s.width, imageData(b.Images))
	}

	if s.prefs.Paginated {
		s.enterPaginated()
	} else {
		s.enterContinuous()
	}
	s.sub = s.bus.Subscribe(s.handle)

	s.logger.Info("book opened",
		"key", b.Key,
		"title", b.Title,
		"mode", s.mode,
		"paragraphs", b.TotalIndex,
		"last_read_index", b.LastReadIndex)
	return nil
}

func imageData(m *epub.ImageMap) func(string) ([]byte, bool) {
	return func(handle string) ([]byte, bool) {
		b, ok := m.Resolve(handle)
		if !ok {
			return nil, false
		}
		return b.Data, true
	}
}

func (s *Session) teardown() {
	s.sub.Close()
	s.sub = nil
	s.debounce.stop()
	if s.book != nil {
		s.book.Release()
	}
	s.book, s.calc, s.flow = nil, nil, nil
	s.pages = layout.Result{}
	s.page, s.offset = 0, 0
	s.mode = ModeNone
}

func (s *Session) enterPaginated() {
	s.mode = ModePaginated
	s.flow = nil
	s.pages = layout.Paginate(s.book.Blocks, s.active, s.height, s.book.LastReadIndex)
	s.showPage(s.pages.Initial, false)
}

func (s *Session) enterContinuous() {
	s.mode = ModeContinuous
	s.pages = layout.Result{}
	s.flow = layout.NewFlow(s.book.Blocks, s.active)
	s.offset = 0
	if s.book.LastReadIndex > 0 {
		if off, ok := s.flow.OffsetOf(s.book.LastReadIndex); ok {
			s.offset = off
		}
	}
	s.render()
}

// SetPaginated switches the display mode, keeping the reading position.
func (s *Session) SetPaginated(paginated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.Paginated = paginated
	if s.book == nil {
		return nil
	}
	s.debounce.stop()
	if paginated {
		s.enterPaginated()
	} else {
		s.enterContinuous()
	}
	return nil
}

func (s *Session) handle(e Event) {
	switch e := e.(type) {
	case ScrollEvent:
		s.Scroll(e.Offset)
	case KeyEvent:
		s.Key(e.Key)
	case SwipeEvent:
		s.Swipe(e.StartX, e.EndX)
	case ResizeEvent:
		s.Resize(e.Height)
	}
}

// Scroll records the continuous-mode offset. The reading position is
// recomputed once scrolling settles.
func (s *Session) Scroll(offset float64) {
	s.mu.Lock()
	if s.mode != ModeContinuous {
		s.mu.Unlock()
		return
	}
	s.offset = offset
	s.render()
	s.mu.Unlock()

	s.debounce.trigger(s.settle)
}

// settle derives the last read paragraph from the scroll offset: the last
// paragraph scrolled entirely above the viewport, 0 when none is.
func (s *Session) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.book == nil || s.mode != ModeContinuous {
		return
	}
	idx, _ := s.flow.LastPassed(s.offset)
	s.track(idx)
}

// Key maps navigation keys to page turns.
func (s *Session) Key(key string) {
	switch key {
	case "ArrowDown", "PageDown", "ArrowRight":
		s.Next()
	case "ArrowUp", "PageUp", "ArrowLeft":
		s.Prev()
	}
}

// Swipe turns the page for a horizontal gesture: leftward goes forward.
func (s *Session) Swipe(startX, endX float64) {
	dx := endX - startX
	if math.Abs(dx) < MinSwipeDistance {
		return
	}
	if dx < 0 {
		s.Next()
	} else {
		s.Prev()
	}
}

// Next shows the following page.
func (s *Session) Next() { s.turn(1) }

// Prev shows the preceding page.
func (s *Session) Prev() { s.turn(-1) }

func (s *Session) turn(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModePaginated {
		return
	}
	s.showPage(s.page+delta, true)
}

// GoTo shows page i, clamped to the page range.
func (s *Session) GoTo(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModePaginated {
		return
	}
	s.showPage(i, true)
}

// GoToParagraph shows the page holding paragraph index, or scrolls to it
// in continuous mode.
func (s *Session) GoToParagraph(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.mode {
	case ModePaginated:
		s.showPage(s.pages.Seek(index), true)
	case ModeContinuous:
		if off, ok := s.flow.OffsetOf(index); ok {
			s.offset = off
			s.render()
		}
	}
}

// showPage displays page i. With derive set the reading position moves to
// the first paragraph of the page; image-only pages keep it.
func (s *Session) showPage(i int, derive bool) {
	if len(s.pages.Pages) == 0 {
		s.page = 0
		s.render()
		return
	}
	changed := s.pages.Clamp(i) != s.page
	s.page = s.pages.Clamp(i)
	if derive && changed {
		if idx, ok := s.pages.Pages[s.page].FirstParagraph(); ok {
			s.track(idx)
		}
	}
	s.render()
}

// Resize re-paginates for a new viewport height and returns to the page
// holding the tracked paragraph.
func (s *Session) Resize(height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.height = height
	if s.book == nil {
		return
	}
	switch s.mode {
	case ModePaginated:
		s.pages = layout.Paginate(s.book.Blocks, s.active, s.height, s.book.LastReadIndex)
		s.page = s.pages.Clamp(s.pages.Seek(s.book.LastReadIndex))
	case ModeContinuous:
		s.flow = layout.NewFlow(s.book.Blocks, s.active)
	}
	s.render()
}

// track moves the reading position to idx and persists it on change.
func (s *Session) track(idx int) {
	if idx == s.book.LastReadIndex {
		return
	}
	s.book.LastReadIndex = idx
	if s.store == nil || s.book.Key == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	ts, err := s.store.UpdatePosition(ctx, s.book.Key, s.book.Record())
	if err != nil {
		s.logger.Warn("failed to persist reading position", "key", s.book.Key, "index", idx, "error", err)
		return
	}
	s.book.UpdatedAt = ts
	s.logger.Debug("reading position saved", "key", s.book.Key, "index", idx)
}

func (s *Session) render() {
	if s.surface == nil {
		return
	}
	v := View{Mode: s.mode, Progress: s.progressLocked()}
	switch s.mode {
	case ModePaginated:
		v.PageIndex, v.PageCount = s.page, len(s.pages.Pages)
		if s.page < len(s.pages.Pages) {
			v.Page = s.pages.Pages[s.page]
			v.Units = v.Page.Units
		}
	case ModeContinuous:
		v.Offset = s.offset
		v.Units = s.flow.Units()
	}
	s.surface.Render(v)
}

// Progress returns the reading counter, e.g. "120/4000 (3.00%)".
func (s *Session) Progress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) progressLocked() string {
	if s.calc == nil {
		return ""
	}
	return s.calc.Format(s.book.LastReadIndex)
}

// PageCounter returns "Page i/n" in paginated mode.
func (s *Session) PageCounter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModePaginated {
		return ""
	}
	return fmt.Sprintf("Page %d/%d", s.page+1, len(s.pages.Pages))
}

// State reports the mode, current page and last read paragraph.
func (s *Session) State() (mode Mode, page, lastRead int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.book == nil {
		return s.mode, s.page, 0
	}
	return s.mode, s.page, s.book.LastReadIndex
}

// Book returns the open book, or nil.
func (s *Session) Book() *epub.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book
}

// Close unsubscribes from the bus, stops pending timers and releases the
// book.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown()
}
