package reader

import (
	"context"
	"errors"
	"testing"

	"github.com/yuanying/epub-reader/internal/settings"
)

func paginatedPrefs() settings.Settings {
	return settings.Default()
}

func continuousPrefs() settings.Settings {
	p := settings.Default()
	p.Paginated = false
	return p
}

func openSession(t *testing.T, prefs settings.Settings, lastRead int, opts ...Option) (*Session, *fakeStore, *recordingSurface) {
	t.Helper()
	store := &fakeStore{}
	surface := &recordingSurface{}
	opts = append([]Option{WithMeasurer(fixedMeasurer), WithViewport(400, 100)}, opts...)
	s := New(store, prefs, surface, opts...)
	if err := s.SetBook(context.Background(), newBook(t, lastRead)); err != nil {
		t.Fatalf("SetBook() failed: %v", err)
	}
	t.Cleanup(s.Close)
	return s, store, surface
}

// With a 100 high viewport the pages are:
// [cover] [0 1] [2 3] [4 5] [6 7] [8]

func TestSession_OpenPaginated(t *testing.T) {
	s, store, surface := openSession(t, paginatedPrefs(), 0)

	mode, page, last := s.State()
	if mode != ModePaginated || page != 0 || last != 0 {
		t.Fatalf("State() = %v, %d, %d; want paginated, 0, 0", mode, page, last)
	}
	if got := s.PageCounter(); got != "Page 1/6" {
		t.Errorf("PageCounter() = %q, want %q", got, "Page 1/6")
	}
	if s.Book().TotalIndex != 9 {
		t.Errorf("TotalIndex = %d, want 9", s.Book().TotalIndex)
	}
	if v := surface.last(); v.PageCount != 6 || len(v.Page.Units) != 1 {
		t.Errorf("view = %+v", v)
	}
	if len(store.writes()) != 0 {
		t.Error("opening a book should not persist")
	}
}

func TestSession_RestoresInitialPage(t *testing.T) {
	s, store, _ := openSession(t, paginatedPrefs(), 5)
	_, page, last := s.State()
	if page != 3 || last != 5 {
		t.Errorf("State() page=%d last=%d, want page 3 last 5", page, last)
	}
	if len(store.writes()) != 0 {
		t.Error("restoring should not persist")
	}
}

func TestSession_PageTurnsPersistOnChange(t *testing.T) {
	s, store, _ := openSession(t, paginatedPrefs(), 0)

	s.Next() // [0 1], index stays 0
	if n := len(store.writes()); n != 0 {
		t.Fatalf("writes = %d, want 0 when the index is unchanged", n)
	}
	s.Next() // [2 3]
	s.Prev() // [0 1]
	s.Prev() // [cover], image only

	got := store.writes()
	want := []savedPosition{{"book-test", 2}, {"book-test", 0}}
	if len(got) != len(want) {
		t.Fatalf("writes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("writes[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if _, page, last := s.State(); page != 0 || last != 0 {
		t.Errorf("page=%d last=%d, want 0 0", page, last)
	}
	if s.Book().UpdatedAt != 2 {
		t.Errorf("UpdatedAt = %d, want timestamp of last write", s.Book().UpdatedAt)
	}
}

func TestSession_Clamps(t *testing.T) {
	s, _, _ := openSession(t, paginatedPrefs(), 0)

	s.GoTo(99)
	if _, page, last := s.State(); page != 5 || last != 8 {
		t.Errorf("GoTo(99): page=%d last=%d, want 5 8", page, last)
	}
	s.Next()
	if _, page, _ := s.State(); page != 5 {
		t.Errorf("Next() past the end: page=%d, want 5", page)
	}
	s.GoTo(-3)
	if _, page, _ := s.State(); page != 0 {
		t.Errorf("GoTo(-3): page=%d, want 0", page)
	}
	s.Prev()
	if _, page, _ := s.State(); page != 0 {
		t.Errorf("Prev() before the start: page=%d, want 0", page)
	}
}

func TestSession_KeysAndSwipes(t *testing.T) {
	s, _, _ := openSession(t, paginatedPrefs(), 0)

	steps := []struct {
		name string
		do   func()
		want int
	}{
		{"ArrowRight", func() { s.Key("ArrowRight") }, 1},
		{"PageDown", func() { s.Key("PageDown") }, 2},
		{"ArrowUp", func() { s.Key("ArrowUp") }, 1},
		{"unknown key", func() { s.Key("Enter") }, 1},
		{"short swipe", func() { s.Swipe(100, 80) }, 1},
		{"left swipe", func() { s.Swipe(100, 50) }, 2},
		{"right swipe", func() { s.Swipe(50, 100) }, 1},
	}
	for _, st := range steps {
		st.do()
		if _, page, _ := s.State(); page != st.want {
			t.Errorf("%s: page=%d, want %d", st.name, page, st.want)
		}
	}
}

func TestSession_BusEvents(t *testing.T) {
	bus := NewBus()
	s, _, _ := openSession(t, paginatedPrefs(), 0, WithBus(bus))

	bus.Publish(KeyEvent{Key: "ArrowDown"})
	bus.Publish(SwipeEvent{StartX: 200, EndX: 100})
	if _, page, _ := s.State(); page != 2 {
		t.Errorf("page=%d after two events, want 2", page)
	}

	s.Close()
	if bus.Len() != 0 {
		t.Errorf("subscriptions after Close() = %d, want 0", bus.Len())
	}
	bus.Publish(KeyEvent{Key: "ArrowDown"})
	if mode, _, _ := s.State(); mode != ModeNone {
		t.Errorf("mode after Close() = %v", mode)
	}
}

func TestSession_ResizeKeepsParagraph(t *testing.T) {
	for _, h := range []float64{60, 130, 170, 250, 1000} {
		s, _, _ := openSession(t, paginatedPrefs(), 0)
		s.GoTo(3) // [4 5]
		_, _, tracked := s.State()
		if tracked != 4 {
			t.Fatalf("tracked = %d, want 4", tracked)
		}

		s.Bus().Publish(ResizeEvent{Height: h})
		if got := s.currentIndices(); !contains(got, tracked) {
			t.Errorf("height %v: current page %v does not hold paragraph %d", h, got, tracked)
		}
		if _, _, last := s.State(); last != tracked {
			t.Errorf("height %v: resize moved last read to %d", h, last)
		}
	}
}

func TestSession_ContinuousScrollDebounced(t *testing.T) {
	sched := &fakeScheduler{}
	s, store, _ := openSession(t, continuousPrefs(), 0, WithScheduler(sched))

	if mode, _, _ := s.State(); mode != ModeContinuous {
		t.Fatalf("mode = %v, want continuous", mode)
	}
	// Bottoms: cover 500, then paragraphs at 540, 580, 620, ...
	s.Scroll(100)
	s.Scroll(300)
	s.Bus().Publish(ScrollEvent{Offset: 585})
	if len(store.writes()) != 0 {
		t.Fatal("position must not be saved before scrolling settles")
	}
	if n := sched.fire(); n != 1 {
		t.Fatalf("settled callbacks = %d, want 1", n)
	}
	if sched.delays[0] != DefaultSettleDelay {
		t.Errorf("delay = %v, want %v", sched.delays[0], DefaultSettleDelay)
	}

	got := store.writes()
	if len(got) != 1 || got[0].index != 1 {
		t.Fatalf("writes = %v, want one write of index 1", got)
	}

	// Same settled position: no second write.
	s.Scroll(590)
	sched.fire()
	if len(store.writes()) != 1 {
		t.Errorf("writes = %d, want 1", len(store.writes()))
	}

	// Back above the first paragraph.
	s.Scroll(0)
	sched.fire()
	if _, _, last := s.State(); last != 0 {
		t.Errorf("last = %d, want 0", last)
	}
}

func TestSession_ContinuousRestoresFirstParagraph(t *testing.T) {
	// Paragraph 1 starts below the 500 high cover and paragraph 0.
	_, _, surface := openSession(t, continuousPrefs(), 1)
	if got := surface.last().Offset; got != 540 {
		t.Errorf("Offset = %v, want 540", got)
	}
}

func TestSession_GoToParagraph(t *testing.T) {
	s, _, _ := openSession(t, paginatedPrefs(), 0)
	s.GoToParagraph(5)
	if _, page, last := s.State(); page != 3 || last != 4 {
		t.Errorf("State() = page %d, last %d; want page 3, last 4", page, last)
	}

	c, _, surface := openSession(t, continuousPrefs(), 0)
	c.GoToParagraph(3)
	if got := surface.last().Offset; got != 620 {
		t.Errorf("Offset = %v, want 620", got)
	}
	c.GoToParagraph(99)
	if got := surface.last().Offset; got != 620 {
		t.Errorf("unknown paragraph moved the offset to %v", got)
	}
}

func TestSession_ScrollIgnoredWhenPaginated(t *testing.T) {
	sched := &fakeScheduler{}
	s, _, _ := openSession(t, paginatedPrefs(), 0, WithScheduler(sched))
	s.Scroll(1000)
	if n := sched.fire(); n != 0 {
		t.Errorf("timers = %d, want 0", n)
	}
}

func TestSession_CloseStopsPendingSettle(t *testing.T) {
	sched := &fakeScheduler{}
	s, store, _ := openSession(t, continuousPrefs(), 0, WithScheduler(sched))
	s.Scroll(700)
	s.Close()
	sched.fire()
	if len(store.writes()) != 0 {
		t.Error("no write expected after Close()")
	}
}

func TestSession_SetBookReleasesPrevious(t *testing.T) {
	s, _, _ := openSession(t, paginatedPrefs(), 0)
	prev := s.Book()

	if err := s.SetBook(context.Background(), newBook(t, 0)); err != nil {
		t.Fatalf("SetBook() failed: %v", err)
	}
	if prev.Loaded() {
		t.Error("previous book should be released")
	}
	if s.Bus().Len() != 1 {
		t.Errorf("subscriptions = %d, want 1", s.Bus().Len())
	}
}

func TestSession_PersistFailureKeepsPosition(t *testing.T) {
	s, store, _ := openSession(t, paginatedPrefs(), 0)
	store.err = errors.New("disk full")

	s.GoTo(2)
	if _, _, last := s.State(); last != 2 {
		t.Errorf("last = %d, want 2", last)
	}
}

func TestSession_Progress(t *testing.T) {
	s, _, _ := openSession(t, paginatedPrefs(), 0)
	// Every paragraph "第N段落" has 3 readable runes plus the digit.
	if got := s.Progress(); got != "4/36 (11.11%)" {
		t.Errorf("Progress() = %q", got)
	}
	s.GoTo(5)
	if got := s.Progress(); got != "36/36 (100.00%)" {
		t.Errorf("Progress() = %q", got)
	}
}

func TestSession_SwitchMode(t *testing.T) {
	s, _, _ := openSession(t, paginatedPrefs(), 0)
	s.GoTo(3)
	if err := s.SetPaginated(false); err != nil {
		t.Fatalf("SetPaginated() failed: %v", err)
	}
	mode, _, last := s.State()
	if mode != ModeContinuous || last != 4 {
		t.Errorf("State() = %v, last %d", mode, last)
	}
	if s.PageCounter() != "" {
		t.Error("PageCounter() should be empty in continuous mode")
	}
}

func (s *Session) currentIndices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages.Pages[s.page].Indices()
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
