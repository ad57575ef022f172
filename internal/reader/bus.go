package reader

import "sync"

// Event is an input delivered to a session through a Bus.
type Event interface{ event() }

// ScrollEvent reports the continuous-mode scroll offset.
type ScrollEvent struct{ Offset float64 }

// KeyEvent is a key press, named like the DOM key values
// ("ArrowDown", "PageUp", ...).
type KeyEvent struct{ Key string }

// SwipeEvent is a horizontal touch gesture.
type SwipeEvent struct{ StartX, EndX float64 }

// ResizeEvent reports a new viewport height.
type ResizeEvent struct{ Height float64 }

func (ScrollEvent) event() {}
func (KeyEvent) event()    {}
func (SwipeEvent) event()  {}
func (ResizeEvent) event() {}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func(Event)
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]func(Event))}
}

// Subscribe registers fn until the returned subscription is closed.
func (b *Bus) Subscribe(fn func(Event)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[b.nextID] = fn
	return &Subscription{bus: b, id: b.nextID}
}

// Publish delivers e to every current subscriber, in no particular order.
// Handlers run on the caller's goroutine outside the bus lock.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Subscription is a handle on a Bus registration.
type Subscription struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

// Close removes the registration. It is safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
	})
}
