package reader

import "testing"

func TestBus_SubscribeAndClose(t *testing.T) {
	b := NewBus()
	var got []Event
	sub := b.Subscribe(func(e Event) { got = append(got, e) })

	b.Publish(KeyEvent{Key: "ArrowDown"})
	sub.Close()
	sub.Close()
	b.Publish(KeyEvent{Key: "ArrowUp"})

	if len(got) != 1 {
		t.Fatalf("events = %v, want 1", got)
	}
	if k, ok := got[0].(KeyEvent); !ok || k.Key != "ArrowDown" {
		t.Errorf("event = %#v", got[0])
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}

	var nilSub *Subscription
	nilSub.Close()
}

func TestDebouncer_LastCallWins(t *testing.T) {
	sched := &fakeScheduler{}
	d := &debouncer{sched: sched, delay: DefaultSettleDelay}
	var calls []int
	for i := 0; i < 3; i++ {
		d.trigger(func() { calls = append(calls, i) })
	}
	sched.fire()
	if len(calls) != 1 || calls[0] != 2 {
		t.Errorf("calls = %v, want [2]", calls)
	}

	d.trigger(func() { calls = append(calls, 9) })
	d.stop()
	if n := sched.fire(); n != 0 {
		t.Errorf("fired %d after stop(), want 0", n)
	}
}
