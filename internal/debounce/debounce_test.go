package debounce

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu  sync.Mutex
	got []string
	ch  chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 16)}
}

func (r *recorder) fn(v string) {
	r.mu.Lock()
	r.got = append(r.got, v)
	r.mu.Unlock()
	r.ch <- v
}

func (r *recorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestPush_CoalescesBurst(t *testing.T) {
	r := newRecorder()
	d := New(40*time.Millisecond, r.fn)

	d.Push("g")
	d.Push("go")
	d.Push("goo")

	select {
	case v := <-r.ch:
		if v != "goo" {
			t.Errorf("delivered %q, want goo", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced delivery")
	}

	time.Sleep(80 * time.Millisecond)
	if n := len(r.calls()); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestFlush_DeliversImmediately(t *testing.T) {
	r := newRecorder()
	d := New(time.Hour, r.fn)

	d.Push("acme")
	if !d.Pending() {
		t.Fatal("expected pending value")
	}
	if !d.Flush() {
		t.Fatal("Flush should report a pending value")
	}
	if got := r.calls(); len(got) != 1 || got[0] != "acme" {
		t.Fatalf("calls = %v", got)
	}
	if d.Flush() {
		t.Error("second Flush should be a no-op")
	}
}

func TestFlush_PreventsLateTimerDelivery(t *testing.T) {
	r := newRecorder()
	d := New(20*time.Millisecond, r.fn)

	d.Push("x")
	d.Flush()
	time.Sleep(60 * time.Millisecond)

	if n := len(r.calls()); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestCancel(t *testing.T) {
	r := newRecorder()
	d := New(20*time.Millisecond, r.fn)

	d.Push("typo")
	d.Cancel()
	time.Sleep(60 * time.Millisecond)

	if n := len(r.calls()); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
	if d.Pending() {
		t.Error("nothing should be pending after Cancel")
	}
}

func TestNew_DefaultWindow(t *testing.T) {
	d := New[int](0, func(int) {})
	if d.window != DefaultWindow {
		t.Errorf("window = %v", d.window)
	}
}
