package runloop

import (
	"context"
	"reflect"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) time.Time {
	c.t = c.t.Add(d)
	return c.t
}

func TestTickOrder(t *testing.T) {
	clk := newFakeClock()
	l := New(WithClock(clk.Now))

	var got []string
	l.RequestFrame(func(time.Time) { got = append(got, "frame") })
	l.AfterFunc(0, func() { got = append(got, "timer") })
	l.Post(func() { got = append(got, "post") })

	l.Tick(clk.Now())

	want := []string{"post", "timer", "frame"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dispatch order = %v, want %v", got, want)
	}
}

func TestFrameRequestedDuringFrameRunsNextTick(t *testing.T) {
	clk := newFakeClock()
	l := New(WithClock(clk.Now))

	count := 0
	var frame func(time.Time)
	frame = func(time.Time) {
		count++
		l.RequestFrame(frame)
	}
	l.RequestFrame(frame)

	for i := 1; i <= 3; i++ {
		l.Tick(clk.advance(16 * time.Millisecond))
		if count != i {
			t.Fatalf("after tick %d count = %d, want %d", i, count, i)
		}
	}
}

func TestCancelFrame(t *testing.T) {
	clk := newFakeClock()
	l := New(WithClock(clk.Now))

	ran := false
	h := l.RequestFrame(func(time.Time) { ran = true })
	if !h.Cancel() {
		t.Fatal("Cancel() = false for pending frame, want true")
	}
	if h.Cancel() {
		t.Error("second Cancel() = true, want false")
	}
	l.Tick(clk.Now())
	if ran {
		t.Error("canceled frame callback ran")
	}
}

func TestAfterFuncDeadlines(t *testing.T) {
	clk := newFakeClock()
	l := New(WithClock(clk.Now))

	var got []int
	l.AfterFunc(30*time.Millisecond, func() { got = append(got, 30) })
	l.AfterFunc(10*time.Millisecond, func() { got = append(got, 10) })
	l.AfterFunc(10*time.Millisecond, func() { got = append(got, 11) })

	l.Drain(clk.advance(5 * time.Millisecond))
	if len(got) != 0 {
		t.Fatalf("timers ran early: %v", got)
	}
	l.Drain(clk.advance(5 * time.Millisecond))
	if want := []int{10, 11}; !reflect.DeepEqual(got, want) {
		t.Fatalf("at 10ms got %v, want %v", got, want)
	}
	l.Drain(clk.advance(100 * time.Millisecond))
	if want := []int{10, 11, 30}; !reflect.DeepEqual(got, want) {
		t.Errorf("at 110ms got %v, want %v", got, want)
	}
}

func TestCancelTimerAfterDeadline(t *testing.T) {
	clk := newFakeClock()
	l := New(WithClock(clk.Now))

	ran := false
	h := l.AfterFunc(time.Millisecond, func() { ran = true })
	clk.advance(time.Second)
	h.Cancel()
	l.Drain(clk.Now())
	if ran {
		t.Error("timer canceled after its deadline still ran")
	}
}

func TestCancelReturnsFalseAfterRun(t *testing.T) {
	clk := newFakeClock()
	l := New(WithClock(clk.Now))

	h := l.AfterFunc(0, func() {})
	l.Drain(clk.Now())
	if h.Cancel() {
		t.Error("Cancel() after run = true, want false")
	}
}

func TestPending(t *testing.T) {
	clk := newFakeClock()
	l := New(WithClock(clk.Now))

	l.Post(func() {})
	l.RequestFrame(func(time.Time) {})
	l.AfterFunc(time.Hour, func() {})
	if got := l.Pending(); got != 3 {
		t.Errorf("Pending() = %d, want 3", got)
	}
	l.Tick(clk.Now())
	if got := l.Pending(); got != 1 {
		t.Errorf("Pending() after tick = %d, want 1", got)
	}
}

func TestRunDispatchesPostsAndFrames(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	posted := make(chan struct{})
	framed := make(chan struct{})
	l.Post(func() {
		close(posted)
		l.RequestFrame(func(time.Time) { close(framed) })
	})

	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx, 5*time.Millisecond) }()

	select {
	case <-framed:
	case <-ctx.Done():
		t.Fatal("frame callback did not run")
	}
	<-posted
	cancel()
	if err := <-errc; err != context.Canceled {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func TestRunFiresTimers(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	fired := make(chan time.Time, 1)
	start := time.Now()
	l.Post(func() {
		l.AfterFunc(20*time.Millisecond, func() { fired <- time.Now() })
	})
	go func() { _ = l.Run(ctx, time.Hour) }()

	select {
	case at := <-fired:
		if at.Sub(start) < 20*time.Millisecond {
			t.Errorf("timer fired after %v, want >= 20ms", at.Sub(start))
		}
	case <-ctx.Done():
		t.Fatal("timer did not fire")
	}
}
