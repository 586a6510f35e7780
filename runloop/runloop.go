// Package runloop provides a single-goroutine cooperative scheduler.
//
// All callbacks scheduled on a Loop run one at a time on whichever
// goroutine calls Tick (a host display-frame callback) or Run (a ticker
// standing in for the display refresh). State owned by those callbacks
// needs no locking.
//
// Three kinds of work are supported:
//   - Post: run as soon as possible, before the next frame
//   - RequestFrame: run once at the next display frame
//   - AfterFunc: run once when the wall clock reaches a deadline
//
// RequestFrame and AfterFunc return a Handle. A canceled handle never runs,
// even if its deadline has already passed.
package runloop

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Handle is a pending callback that can be canceled.
type Handle interface {
	// Cancel prevents the callback from running. It reports whether the
	// callback was still pending.
	Cancel() bool
}

// Scheduler is the cooperative scheduling contract used by the render loop
// and the capture recorder.
type Scheduler interface {
	Post(fn func())
	RequestFrame(fn func(now time.Time)) Handle
	AfterFunc(d time.Duration, fn func()) Handle
	Now() time.Time
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces time.Now as the Loop's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// Loop is the default Scheduler implementation.
type Loop struct {
	now func() time.Time

	mu     sync.Mutex
	tasks  []func()
	frames []*task
	timers timerQueue
	seq    uint64

	wake chan struct{}
}

var _ Scheduler = (*Loop)(nil)

// New creates an idle Loop. Nothing runs until Tick or Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		now:  time.Now,
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the Loop's current time.
func (l *Loop) Now() time.Time { return l.now() }

// Post queues fn to run on the loop before the next frame callbacks.
// Post is safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.signal()
}

// RequestFrame schedules fn for the next display frame. Callbacks requested
// while a frame is being dispatched run on the following frame.
func (l *Loop) RequestFrame(fn func(now time.Time)) Handle {
	t := &task{loop: l, frame: fn}
	l.mu.Lock()
	l.frames = append(l.frames, t)
	l.mu.Unlock()
	return t
}

// AfterFunc schedules fn to run once d has elapsed on the Loop's clock.
// A non-positive d runs fn at the next dispatch.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Handle {
	return l.at(l.now().Add(d), fn)
}

func (l *Loop) at(when time.Time, fn func()) Handle {
	l.mu.Lock()
	l.seq++
	t := &task{loop: l, fn: fn, when: when, seq: l.seq}
	heap.Push(&l.timers, t)
	l.mu.Unlock()
	l.signal()
	return t
}

// Tick dispatches one display frame: posted tasks first, then timers due
// at now, then the frame callbacks requested before this call.
func (l *Loop) Tick(now time.Time) {
	l.dispatch(now)

	l.mu.Lock()
	frames := l.frames
	l.frames = nil
	l.mu.Unlock()

	for _, t := range frames {
		if t.claim() {
			t.frame(now)
		}
	}
}

// Drain runs posted tasks and timers due at now without dispatching a
// display frame.
func (l *Loop) Drain(now time.Time) {
	l.dispatch(now)
}

func (l *Loop) dispatch(now time.Time) {
	l.mu.Lock()
	tasks := l.tasks
	l.tasks = nil
	var due []*task
	for len(l.timers) > 0 && !l.timers[0].when.After(now) {
		due = append(due, heap.Pop(&l.timers).(*task))
	}
	l.mu.Unlock()

	for _, fn := range tasks {
		fn()
	}
	for _, t := range due {
		if t.claim() {
			t.fn()
		}
	}
}

// Run drives the Loop until ctx is done: a frame every interval, with
// posted tasks and timers dispatched as soon as they become runnable.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second / 60
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		timer.Reset(l.untilNextTimer())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Tick(l.now())
		case <-l.wake:
			l.Drain(l.now())
		case <-timer.C:
			l.Drain(l.now())
		}
	}
}

// Pending reports the number of queued tasks, timers and frame callbacks,
// canceled ones included until they are dispatched.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks) + len(l.timers) + len(l.frames)
}

func (l *Loop) untilNextTimer() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.timers) == 0 {
		return time.Hour
	}
	return max(l.timers[0].when.Sub(l.now()), 0)
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// task is a scheduled callback. Exactly one of fn and frame is set.
type task struct {
	loop  *Loop
	fn    func()
	frame func(time.Time)
	when  time.Time
	seq   uint64
	index int

	// done is set under loop.mu once the task ran or was canceled.
	done bool
}

func (t *task) Cancel() bool {
	t.loop.mu.Lock()
	defer t.loop.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// claim marks the task as running. It returns false if it was canceled.
func (t *task) claim() bool {
	t.loop.mu.Lock()
	defer t.loop.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// timerQueue is a min-heap of tasks ordered by deadline, then by
// scheduling order.
type timerQueue []*task

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].when.Equal(q[j].when) {
		return q[i].seq < q[j].seq
	}
	return q[i].when.Before(q[j].when)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}
