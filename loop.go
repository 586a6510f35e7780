package mosaic

import (
	"fmt"
	"image"
	"time"

	"github.com/gogpu/mosaic/runloop"
)

// LoopState is the lifecycle state of a Loop.
type LoopState int

const (
	// Stopped: no resources are held and no frame is scheduled.
	Stopped LoopState = iota
	// Running: a Pipeline is set up and a frame is always pending.
	Running
)

func (s LoopState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("LoopState(%d)", int(s))
	}
}

// LoopStats counts loop activity since creation.
type LoopStats struct {
	Frames  uint64 // frames drawn
	Skipped uint64 // ticks abandoned after a resize, upload or draw error
	Setups  uint64 // successful setups
}

// Sizer is implemented by sources that know their intrinsic size before
// the first frame is available.
type Sizer interface {
	Size() (width, height int)
}

// Loop is the Render Loop. It owns one Pipeline (the current bundle) while
// running and redraws it once per display frame:
//
//  1. resize the surface to the viewport
//  2. upload the current source frame
//  3. draw with uniforms from the current parameters
//  4. request the next frame
//
// Changing the source or any parameter tears the bundle down and sets up a
// fresh one. Stop cancels the pending frame before releasing the bundle, so
// no tick ever touches released resources.
//
// Loop is not safe for concurrent use. All methods must be called from the
// scheduler it was created with (inside a posted task, timer or frame
// callback, or before the scheduler starts running).
type Loop struct {
	sched    runloop.Scheduler
	viewport Viewport
	opts     loopOptions

	params     Params
	source     Source
	sourceSize image.Point

	state   LoopState
	bundle  Pipeline
	pending runloop.Handle
	stats   LoopStats
}

// NewLoop creates a stopped Loop that schedules its frames on sched and
// sizes its surface from viewport.
func NewLoop(sched runloop.Scheduler, viewport Viewport, opts ...LoopOption) *Loop {
	o := defaultLoopOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Loop{
		sched:    sched,
		viewport: viewport,
		opts:     o,
		params:   o.params,
	}
}

// Start sets up a Pipeline and begins drawing. Setup failures are returned,
// reported once to the error handler, and leave the loop stopped.
func (l *Loop) Start() error {
	if l.state == Running {
		return ErrLoopRunning
	}
	return l.setup()
}

// Stop cancels the pending frame and releases the Pipeline. Stopping a
// stopped loop is a no-op.
func (l *Loop) Stop() {
	if l.state == Stopped && l.bundle == nil {
		return
	}
	l.teardown()
	Logger().Info("mosaic: loop stopped", "frames", l.stats.Frames, "skipped", l.stats.Skipped)
}

// State returns the current lifecycle state.
func (l *Loop) State() LoopState { return l.state }

// Stats returns activity counters.
func (l *Loop) Stats() LoopStats { return l.stats }

// Params returns the current effect parameters.
func (l *Loop) Params() Params { return l.params }

// SetParams replaces the effect parameters. They are sanitized, and if
// they differ from the current ones a running loop is re-initialized.
func (l *Loop) SetParams(p Params) {
	p = p.Sanitize()
	if p == l.params {
		return
	}
	l.params = p
	l.restart()
}

// Rotate advances the rotation by one clockwise quarter turn.
func (l *Loop) Rotate() {
	l.SetParams(l.params.Rotate())
}

// SetSource replaces the source and resets rotation to 0. A nil source
// renders a transparent surface. A running loop is re-initialized.
func (l *Loop) SetSource(src Source) {
	l.source = src
	l.params.Rotation = 0
	l.sourceSize = image.Point{}
	if s, ok := src.(Sizer); ok {
		w, h := s.Size()
		l.sourceSize = image.Pt(w, h)
	}
	l.restart()
}

// DisplayAspect returns the aspect ratio the hosting container should have
// for the current source and rotation.
func (l *Loop) DisplayAspect() float64 {
	return DisplayAspect(l.sourceSize.X, l.sourceSize.Y, l.params.Rotation)
}

// Surface returns the drawing surface. It follows re-initializations, so
// it stays valid across parameter and source changes.
func (l *Loop) Surface() Surface {
	return loopSurface{l}
}

func (l *Loop) backend() Backend {
	if l.opts.backend != nil {
		return l.opts.backend
	}
	return CurrentBackend()
}

func (l *Loop) setup() error {
	b := l.backend()
	if b == nil {
		return l.fail(ErrNoBackend)
	}
	p, err := b.NewPipeline()
	if err != nil {
		return l.fail(fmt.Errorf("mosaic: %s setup: %w", b.Name(), err))
	}

	l.bundle = p
	l.state = Running
	l.stats.Setups++
	l.schedule()
	Logger().Info("mosaic: loop started", "backend", b.Name(), "params", l.params)
	return nil
}

// teardown releases exactly what the last setup allocated.
func (l *Loop) teardown() {
	if l.pending != nil {
		l.pending.Cancel()
		l.pending = nil
	}
	if l.bundle != nil {
		l.bundle.Destroy()
		l.bundle = nil
	}
	l.state = Stopped
}

func (l *Loop) restart() {
	if l.state != Running {
		return
	}
	l.teardown()
	_ = l.setup()
}

func (l *Loop) fail(err error) error {
	Logger().Error("mosaic: setup failed", "err", err)
	if l.opts.onError != nil {
		l.opts.onError(err)
	}
	return err
}

func (l *Loop) schedule() {
	if l.state != Running || l.pending != nil {
		return
	}
	l.pending = l.sched.RequestFrame(l.tick)
}

func (l *Loop) tick(time.Time) {
	l.pending = nil
	if l.state != Running || l.bundle == nil {
		return
	}
	defer l.schedule()

	params := l.params
	bundle := l.bundle

	// The frame is read first so the viewport sees its aspect.
	var frame image.Image
	if l.source != nil {
		frame = l.source.Frame()
	}
	if frame != nil {
		l.sourceSize = frame.Bounds().Size()
	}

	w, h := l.viewport.PixelSize()
	if err := bundle.Resize(w, h); err != nil {
		l.skip("resize", err)
		return
	}
	if err := bundle.Upload(frame); err != nil {
		l.skip("upload", err)
		return
	}
	if err := bundle.Draw(params.Uniforms(w, h, frame != nil)); err != nil {
		l.skip("draw", err)
		return
	}
	l.stats.Frames++

	if l.opts.onFrame != nil {
		l.opts.onFrame(bundle)
	}
}

func (l *Loop) skip(stage string, err error) {
	l.stats.Skipped++
	Logger().Warn("mosaic: frame skipped", "stage", stage, "err", err)
}

// loopSurface reads whichever bundle is current.
type loopSurface struct{ l *Loop }

func (s loopSurface) Size() (int, int) {
	if s.l.bundle == nil {
		return 0, 0
	}
	return s.l.bundle.Size()
}

func (s loopSurface) Snapshot() (*image.NRGBA, error) {
	if s.l.bundle == nil {
		return nil, ErrLoopStopped
	}
	return s.l.bundle.Snapshot()
}
