package capture

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/gogpu/mosaic"
	"github.com/gogpu/mosaic/runloop"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// State is the lifecycle state of a Recorder.
type State int

const (
	Idle State = iota
	Recording
	Finalizing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Finalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Recorder runs capture sessions against a Surface. All methods must be
// called on the scheduler goroutine, like those of mosaic.Loop.
type Recorder struct {
	sched runloop.Scheduler
	enc   Encoder
	opts  options

	state   State
	gen     uint64 // incremented per session, stale callbacks compare against it
	session uuid.UUID
	surface mosaic.Surface

	start    time.Time
	duration time.Duration
	samples  int // sample ticks so far

	begun         bool
	width, height int
	chunks        [][]byte

	sample runloop.Handle
	stop   runloop.Handle
}

// NewRecorder creates an idle Recorder. A nil enc selects an AVIEncoder.
func NewRecorder(sched runloop.Scheduler, enc Encoder, opts ...Option) *Recorder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if enc == nil {
		enc = &AVIEncoder{}
	}
	return &Recorder{
		sched: sched,
		enc:   enc,
		opts:  o,
	}
}

// State returns the current state.
func (r *Recorder) State() State { return r.state }

// Session returns the identifier of the current or last session.
func (r *Recorder) Session() uuid.UUID { return r.session }

// Encoder returns the encoder sessions are written with.
func (r *Recorder) Encoder() Encoder { return r.enc }

// Start begins a session that samples surface for d (DefaultDuration if
// d is not positive). It fails with mosaic.ErrAlreadyRecording while
// another session is recording or finalizing; that session continues
// unaffected.
func (r *Recorder) Start(surface mosaic.Surface, d time.Duration) error {
	if r.state != Idle {
		return fmt.Errorf("%w: session %s is %s", mosaic.ErrAlreadyRecording, r.session, r.state)
	}
	if surface == nil {
		return errors.New("capture: nil surface")
	}
	if d <= 0 {
		d = DefaultDuration
	}

	r.gen++
	r.session = uuid.New()
	r.surface = surface
	r.start = r.sched.Now()
	r.duration = d
	r.samples = 0
	r.begun = false
	r.width, r.height = 0, 0
	r.chunks = nil
	if r.opts.stab != nil {
		r.opts.stab.Reset()
	}
	r.state = Recording

	gen := r.gen
	r.sample = r.sched.AfterFunc(0, func() { r.onSample(gen) })
	r.stop = r.sched.AfterFunc(d, func() { r.onStop(gen) })

	mosaic.Logger().Info("capture: recording started",
		"session", r.session, "duration", d, "fps", r.opts.fps, "format", r.enc.Extension())
	return nil
}

// Cancel abandons the current session without producing an artifact or
// calling the completion handler. It reports whether a session was active.
func (r *Recorder) Cancel() bool {
	if r.state == Idle {
		return false
	}
	r.cancelTimers()
	r.reset()
	mosaic.Logger().Info("capture: recording canceled", "session", r.session)
	return true
}

func (r *Recorder) onSample(gen uint64) {
	r.sample = nil
	if gen != r.gen || r.state != Recording {
		return
	}

	r.capture()
	if r.state != Recording {
		return // encoder failed
	}

	// Deadlines are computed from the start so sampling does not drift.
	r.samples++
	next := r.start.Add(r.offset(r.samples))
	if next.Before(r.start.Add(r.duration)) {
		r.sample = r.sched.AfterFunc(next.Sub(r.sched.Now()), func() { r.onSample(gen) })
	}
}

// capture encodes one frame of the surface. A surface with nothing to show
// yet contributes no chunk.
func (r *Recorder) capture() {
	img, err := r.surface.Snapshot()
	if err != nil || img == nil || img.Rect.Empty() {
		mosaic.Logger().Debug("capture: no frame", "session", r.session, "err", err)
		return
	}

	if !r.begun {
		w, h := r.targetSize(img.Rect.Dx(), img.Rect.Dy())
		if err := r.enc.Begin(w, h, r.opts.fps); err != nil {
			r.fail(err)
			return
		}
		r.begun, r.width, r.height = true, w, h
	}

	frame := scaleFrame(img, r.width, r.height)
	if r.opts.stab != nil {
		frame = r.opts.stab.Apply(frame)
	}
	chunk, err := r.enc.EncodeFrame(frame)
	if err != nil {
		r.fail(err)
		return
	}
	if len(chunk) > 0 {
		r.chunks = append(r.chunks, chunk)
		mosaic.Logger().Debug("capture: chunk", "session", r.session, "bytes", len(chunk))
	}
}

// offset returns the time of sample i relative to the start.
func (r *Recorder) offset(i int) time.Duration {
	return time.Duration(math.Round(float64(i) * float64(time.Second) / r.opts.fps))
}

func (r *Recorder) targetSize(w, h int) (int, int) {
	if r.opts.width <= 0 || r.opts.width == w {
		return w, h
	}
	tw := r.opts.width
	th := max(int(math.Round(float64(h)*float64(tw)/float64(w))), 1)
	return tw, th
}

// scaleFrame returns img at w x h with its origin at (0, 0). CatmullRom
// widens its kernel when shrinking, so strong downscales average the area
// they cover.
func scaleFrame(img *image.NRGBA, w, h int) *image.NRGBA {
	if img.Rect.Dx() == w && img.Rect.Dy() == h && img.Rect.Min == (image.Point{}) {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Rect, img, img.Rect, draw.Src, nil)
	return dst
}

func (r *Recorder) onStop(gen uint64) {
	r.stop = nil
	if gen != r.gen || r.state != Recording {
		return
	}
	if r.sample != nil {
		r.sample.Cancel()
		r.sample = nil
	}
	r.state = Finalizing
	r.sched.Post(func() { r.finalize(gen) })
}

func (r *Recorder) finalize(gen uint64) {
	if gen != r.gen || r.state != Finalizing {
		return
	}
	if !r.begun {
		w, h := r.surface.Size()
		w, h = r.targetSize(max(w, 0), max(h, 0))
		if err := r.enc.Begin(w, h, r.opts.fps); err != nil {
			r.fail(err)
			return
		}
		r.width, r.height = w, h
	}

	data, err := r.enc.Finalize(r.chunks, r.duration)
	if err != nil {
		r.fail(err)
		return
	}
	a := Artifact{
		Name:     ArtifactName(r.sched.Now(), r.enc.Extension()),
		MIMEType: r.enc.MIMEType(),
		Data:     data,
		Duration: r.duration,
		Frames:   len(r.chunks),
		Width:    r.width,
		Height:   r.height,
		Session:  r.session,
	}
	r.reset()
	mosaic.Logger().Info("capture: finalized",
		"session", a.Session, "name", a.Name, "frames", a.Frames, "bytes", len(a.Data))

	var sinkErr error
	if r.opts.sink != nil {
		if sinkErr = r.opts.sink.Deliver(a); sinkErr != nil {
			mosaic.Logger().Warn("capture: delivery failed", "name", a.Name, "err", sinkErr)
		}
	}
	if r.opts.onDone != nil {
		r.opts.onDone(a, sinkErr)
	}
}

// fail ends the session without an artifact.
func (r *Recorder) fail(cause error) {
	err := fmt.Errorf("%w: %w", mosaic.ErrCaptureEncode, cause)
	session := r.session
	r.cancelTimers()
	r.reset()
	mosaic.Logger().Error("capture: session failed", "session", session, "err", err)
	if r.opts.onDone != nil {
		r.opts.onDone(Artifact{Session: session}, err)
	}
}

func (r *Recorder) cancelTimers() {
	if r.sample != nil {
		r.sample.Cancel()
		r.sample = nil
	}
	if r.stop != nil {
		r.stop.Cancel()
		r.stop = nil
	}
}

// reset returns to Idle and invalidates pending callbacks.
func (r *Recorder) reset() {
	r.gen++
	r.state = Idle
	r.surface = nil
	r.chunks = nil
}
