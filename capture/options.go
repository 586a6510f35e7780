package capture

import "time"

// Capture defaults.
const (
	// DefaultFPS is the sampling rate of a capture session.
	DefaultFPS = 30.0

	// DefaultDuration is the length of a one-shot export.
	DefaultDuration = 3000 * time.Millisecond
)

// Option configures a Recorder during creation.
type Option func(*options)

type options struct {
	fps    float64
	width  int
	sink   Sink
	onDone func(Artifact, error)
	stab   *Stabilizer
}

func defaultOptions() options {
	return options{fps: DefaultFPS}
}

// WithFPS sets the sampling rate. Non-positive values are ignored.
func WithFPS(fps float64) Option {
	return func(o *options) {
		if fps > 0 {
			o.fps = fps
		}
	}
}

// WithWidth scales captured frames to the given width, preserving the
// aspect ratio. Zero keeps the surface size.
func WithWidth(width int) Option {
	return func(o *options) {
		o.width = max(width, 0)
	}
}

// WithStabilization quantizes every sampled frame to a palette of colors
// entries and blends it with the previous output at weight alpha before
// encoding (see Stabilizer). An alpha of 0 or less disables it.
func WithStabilization(colors int, alpha float64) Option {
	return func(o *options) {
		if alpha <= 0 {
			o.stab = nil
			return
		}
		o.stab = &Stabilizer{Colors: colors, Alpha: min(alpha, 1)}
	}
}

// WithSink sets where finished artifacts are delivered.
func WithSink(s Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithCompletion sets a function called on the scheduler when a session
// ends. err is non-nil when encoding failed (no artifact) or when the
// sink rejected the artifact.
func WithCompletion(fn func(Artifact, error)) Option {
	return func(o *options) {
		o.onDone = fn
	}
}
