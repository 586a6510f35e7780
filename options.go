package mosaic

// LoopOption configures a Loop during creation.
//
// Example:
//
//	// Registered GPU backend, default parameters
//	loop := mosaic.NewLoop(sched, viewport)
//
//	// Explicit software backend and custom parameters
//	loop := mosaic.NewLoop(sched, viewport,
//	    mosaic.WithBackend(render.NewSoftwareBackend()),
//	    mosaic.WithParams(mosaic.Params{PixelSize: 8, ColorCount: 4}))
type LoopOption func(*loopOptions)

// loopOptions holds optional configuration for Loop creation.
type loopOptions struct {
	backend Backend
	params  Params
	onError func(error)
	onFrame func(Surface)
}

func defaultLoopOptions() loopOptions {
	return loopOptions{
		backend: nil, // resolved from the registry at setup time
		params:  DefaultParams(),
	}
}

// WithBackend sets the Backend used for setup instead of the registered one.
func WithBackend(b Backend) LoopOption {
	return func(o *loopOptions) {
		o.backend = b
	}
}

// WithParams sets the initial effect parameters. They are sanitized.
func WithParams(p Params) LoopOption {
	return func(o *loopOptions) {
		o.params = p.Sanitize()
	}
}

// WithErrorHandler sets a function called once for every failed setup.
// Per-frame failures are logged and counted, not reported here.
func WithErrorHandler(fn func(error)) LoopOption {
	return func(o *loopOptions) {
		o.onError = fn
	}
}

// WithFrameHandler sets a function called on the scheduler after every
// successfully drawn frame. The Surface is only valid during the call;
// take a Snapshot to keep the pixels.
func WithFrameHandler(fn func(Surface)) LoopOption {
	return func(o *loopOptions) {
		o.onFrame = fn
	}
}
