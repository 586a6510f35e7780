package mosaic

import "errors"

// Setup errors. These abort Loop.Start and are reported once; retrying with
// the same inputs cannot help.
var (
	// ErrShaderCompile is returned when the vertex or fragment program fails
	// to compile or link. Rendering never proceeds with a partial program.
	ErrShaderCompile = errors.New("mosaic: shader compilation failed")

	// ErrUnsupportedContext is returned when no GPU rendering context can be
	// acquired. There is no automatic fallback path.
	ErrUnsupportedContext = errors.New("mosaic: rendering context unavailable")

	// ErrNoBackend is returned when no Backend is registered or configured.
	ErrNoBackend = errors.New("mosaic: no rendering backend registered")
)

// Source and capture errors.
var (
	// ErrSourceDecode is returned when a source cannot be decoded. The loop
	// keeps running and renders a transparent surface.
	ErrSourceDecode = errors.New("mosaic: source decode failed")

	// ErrAlreadyRecording is returned by capture when a session is already
	// in flight. The in-flight session is unaffected.
	ErrAlreadyRecording = errors.New("mosaic: capture already in progress")

	// ErrCaptureEncode is returned when the capture stream or encoder fails.
	// No artifact is produced.
	ErrCaptureEncode = errors.New("mosaic: capture encoding failed")
)

// Argument errors.
var (
	// ErrInvalidParams is returned by Params.Validate for out-of-range values.
	ErrInvalidParams = errors.New("mosaic: invalid effect parameters")

	// ErrInvalidDimensions is returned when a width or height is not positive.
	ErrInvalidDimensions = errors.New("mosaic: invalid dimensions")

	// ErrLoopRunning is returned by Start when the loop is already running.
	ErrLoopRunning = errors.New("mosaic: loop already running")

	// ErrLoopStopped is returned when reading the surface of a stopped loop.
	ErrLoopStopped = errors.New("mosaic: loop is stopped")
)
