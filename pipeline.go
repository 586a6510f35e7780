package mosaic

import (
	"errors"
	"image"
	"sync"

	"github.com/gogpu/mosaic/shader"
)

// Source supplies the current Source Frame. Frame returns nil when no frame
// is available, in which case the surface renders fully transparent.
//
// The pipeline only reads the returned image. Video sources return whatever
// frame is current at call time; a frame that is one tick stale is fine.
type Source interface {
	Frame() image.Image
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func() image.Image

// Frame implements Source.
func (f SourceFunc) Frame() image.Image { return f() }

// Surface is read access to a rendered drawing surface.
type Surface interface {
	// Size returns the surface dimensions in device pixels.
	Size() (width, height int)

	// Snapshot returns a copy of the most recently drawn frame.
	Snapshot() (*image.NRGBA, error)
}

// Pipeline is one resource bundle: compiled program, source texture, quad
// geometry and drawing surface. A Pipeline is created by a Backend during
// Loop setup and released with Destroy at teardown.
type Pipeline interface {
	Surface

	// Resize sets the drawing surface size. Unchanged sizes are a no-op.
	Resize(width, height int) error

	// Upload copies frame into the source texture, reusing the texture
	// across calls. A nil frame unbinds the source.
	Upload(frame image.Image) error

	// Draw clears the surface to transparent and runs the effect over it.
	Draw(u shader.Uniforms) error

	// Destroy releases everything the Pipeline allocated. It is safe to
	// call more than once.
	Destroy()
}

// Backend creates Pipelines on a particular rendering context.
type Backend interface {
	// Name returns a short identifier such as "wgpu" or "software".
	Name() string

	// Init prepares the backend. Device acquisition may be deferred to
	// NewPipeline.
	Init() error

	// NewPipeline performs one-time setup for a fresh resource bundle.
	// Failures wrap ErrShaderCompile or ErrUnsupportedContext.
	NewPipeline() (Pipeline, error)

	// Close releases backend-wide resources such as the device.
	Close()
}

// DeviceProviderAware is implemented by backends that can render on a
// device owned by a host application. The provider is typically a
// gpucontext.DeviceProvider that also exposes HalDevice() and HalQueue().
type DeviceProviderAware interface {
	SetDeviceProvider(provider any) error
}

var (
	backendMu sync.RWMutex
	backend   Backend
)

// RegisterBackend installs b as the default Backend used by new Loops,
// closing any previously registered one. GPU packages call it from init:
//
//	func init() {
//	    mosaic.RegisterBackend(&gpuimpl.Backend{})
//	}
func RegisterBackend(b Backend) error {
	if b == nil {
		return errors.New("mosaic: backend must not be nil")
	}
	if err := b.Init(); err != nil {
		return err
	}
	propagateLogger(b, Logger())

	backendMu.Lock()
	old := backend
	backend = b
	backendMu.Unlock()
	if old != nil && old != b {
		old.Close()
	}
	return nil
}

// CurrentBackend returns the registered Backend, or nil if none.
func CurrentBackend() Backend {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backend
}

// CloseBackend closes and unregisters the current Backend. Call it before
// the host destroys a shared device.
func CloseBackend() {
	backendMu.Lock()
	b := backend
	backend = nil
	backendMu.Unlock()
	if b != nil {
		b.Close()
	}
}

// SetBackendDeviceProvider passes a host device provider to the registered
// backend. It is a no-op when no backend is registered or the backend
// cannot share devices.
func SetBackendDeviceProvider(provider any) error {
	b := CurrentBackend()
	if b == nil {
		return nil
	}
	if dpa, ok := b.(DeviceProviderAware); ok {
		return dpa.SetDeviceProvider(provider)
	}
	return nil
}
