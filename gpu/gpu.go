//go:build !nogpu

// Package gpu registers the wgpu rendering backend with mosaic.
//
// Import this package for its side effect to make new Loops render on the
// GPU. The device is acquired when the first loop starts; if no adapter is
// usable, Loop.Start fails with mosaic.ErrUnsupportedContext. There is no
// automatic fallback to the software backend.
//
// Usage:
//
//	import _ "github.com/gogpu/mosaic/gpu" // enable GPU rendering
package gpu

import (
	"github.com/gogpu/mosaic"
	gpuimpl "github.com/gogpu/mosaic/internal/gpu"
)

func init() {
	if err := mosaic.RegisterBackend(&gpuimpl.Backend{}); err != nil {
		mosaic.Logger().Warn("GPU backend not available", "err", err)
	}
}

// SetDeviceProvider makes the registered backend render on a GPU device
// owned by a host application (e.g. a gogpu App). This avoids creating a
// second GPU instance.
//
// The provider should be a gpucontext.DeviceProvider that also exposes
// HalDevice() and HalQueue(). Call it before starting any Loop; it fails
// while pipelines created on the previous device are alive.
func SetDeviceProvider(provider any) error {
	return mosaic.SetBackendDeviceProvider(provider)
}

// UseSPIRV switches the registered backend between loading the effect
// program as WGSL (the default) and as SPIR-V compiled by naga. It only
// affects pipelines created afterwards.
func UseSPIRV(enabled bool) {
	if b, ok := mosaic.CurrentBackend().(*gpuimpl.Backend); ok {
		b.SetSPIRV(enabled)
	}
}
