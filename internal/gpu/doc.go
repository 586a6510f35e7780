//go:build !nogpu

// Package gpu implements the mosaic rendering backend on gogpu/wgpu.
//
// Each EffectPipeline owns one resource bundle on a hal.Device:
//
//   - the effect program (WGSL, or SPIR-V compiled by naga)
//   - a bind group with the Params uniform block and the source texture
//   - a six-vertex quad covering clip space
//   - an RGBA8 render target with a 256-byte row-aligned readback buffer
//
// Frames are rendered offscreen, read back and kept in a CPU pixmap. The
// source texture is reused across uploads and reallocated only when the
// frame size changes; with no frame a 1x1 transparent placeholder is bound.
//
// The device is acquired through the Vulkan HAL on first use, or shared
// with a host application through Backend.SetDeviceProvider.
//
// Import github.com/gogpu/mosaic/gpu to register the backend.
package gpu

import "errors"

var errDestroyed = errors.New("gpu: pipeline used after Destroy")
