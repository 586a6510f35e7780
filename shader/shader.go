// Package shader holds the mosaic effect program and its CPU reference.
//
// The program is written in WGSL (shaders/mosaic.wgsl) and consists of a
// pass-through vertex stage over a full-screen quad and a fragment stage
// that, per output pixel:
//
//  1. rotates the sampling coordinate about the center by Uniforms.Rotation
//  2. snaps it to the center of a PixelSize x PixelSize block
//  3. adds a 4x4 ordered dither offset scaled by DitherStrength
//  4. quantizes R, G and B onto ColorCount evenly spaced levels
//
// Alpha is passed through. When HasSource is false every pixel is
// transparent black.
//
// Shade and Apply evaluate the same function on the CPU and are used by the
// software backend and by tests as the reference for GPU output.
package shader

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// Source is the WGSL source of the effect program.
//
//go:embed shaders/mosaic.wgsl
var Source string

// Entry points in Source.
const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

// Quad geometry: two triangles covering clip space, one vec2<f32> per vertex.
const (
	QuadVertexCount  = 6
	QuadVertexStride = 8
)

var quadPositions = [QuadVertexCount * 2]float32{
	-1, -1,
	1, -1,
	-1, 1,
	-1, 1,
	1, -1,
	1, 1,
}

// QuadVertices returns the vertex buffer contents for the full-screen quad.
func QuadVertices() []byte {
	buf := make([]byte, QuadVertexCount*QuadVertexStride)
	for i, v := range quadPositions {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
