package shader

import (
	"encoding/binary"
	"math"
)

// UniformSize is the byte size of the Params uniform block.
//
// Layout (std140-compatible):
//
//	resolution      vec2<f32>  offset 0
//	pixel_size      f32        offset 8
//	color_count     f32        offset 12
//	dither_strength f32        offset 16
//	rotation        f32        offset 20
//	has_source      f32        offset 24
//	_pad            f32        offset 28
const UniformSize = 32

// Uniforms are the per-draw inputs of the effect program.
type Uniforms struct {
	Width, Height  float32 // output resolution in pixels
	PixelSize      float32
	ColorCount     float32
	DitherStrength float32
	Rotation       float32 // radians, a multiple of -pi/2
	HasSource      bool
}

// Bytes packs u into a new UniformSize-byte buffer.
func (u Uniforms) Bytes() []byte {
	buf := make([]byte, UniformSize)
	u.Put(buf)
	return buf
}

// Put packs u into buf, which must be at least UniformSize bytes.
func (u Uniforms) Put(buf []byte) {
	_ = buf[UniformSize-1]
	hasSource := float32(0)
	if u.HasSource {
		hasSource = 1
	}
	putF32(buf[0:], u.Width)
	putF32(buf[4:], u.Height)
	putF32(buf[8:], u.PixelSize)
	putF32(buf[12:], u.ColorCount)
	putF32(buf[16:], u.DitherStrength)
	putF32(buf[20:], u.Rotation)
	putF32(buf[24:], hasSource)
	putF32(buf[28:], 0)
}

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}
