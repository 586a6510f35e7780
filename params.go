package mosaic

import (
	"fmt"
	"math"

	"github.com/gogpu/mosaic/shader"
)

// Parameter bounds exposed to controls.
const (
	MinPixelSize  = 1.0
	MaxPixelSize  = 32.0
	MinColorCount = 2.0
	MaxColorCount = 64.0
	// DitherStep is the increment used by stepped dither controls.
	DitherStep = 0.05
	// RotationSteps is the number of distinct quarter-turn positions.
	RotationSteps = 4
)

// Params is the set of effect parameters read by the Render Loop each tick.
// All four are independent and take effect on the next rendered frame.
type Params struct {
	// PixelSize is the block edge in output pixels. Integer-stepped in
	// controls, fractional values are honored.
	PixelSize float64

	// ColorCount is the number of levels per channel. The shader uses the
	// integer part.
	ColorCount float64

	// DitherStrength scales the ordered dither offset, 0 disables it.
	DitherStrength float64

	// Rotation is the number of clockwise quarter turns, 0..3.
	Rotation int
}

// DefaultParams returns the parameters a fresh session starts with.
func DefaultParams() Params {
	return Params{
		PixelSize:      6,
		ColorCount:     16,
		DitherStrength: 0.15,
		Rotation:       0,
	}
}

// Sanitize returns p clamped into the supported ranges. NaN fields are
// replaced with their defaults and rotation wraps modulo 4, so the result
// can never produce an undefined shader result.
func (p Params) Sanitize() Params {
	d := DefaultParams()
	p.PixelSize = clampOr(p.PixelSize, MinPixelSize, MaxPixelSize, d.PixelSize)
	p.ColorCount = clampOr(p.ColorCount, MinColorCount, MaxColorCount, d.ColorCount)
	p.DitherStrength = clampOr(p.DitherStrength, 0, 1, d.DitherStrength)
	p.Rotation = wrapRotation(p.Rotation)
	return p
}

// Validate reports whether p is within the supported ranges without
// modifying it. Rotation is validated as-is, not wrapped.
func (p Params) Validate() error {
	switch {
	case math.IsNaN(p.PixelSize) || p.PixelSize < MinPixelSize || p.PixelSize > MaxPixelSize:
		return fmt.Errorf("%w: pixel size %v outside [%v, %v]", ErrInvalidParams, p.PixelSize, MinPixelSize, MaxPixelSize)
	case math.IsNaN(p.ColorCount) || p.ColorCount < MinColorCount || p.ColorCount > MaxColorCount:
		return fmt.Errorf("%w: color count %v outside [%v, %v]", ErrInvalidParams, p.ColorCount, MinColorCount, MaxColorCount)
	case math.IsNaN(p.DitherStrength) || p.DitherStrength < 0 || p.DitherStrength > 1:
		return fmt.Errorf("%w: dither strength %v outside [0, 1]", ErrInvalidParams, p.DitherStrength)
	case p.Rotation < 0 || p.Rotation >= RotationSteps:
		return fmt.Errorf("%w: rotation %d outside [0, %d]", ErrInvalidParams, p.Rotation, RotationSteps-1)
	}
	return nil
}

// Rotate returns p advanced by one clockwise quarter turn, wrapping to 0
// after the fourth.
func (p Params) Rotate() Params {
	p.Rotation = wrapRotation(p.Rotation + 1)
	return p
}

// RotationAngle returns the sampling rotation in radians, -pi/2 per step.
//
// The negative sign was chosen so a step reads as a clockwise turn on
// screen; the direction has only been checked against the reference
// evaluator, not against user expectation on every backend.
func (p Params) RotationAngle() float64 {
	return float64(wrapRotation(p.Rotation)) * (-math.Pi / 2)
}

// Sideways reports whether the rotation swaps the displayed width and height.
func (p Params) Sideways() bool {
	return wrapRotation(p.Rotation)%2 != 0
}

// Uniforms returns the shader inputs for drawing p onto a width x height
// surface. p is sanitized first.
func (p Params) Uniforms(width, height int, hasSource bool) shader.Uniforms {
	p = p.Sanitize()
	return shader.Uniforms{
		Width:          float32(width),
		Height:         float32(height),
		PixelSize:      float32(p.PixelSize),
		ColorCount:     float32(p.ColorCount),
		DitherStrength: float32(p.DitherStrength),
		Rotation:       float32(p.RotationAngle()),
		HasSource:      hasSource,
	}
}

func clampOr(v, lo, hi, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	return math.Max(lo, math.Min(hi, v))
}

func wrapRotation(r int) int {
	r %= RotationSteps
	if r < 0 {
		r += RotationSteps
	}
	return r
}
