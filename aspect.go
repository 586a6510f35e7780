package mosaic

import "math"

// DisplayAspect returns the width/height ratio of the container that hosts
// the drawing surface for a source of the given intrinsic size. Odd
// rotations swap width and height. An unknown source size yields 1.
func DisplayAspect(width, height, rotation int) float64 {
	if width <= 0 || height <= 0 {
		return 1
	}
	base := float64(width) / float64(height)
	if wrapRotation(rotation)%2 != 0 {
		return 1 / base
	}
	return base
}

// FitContainer returns the largest width and height with the given aspect
// ratio that fit inside availW x availH.
func FitContainer(availW, availH, aspect float64) (w, h float64) {
	if availW <= 0 || availH <= 0 {
		return 0, 0
	}
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = 1
	}
	w, h = availW, availW/aspect
	if h > availH {
		w, h = availH*aspect, availH
	}
	return w, h
}

// Viewport reports the on-screen size of the drawing surface in device
// pixels. The Render Loop queries it every tick.
type Viewport interface {
	PixelSize() (width, height int)
}

// FixedViewport is a Viewport of constant logical size.
type FixedViewport struct {
	Width, Height float64
	// Scale is the device pixel ratio; 0 means 1.
	Scale float64
}

// PixelSize implements Viewport.
func (v FixedViewport) PixelSize() (int, int) {
	return devicePixels(v.Width, v.Height, v.Scale)
}

// FitViewport sizes the surface to the largest rectangle of the current
// display aspect that fits the available area, then applies the device
// pixel ratio. Aspect is queried each tick so rotation and source changes
// resize the surface on the next frame.
type FitViewport struct {
	MaxWidth, MaxHeight float64
	// Scale is the device pixel ratio; 0 means 1.
	Scale float64
	// Aspect returns the current display aspect, typically Loop.DisplayAspect.
	Aspect func() float64
}

// PixelSize implements Viewport.
func (v FitViewport) PixelSize() (int, int) {
	aspect := 1.0
	if v.Aspect != nil {
		aspect = v.Aspect()
	}
	w, h := FitContainer(v.MaxWidth, v.MaxHeight, aspect)
	return devicePixels(w, h, v.Scale)
}

// devicePixels converts a logical size into whole device pixels, never
// returning less than 1x1.
func devicePixels(w, h, scale float64) (int, int) {
	if scale <= 0 {
		scale = 1
	}
	pw := int(math.Round(w * scale))
	ph := int(math.Round(h * scale))
	return max(pw, 1), max(ph, 1)
}
