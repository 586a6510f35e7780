// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"image"
	"image/color"

	"github.com/gogpu/gputypes"
)

// PixmapTarget is a CPU-backed drawing surface using *image.NRGBA.
//
// Pixels are stored with straight (non-premultiplied) alpha, four bytes
// per pixel in R, G, B, A order.
//
// Example:
//
//	target := render.NewPixmapTarget(800, 600)
//	shader.Apply(target.Image(), src, u)
//	img := target.Image()
type PixmapTarget struct {
	img *image.NRGBA
}

// NewPixmapTarget creates a new CPU-backed target.
func NewPixmapTarget(width, height int) *PixmapTarget {
	return &PixmapTarget{
		img: image.NewNRGBA(image.Rect(0, 0, max(width, 0), max(height, 0))),
	}
}

// NewPixmapTargetFromImage wraps an existing *image.NRGBA as a target.
// The image is used directly without copying.
func NewPixmapTargetFromImage(img *image.NRGBA) *PixmapTarget {
	return &PixmapTarget{img: img}
}

// Width returns the target width in pixels.
func (t *PixmapTarget) Width() int {
	return t.img.Bounds().Dx()
}

// Height returns the target height in pixels.
func (t *PixmapTarget) Height() int {
	return t.img.Bounds().Dy()
}

// Format returns the pixel format (RGBA8).
func (t *PixmapTarget) Format() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// Pixels returns direct access to the pixel data.
func (t *PixmapTarget) Pixels() []byte {
	return t.img.Pix
}

// Stride returns the number of bytes per row.
func (t *PixmapTarget) Stride() int {
	return t.img.Stride
}

// Image returns the underlying *image.NRGBA.
// The returned image shares memory with the target.
func (t *PixmapTarget) Image() *image.NRGBA {
	return t.img
}

// Clear fills the entire target with the given color.
func (t *PixmapTarget) Clear(c color.Color) {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	b := t.img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := t.img.PixOffset(b.Min.X, y)
		row := t.img.Pix[i : i+b.Dx()*4]
		if n == (color.NRGBA{}) {
			clear(row)
			continue
		}
		for x := 0; x < len(row); x += 4 {
			row[x], row[x+1], row[x+2], row[x+3] = n.R, n.G, n.B, n.A
		}
	}
}

// Resize reallocates the target when the dimensions change. The contents
// are not preserved. It reports whether a new image was allocated.
func (t *PixmapTarget) Resize(width, height int) bool {
	if t.Width() == width && t.Height() == height {
		return false
	}
	t.img = image.NewNRGBA(image.Rect(0, 0, width, height))
	return true
}

// Snapshot returns a copy of the target with its origin at (0, 0).
func (t *PixmapTarget) Snapshot() *image.NRGBA {
	b := t.img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	row := b.Dx() * 4
	for y := range b.Dy() {
		i := t.img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+row], t.img.Pix[i:i+row])
	}
	return out
}
