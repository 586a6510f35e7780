package shader

import (
	"image"
	"image/color"
	"math"
	"runtime"
	"sync"
)

// bayer4x4 is the 4x4 ordered dither matrix, row-major, values 0..15.
var bayer4x4 = [16]uint8{
	0, 8, 2, 10,
	12, 4, 14, 6,
	3, 11, 1, 9,
	15, 7, 13, 5,
}

// Bayer4 returns the 4x4 Bayer threshold for output pixel (x, y), in [0, 16).
func Bayer4(x, y int) int {
	return int(bayer4x4[(y&3)<<2|(x&3)])
}

// Threshold returns the centered dither threshold for (x, y), in (-0.5, 0.5).
func Threshold(x, y int) float64 {
	return (float64(Bayer4(x, y))+0.5)/16 - 0.5
}

// frame is the per-draw geometry derived from Uniforms.
type frame struct {
	w, h   float64 // output resolution
	rw, rh float64 // resolution of the rotated frame
	c, s   float64 // snapped cos/sin of the rotation
	size   float64 // block edge
	levels float64 // quantization levels minus one
	dither float64
}

func (u Uniforms) frame() frame {
	f := frame{
		w:      math.Max(float64(u.Width), 1),
		h:      math.Max(float64(u.Height), 1),
		c:      math.Round(math.Cos(float64(u.Rotation))),
		s:      math.Round(math.Sin(float64(u.Rotation))),
		size:   math.Max(float64(u.PixelSize), 1),
		levels: math.Max(math.Floor(float64(u.ColorCount)), 2) - 1,
		dither: float64(u.DitherStrength),
	}
	f.rw, f.rh = f.w, f.h
	if math.Abs(f.s) > 0.5 {
		f.rw, f.rh = f.h, f.w
	}
	return f
}

// rotated returns the pixel position of output pixel (x, y) in the rotated
// frame.
func (f *frame) rotated(x, y int) (px, py float64) {
	ux := (float64(x)+0.5)/f.w - 0.5
	uy := (float64(y)+0.5)/f.h - 0.5
	rx := f.c*ux - f.s*uy + 0.5
	ry := f.s*ux + f.c*uy + 0.5
	return rx * f.rw, ry * f.rh
}

// Block returns the index of the pixelation block that output pixel (x, y)
// falls in, measured in the rotated frame. Pixels with equal blocks sample
// the same source color.
func (u Uniforms) Block(x, y int) (bx, by int) {
	f := u.frame()
	px, py := f.rotated(x, y)
	return int(math.Floor(px / f.size)), int(math.Floor(py / f.size))
}

// SampleCoord returns the normalized source coordinate sampled for output
// pixel (x, y): the center of its block in the rotated frame.
func (u Uniforms) SampleCoord(x, y int) (sx, sy float64) {
	f := u.frame()
	return f.sample(x, y)
}

func (f *frame) sample(x, y int) (sx, sy float64) {
	px, py := f.rotated(x, y)
	bx := (math.Floor(px/f.size) + 0.5) * f.size
	by := (math.Floor(py/f.size) + 0.5) * f.size
	return bx / f.rw, by / f.rh
}

// Quantize maps channel value v in [0, 1] at output pixel (x, y) onto the
// quantization levels, after adding the dither offset.
func (u Uniforms) Quantize(v float64, x, y int) float64 {
	f := u.frame()
	return f.quantize(v, f.offset(x, y))
}

func (f *frame) offset(x, y int) float64 {
	if f.dither == 0 {
		return 0
	}
	return Threshold(x, y) * f.dither / f.levels
}

func (f *frame) quantize(v, offset float64) float64 {
	v = math.Max(0, math.Min(1, v+offset))
	return math.Floor(v*f.levels+0.5) / f.levels
}

// Shade evaluates the effect for output pixel (x, y). A nil src yields
// transparent black, as does u.HasSource == false.
func Shade(src *image.NRGBA, u Uniforms, x, y int) color.NRGBA {
	if src == nil || !u.HasSource {
		return color.NRGBA{}
	}
	f := u.frame()
	return f.shade(src, x, y)
}

func (f *frame) shade(src *image.NRGBA, x, y int) color.NRGBA {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == 0 || sh == 0 {
		return color.NRGBA{}
	}
	sx, sy := f.sample(x, y)
	tx := clampInt(int(math.Floor(sx*float64(sw))), 0, sw-1)
	ty := clampInt(int(math.Floor(sy*float64(sh))), 0, sh-1)
	i := src.PixOffset(b.Min.X+tx, b.Min.Y+ty)
	p := src.Pix[i : i+4 : i+4]

	off := f.offset(x, y)
	return color.NRGBA{
		R: toByte(f.quantize(float64(p[0])/255, off)),
		G: toByte(f.quantize(float64(p[1])/255, off)),
		B: toByte(f.quantize(float64(p[2])/255, off)),
		A: p[3],
	}
}

// Apply renders the effect over all of dst. Rows are split across
// GOMAXPROCS goroutines.
func Apply(dst, src *image.NRGBA, u Uniforms) {
	b := dst.Bounds()
	if src == nil || !u.HasSource {
		clear(dst.Pix)
		return
	}
	f := u.frame()

	workers := min(runtime.GOMAXPROCS(0), b.Dy())
	if workers < 1 {
		return
	}
	rows := (b.Dy() + workers - 1) / workers

	var wg sync.WaitGroup
	for y0 := 0; y0 < b.Dy(); y0 += rows {
		y1 := min(y0+rows, b.Dy())
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				for x := 0; x < b.Dx(); x++ {
					c := f.shade(src, x, y)
					i := dst.PixOffset(b.Min.X+x, b.Min.Y+y)
					dst.Pix[i+0] = c.R
					dst.Pix[i+1] = c.G
					dst.Pix[i+2] = c.B
					dst.Pix[i+3] = c.A
				}
			}
		}(y0, y1)
	}
	wg.Wait()
}

func toByte(v float64) uint8 {
	return uint8(math.Floor(v*255 + 0.5))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
