package capture

import (
	"image"
	"math"

	"github.com/gogpu/mosaic/palette"
	"golang.org/x/image/draw"
)

// DefaultStabilizeColors is the per-frame palette size of a Stabilizer
// whose Colors is zero.
const DefaultStabilizeColors = 8

// Stabilizer reduces palette flicker in exported clips. Each frame is
// quantized to its own k-means palette, then blended with the previous
// output:
//
//	out = (1-Alpha)*quantized + Alpha*previous
//
// Motion is not compensated; the previous output is blended in place.
// A Stabilizer keeps state between frames and is not safe for concurrent
// use.
type Stabilizer struct {
	// Colors is the palette size per frame, 2-256. Zero means
	// DefaultStabilizeColors.
	Colors int

	// Alpha is the weight of the previous output, in [0, 1).
	Alpha float64

	// Seed makes palette extraction reproducible.
	Seed uint64

	prev *image.NRGBA
}

// Reset forgets the previous output.
func (s *Stabilizer) Reset() { s.prev = nil }

// Apply returns the stabilized version of img. img is not modified. The
// first frame, and any frame whose size differs from the previous one, is
// only quantized.
func (s *Stabilizer) Apply(img *image.NRGBA) *image.NRGBA {
	if img.Rect.Empty() {
		return img
	}
	out := s.quantize(img)
	if p := s.prev; p != nil && p.Rect == out.Rect {
		a := math.Min(math.Max(s.Alpha, 0), 1)
		for i, v := range out.Pix {
			out.Pix[i] = uint8(math.Round((1-a)*float64(v) + a*float64(p.Pix[i])))
		}
	}
	s.prev = out
	return out
}

func (s *Stabilizer) quantize(img *image.NRGBA) *image.NRGBA {
	colors := s.Colors
	if colors < 2 || colors > 256 {
		colors = DefaultStabilizeColors
	}
	bounds := image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy())
	pal := palette.KMeans(img, colors, palette.Options{Seed: s.Seed, Transparent: true})
	pm := image.NewPaletted(bounds, pal)
	draw.Draw(pm, bounds, img, img.Rect.Min, draw.Src)

	out := image.NewNRGBA(bounds)
	draw.Draw(out, bounds, pm, image.Point{}, draw.Src)
	return out
}
