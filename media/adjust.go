package media

import (
	"image"
	"reflect"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/gogpu/mosaic"
	"github.com/nfnt/resize"
)

// Adjustments are optional tone corrections applied to source frames
// before they reach the effect. The zero value changes nothing.
type Adjustments struct {
	// Gamma of 1 (or 0) keeps the image; below 1 darkens, above 1 lightens.
	Gamma float64
	// Brightness in [-100, 100].
	Brightness float64
	// Contrast in [-100, 100].
	Contrast float64
	// Sharpen sigma; 0 disables.
	Sharpen float64
	Invert  bool
}

// IsZero reports whether a leaves images unchanged.
func (a Adjustments) IsZero() bool {
	return (a.Gamma == 0 || a.Gamma == 1) &&
		a.Brightness == 0 && a.Contrast == 0 && a.Sharpen == 0 && !a.Invert
}

// Apply returns img with the adjustments applied, or img itself when a is
// zero. The result has its origin at (0, 0).
func (a Adjustments) Apply(img image.Image) image.Image {
	if a.IsZero() || img == nil {
		return img
	}
	if a.Gamma > 0 && a.Gamma != 1 {
		img = imaging.AdjustGamma(img, a.Gamma)
	}
	if a.Brightness != 0 {
		img = imaging.AdjustBrightness(img, a.Brightness)
	}
	if a.Sharpen > 0 {
		img = imaging.Sharpen(img, a.Sharpen)
	}
	if a.Contrast != 0 {
		img = imaging.AdjustContrast(img, a.Contrast)
	}
	if a.Invert {
		img = imaging.Invert(img)
	}
	return img
}

// FitMax scales img down, preserving aspect ratio, so neither side exceeds
// limit. Smaller images are returned unchanged.
func FitMax(img image.Image, limit int) image.Image {
	if img == nil || limit <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= limit && b.Dy() <= limit {
		return img
	}
	return resize.Thumbnail(uint(limit), uint(limit), img, resize.Bilinear)
}

// Preprocessed wraps a Source, applying Adjustments and an optional size
// limit to each new frame. The processed frame is cached until the
// wrapped source returns a different image.
type Preprocessed struct {
	src    mosaic.Source
	adjust Adjustments
	limit  int

	mu  sync.Mutex
	in  image.Image
	out image.Image
}

var _ mosaic.Source = (*Preprocessed)(nil)

// Preprocess wraps src. A limit of zero disables scaling. When there is
// nothing to do src is returned as is.
func Preprocess(src mosaic.Source, a Adjustments, limit int) mosaic.Source {
	if src == nil || (a.IsZero() && limit <= 0) {
		return src
	}
	return &Preprocessed{src: src, adjust: a, limit: limit}
}

// Frame implements mosaic.Source.
func (p *Preprocessed) Frame() image.Image {
	in := p.src.Frame()
	if in == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !sameImage(in, p.in) {
		p.in = in
		p.out = p.adjust.Apply(FitMax(in, p.limit))
	}
	return p.out
}

// sameImage reports whether a and b are the same image value. Images of
// non-comparable types are never considered the same.
func sameImage(a, b image.Image) bool {
	if a == nil || b == nil || !reflect.TypeOf(a).Comparable() {
		return false
	}
	return a == b
}

// Size implements mosaic.Sizer when the wrapped source does, reporting
// the size after scaling.
func (p *Preprocessed) Size() (int, int) {
	s, ok := p.src.(mosaic.Sizer)
	if !ok {
		return 0, 0
	}
	w, h := s.Size()
	if p.limit <= 0 || (w <= p.limit && h <= p.limit) || w == 0 || h == 0 {
		return w, h
	}
	if w >= h {
		return p.limit, max(h*p.limit/w, 1)
	}
	return max(w*p.limit/h, 1), p.limit
}
