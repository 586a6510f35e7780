package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"math"
	"time"

	"github.com/gogpu/mosaic/palette"
	"golang.org/x/image/draw"
)

// GIFEncoder writes an animated GIF. Each frame gets its own palette of
// up to Colors entries extracted with palette.KMeans, with index 0
// reserved for transparency.
type GIFEncoder struct {
	// Colors is the palette size per frame, 2-256. Zero means 256.
	Colors int

	// Seed makes palette extraction reproducible.
	Seed uint64

	fps float64
	buf bytes.Buffer
}

var _ Encoder = (*GIFEncoder)(nil)

// Begin implements Encoder.
func (e *GIFEncoder) Begin(width, height int, fps float64) error {
	if width < 0 || height < 0 || fps <= 0 {
		return fmt.Errorf("capture: invalid stream %dx%d at %g fps", width, height, fps)
	}
	e.fps = fps
	return nil
}

// EncodeFrame implements Encoder. The chunk is a single-frame GIF.
func (e *GIFEncoder) EncodeFrame(img *image.NRGBA) ([]byte, error) {
	if img.Rect.Empty() {
		return nil, nil
	}
	colors := e.Colors
	if colors < 2 || colors > 256 {
		colors = 256
	}
	pal := palette.KMeans(img, colors, palette.Options{Seed: e.Seed, Transparent: true})
	pm := image.NewPaletted(img.Rect, pal)
	draw.Draw(pm, pm.Rect, img, img.Rect.Min, draw.Src)

	e.buf.Reset()
	if err := gif.Encode(&e.buf, pm, &gif.Options{NumColors: len(pal)}); err != nil {
		return nil, err
	}
	return bytes.Clone(e.buf.Bytes()), nil
}

// Finalize implements Encoder. Zero chunks produce an empty artifact, since
// a GIF needs at least one image.
func (e *GIFEncoder) Finalize(chunks [][]byte, _ time.Duration) ([]byte, error) {
	if len(chunks) == 0 {
		return []byte{}, nil
	}
	fps := e.fps
	if fps <= 0 {
		fps = DefaultFPS
	}
	delay := max(int(math.Round(100/fps)), 1)

	anim := &gif.GIF{}
	for i, c := range chunks {
		m, err := gif.Decode(bytes.NewReader(c))
		if err != nil {
			return nil, fmt.Errorf("capture: gif chunk %d: %w", i, err)
		}
		pm, ok := m.(*image.Paletted)
		if !ok {
			return nil, fmt.Errorf("capture: gif chunk %d is %T", i, m)
		}
		anim.Image = append(anim.Image, pm)
		anim.Delay = append(anim.Delay, delay)
		anim.Disposal = append(anim.Disposal, gif.DisposalBackground)
	}

	var out bytes.Buffer
	if err := gif.EncodeAll(&out, anim); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Extension implements Encoder.
func (e *GIFEncoder) Extension() string { return "gif" }

// MIMEType implements Encoder.
func (e *GIFEncoder) MIMEType() string { return "image/gif" }
