package media

import (
	"context"
	"fmt"
	"image"
	"image/gif"
	"io"
	"time"

	"github.com/gogpu/mosaic"
	"golang.org/x/image/draw"
)

// Delays of 0 or 1 centiseconds are played at 100 ms, as browsers do.
const defaultGIFDelay = 100 * time.Millisecond

// GIFFrame is one fully composited animation frame.
type GIFFrame struct {
	Image *image.NRGBA
	Delay time.Duration
}

// GIFPlayer plays an animated GIF into a Latest cell. Frames are
// composited once at decode time, honoring per-frame disposal, so playback
// only publishes ready images.
type GIFPlayer struct {
	frames []GIFFrame
	loops  int // total plays, 0 = forever
	width  int
	height int
}

// DecodeGIF reads every frame of an animated GIF.
func DecodeGIF(r io.Reader) (*GIFPlayer, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mosaic.ErrSourceDecode, err)
	}
	return NewGIFPlayer(g)
}

// NewGIFPlayer composites the frames of g.
//
// LoopCount follows image/gif: 0 loops forever, -1 plays once and n plays
// n+1 times.
func NewGIFPlayer(g *gif.GIF) (*GIFPlayer, error) {
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%w: gif has no frames", mosaic.ErrSourceDecode)
	}
	p := &GIFPlayer{
		frames: compositeGIF(g),
		width:  g.Config.Width,
		height: g.Config.Height,
	}
	if b := p.frames[0].Image.Bounds(); p.width == 0 || p.height == 0 {
		p.width, p.height = b.Dx(), b.Dy()
	}
	switch {
	case g.LoopCount < 0:
		p.loops = 1
	case g.LoopCount > 0:
		p.loops = g.LoopCount + 1
	}
	return p, nil
}

func compositeGIF(g *gif.GIF) []GIFFrame {
	screen := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if screen.Empty() {
		for _, m := range g.Image {
			screen = screen.Union(m.Bounds())
		}
	}
	canvas := image.NewNRGBA(screen)

	frames := make([]GIFFrame, 0, len(g.Image))
	var saved *image.NRGBA
	for i, m := range g.Image {
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			saved = cloneNRGBA(canvas)
		}

		draw.Draw(canvas, m.Bounds(), m, m.Bounds().Min, draw.Over)

		delay := defaultGIFDelay
		if i < len(g.Delay) && g.Delay[i] > 1 {
			delay = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		frames = append(frames, GIFFrame{Image: cloneNRGBA(canvas), Delay: delay})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, m.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = saved
		}
	}
	return frames
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

// Frames returns the composited frames.
func (p *GIFPlayer) Frames() []GIFFrame { return p.frames }

// Size returns the logical screen size.
func (p *GIFPlayer) Size() (int, int) { return p.width, p.height }

// Duration returns the length of one pass through the animation.
func (p *GIFPlayer) Duration() time.Duration {
	var d time.Duration
	for _, f := range p.frames {
		d += f.Delay
	}
	return d
}

// Play publishes frames into out at their recorded delays until the loop
// count is exhausted or ctx is canceled. It returns ctx.Err() on
// cancellation and nil when playback ends.
func (p *GIFPlayer) Play(ctx context.Context, out *Latest) error {
	out.SetSize(p.width, p.height)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for pass := 0; p.loops == 0 || pass < p.loops; pass++ {
		for _, f := range p.frames {
			out.Publish(f.Image)
			timer.Reset(f.Delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil
}
