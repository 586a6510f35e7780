package main

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/codegangsta/cli"
	"github.com/dustin/go-humanize"
	"github.com/gogpu/mosaic"
	"github.com/gogpu/mosaic/runloop"
)

func renderCommand() cli.Command {
	return cli.Command{
		Name:      "render",
		Usage:     "Render one frame of SRC to a PNG file.",
		ArgsUsage: "SRC",
		Flags: append(effectFlags(),
			cli.StringFlag{
				Name:  "output, o",
				Usage: "PNG `FILE` to write.",
				Value: "mosaic.png",
			},
		),
		Action: runRender,
	}
}

func runRender(c *cli.Context) error {
	cfg, err := commandConfig(c)
	if err != nil {
		return err
	}
	src, err := openStill(c.Args().First(), cfg)
	if err != nil {
		return err
	}

	img, err := renderFrame(cfg, src)
	if err != nil {
		return err
	}

	out := c.String("output")
	n, err := writePNG(out, img)
	if err != nil {
		return err
	}
	mosaic.Logger().Info("rendered",
		"source", src.name, "output", out,
		"size", fmt.Sprintf("%dx%d", img.Rect.Dx(), img.Rect.Dy()),
		"bytes", humanize.Bytes(uint64(n)))
	return nil
}

// renderFrame runs a loop for a single tick and returns the drawn frame.
func renderFrame(cfg Config, src *source) (*image.NRGBA, error) {
	sched := runloop.New()

	var (
		frame   *image.NRGBA
		snapErr error
	)
	loop := newLoop(sched, surfaceViewport(cfg, src), cfg, src, mosaic.WithFrameHandler(func(s mosaic.Surface) {
		if frame == nil && snapErr == nil {
			frame, snapErr = s.Snapshot()
		}
	}))
	if err := loop.Start(); err != nil {
		return nil, err
	}
	defer loop.Stop()

	sched.Tick(sched.Now())
	if snapErr != nil {
		return nil, snapErr
	}
	if frame == nil {
		return nil, errors.New("no frame was drawn")
	}
	return frame, nil
}

// newLoop creates a stopped loop over src. vp follows the loop's display
// aspect.
func newLoop(sched runloop.Scheduler, vp *mosaic.FitViewport, cfg Config, src *source, opts ...mosaic.LoopOption) *mosaic.Loop {
	opts = append([]mosaic.LoopOption{
		mosaic.WithBackend(cfg.backend()),
		mosaic.WithParams(cfg.params()),
	}, opts...)

	loop := mosaic.NewLoop(sched, vp, opts...)
	vp.Aspect = loop.DisplayAspect
	loop.SetSource(src)
	loop.SetParams(cfg.params()) // SetSource resets rotation
	return loop
}

// defaultSurfaceSide bounds the surface of a source whose size is not
// known until its first frame arrives.
const defaultSurfaceSide = 640

// surfaceViewport fits the surface into the configured box, or into a
// square of the source's longest side.
func surfaceViewport(cfg Config, src *source) *mosaic.FitViewport {
	w, h := cfg.Surface.Width, cfg.Surface.Height
	switch {
	case w == 0 && h == 0:
		sw, sh := src.Size()
		side := max(sw, sh)
		if side <= 0 {
			side = defaultSurfaceSide
		}
		w, h = side, side
	case w == 0:
		w = h
	case h == 0:
		h = w
	}
	return &mosaic.FitViewport{MaxWidth: float64(w), MaxHeight: float64(h)}
}

func writePNG(path string, img image.Image) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return 0, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
