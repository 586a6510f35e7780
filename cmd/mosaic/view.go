package main

import (
	"context"
	"time"

	"github.com/codegangsta/cli"
	"github.com/dustin/go-humanize"
	"github.com/gogpu/gogpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/mosaic"
	"github.com/gogpu/mosaic/capture"
	"github.com/gogpu/mosaic/integration/mosaiccanvas"
	"github.com/gogpu/mosaic/runloop"
)

// Largest initial window side.
const maxWindowSide = 1024

func viewCommand() cli.Command {
	return cli.Command{
		Name:      "view",
		Usage:     "Show SRC with the effect in a window. R rotates, Space pauses, C records a clip.",
		ArgsUsage: "SRC",
		Flags:     append(effectFlags(), captureFlags()...),
		Action:    runView,
	}
}

func runView(c *cli.Context) error {
	cfg, err := commandConfig(c)
	if err != nil {
		return err
	}
	src, err := openSource(c.Args().First(), cfg)
	if err != nil {
		return err
	}
	enc, err := cfg.encoder()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src.run(ctx)

	w, h := windowSize(cfg, src)
	app := gogpu.NewApp(gogpu.DefaultConfig().
		WithTitle("mosaic - " + src.name).
		WithSize(w, h).
		WithContinuousRender(false))

	log := mosaic.Logger()
	sched := runloop.New()
	rec := capture.NewRecorder(sched, enc, append(cfg.recorderOptions(),
		capture.WithCompletion(func(a capture.Artifact, err error) {
			if err != nil {
				log.Error("capture failed", "session", a.Session, "err", err)
				return
			}
			log.Info("capture saved", "name", a.Name, "frames", a.Frames,
				"bytes", humanize.Bytes(uint64(len(a.Data))))
		}),
	)...)

	var (
		canvas    *mosaiccanvas.Canvas
		loop      *mosaic.Loop
		viewport  *mosaic.FitViewport
		animToken *gogpu.AnimationToken
		paused    bool
	)

	app.OnDraw(func(dc *gogpu.Context) {
		dw, dh := dc.Width(), dc.Height()
		if dw <= 0 || dh <= 0 {
			return
		}

		if canvas == nil {
			provider := app.GPUContextProvider()
			if provider == nil {
				return
			}
			if canvas, err = mosaiccanvas.New(provider); err != nil {
				log.Error("create canvas", "err", err)
				return
			}
			viewport = &mosaic.FitViewport{MaxWidth: float64(dw), MaxHeight: float64(dh)}
			loop = newLoop(sched, viewport, cfg, src, mosaic.WithFrameHandler(func(s mosaic.Surface) {
				if err := canvas.UpdateFrom(s); err != nil {
					log.Warn("present frame", "err", err)
				}
			}))
			if err := loop.Start(); err != nil {
				log.Error("start loop", "err", err)
				return
			}
			log.Info("window ready", "backend", dc.Backend(), "source", src.name)
			animToken = app.StartAnimation()
		}

		viewport.MaxWidth, viewport.MaxHeight = float64(dw), float64(dh)
		sched.Tick(time.Now())
		if err := canvas.RenderCentered(dc.AsTextureDrawer(), dw, dh); err != nil {
			log.Warn("render", "err", err)
		}
	})

	app.EventSource().OnKeyPress(func(key gpucontext.Key, _ gpucontext.Modifiers) {
		if loop == nil {
			return
		}
		switch key {
		case gpucontext.KeyR:
			sched.Post(loop.Rotate)
		case gpucontext.KeyC:
			sched.Post(func() {
				if err := rec.Start(loop.Surface(), cfg.Capture.Duration); err != nil {
					log.Warn("capture not started", "err", err)
				}
			})
		case gpucontext.KeySpace:
			paused = !paused
			if paused {
				if animToken != nil {
					animToken.Stop()
					animToken = nil
				}
				sched.Post(loop.Stop)
				return
			}
			sched.Post(func() {
				if err := loop.Start(); err != nil {
					log.Error("resume", "err", err)
				}
			})
			animToken = app.StartAnimation()
		}
	})

	app.OnClose(func() {
		if animToken != nil {
			animToken.Stop()
		}
		cancel()
		rec.Cancel()
		if loop != nil {
			loop.Stop()
		}
		if canvas != nil {
			_ = canvas.Close()
		}
		// Release the device while the window's device is still alive.
		mosaic.CloseBackend()
	})

	return app.Run()
}

// windowSize returns the initial window size for src.
func windowSize(cfg Config, src *source) (int, int) {
	if cfg.Surface.Width > 0 && cfg.Surface.Height > 0 {
		return cfg.Surface.Width, cfg.Surface.Height
	}
	w, h := sourceSize(src)
	if w <= 0 || h <= 0 {
		return 800, 600
	}
	if cfg.params().Sanitize().Sideways() {
		w, h = h, w
	}
	if s := max(w, h); s > maxWindowSide {
		w, h = w*maxWindowSide/s, h*maxWindowSide/s
	}
	return max(w, 1), max(h, 1)
}
