// Command mosaic applies the mosaic effect to images, GIFs and MJPEG
// streams: it renders single frames, records short clips, shows a live
// preview window and exports the effect program.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/codegangsta/cli"
	"github.com/gogpu/mosaic"
	"github.com/gogpu/mosaic/capture"
)

func main() {
	app := cli.NewApp()
	app.Name = "mosaic"
	app.Version = "0.1.0"
	app.Usage = "Pixelate, quantize and dither images and video on the GPU."
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Log per-frame diagnostics.",
		},
		cli.StringFlag{
			Name:  "config",
			Usage: "YAML preset `FILE` with effect and capture defaults. Flags override it.",
		},
	}
	app.Before = func(c *cli.Context) error {
		setupLogging(c.Bool("verbose"))
		return nil
	}
	app.Commands = []cli.Command{
		renderCommand(),
		recordCommand(),
		viewCommand(),
		shaderCommand(),
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mosaic:", err)
		os.Exit(1)
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	mosaic.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// commandConfig loads the preset named by --config and applies the
// command's flags over it.
func commandConfig(c *cli.Context) (Config, error) {
	cfg, err := loadConfig(c.GlobalString("config"))
	if err != nil {
		return cfg, err
	}
	applyFlags(c, &cfg)
	return cfg, cfg.validate()
}

func effectFlags() []cli.Flag {
	d := mosaic.DefaultParams()
	return []cli.Flag{
		cli.Float64Flag{
			Name:  "pixel-size",
			Usage: "`SIZE` of a mosaic block in output pixels (1-32).",
			Value: d.PixelSize,
		},
		cli.Float64Flag{
			Name:  "colors",
			Usage: "`LEVELS` per color channel (2-64).",
			Value: d.ColorCount,
		},
		cli.Float64Flag{
			Name:  "dither",
			Usage: "Ordered dither `STRENGTH` (0-1). 0 disables dithering.",
			Value: d.DitherStrength,
		},
		cli.IntFlag{
			Name:  "rotation",
			Usage: "Clockwise quarter `TURNS`.",
		},
		cli.Float64Flag{
			Name:  "gamma",
			Usage: "`GAMMA` = 1.0 gives the original image. Less than 1.0 darkens, greater lightens.",
			Value: 1,
		},
		cli.Float64Flag{
			Name:  "brightness",
			Usage: "`BRIGHTNESS` from -100 (black) to 100 (white).",
		},
		cli.Float64Flag{
			Name:  "contrast",
			Usage: "`CONTRAST` from -100 (grey) to 100.",
		},
		cli.Float64Flag{
			Name:  "sharpen",
			Usage: "`SIGMA` of the sharpen filter. 0 disables it.",
		},
		cli.BoolFlag{
			Name:  "invert",
			Usage: "Invert the source before the effect.",
		},
		cli.StringFlag{
			Name:  "backend",
			Usage: "Rendering `BACKEND`: gpu or software.",
			Value: "gpu",
		},
		cli.IntFlag{
			Name:  "width",
			Usage: "Surface `WIDTH` limit in pixels. 0 fits the source.",
		},
		cli.IntFlag{
			Name:  "height",
			Usage: "Surface `HEIGHT` limit in pixels. 0 fits the source.",
		},
		cli.IntFlag{
			Name:  "max-texture",
			Usage: "Scale sources down to at most `PIXELS` per side.",
			Value: defaultMaxTexture,
		},
		cli.BoolFlag{
			Name:  "spirv",
			Usage: "Load the effect program as SPIR-V compiled by naga (gpu backend).",
		},
	}
}

func captureFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "format",
			Usage: "Capture `FORMAT`: avi, mjpeg or gif.",
			Value: "avi",
		},
		cli.Float64Flag{
			Name:  "fps",
			Usage: "Capture `RATE` in frames per second.",
			Value: capture.DefaultFPS,
		},
		cli.DurationFlag{
			Name:  "duration",
			Usage: "Capture `LENGTH`.",
			Value: capture.DefaultDuration,
		},
		cli.IntFlag{
			Name:  "capture-width",
			Usage: "Scale captured frames to `WIDTH`. 0 keeps the surface size.",
		},
		cli.IntFlag{
			Name:  "quality",
			Usage: "JPEG `QUALITY` (1-100) for avi and mjpeg.",
			Value: capture.DefaultJPEGQuality,
		},
		cli.IntFlag{
			Name:  "palette",
			Usage: "GIF palette `SIZE` (2-256).",
			Value: 256,
		},
		cli.StringFlag{
			Name:  "output-dir",
			Usage: "`DIR` to write captures into.",
			Value: ".",
		},
		cli.Float64Flag{
			Name:  "stabilize",
			Usage: "Blend each quantized frame with the previous one at `WEIGHT` (0-1). 0 disables.",
		},
		cli.IntFlag{
			Name:  "stabilize-colors",
			Usage: "Palette `SIZE` of stabilized frames.",
			Value: capture.DefaultStabilizeColors,
		},
	}
}
