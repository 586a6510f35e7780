package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gogpu/mosaic"
	"github.com/gogpu/mosaic/capture"
	"github.com/gogpu/mosaic/media"
	"github.com/gogpu/mosaic/render"
	"gopkg.in/yaml.v2"
)

// Config is a preset file. Flags given on the command line override it.
//
//	effect:
//	  pixel_size: 8
//	  color_count: 4
//	  dither_strength: 0.3
//	capture:
//	  format: gif
//	  duration: 5s
type Config struct {
	Effect  EffectConfig  `yaml:"effect"`
	Adjust  AdjustConfig  `yaml:"adjust"`
	Capture CaptureConfig `yaml:"capture"`
	Surface SurfaceConfig `yaml:"surface"`
}

// EffectConfig holds the effect parameters.
type EffectConfig struct {
	PixelSize      float64 `yaml:"pixel_size"`
	ColorCount     float64 `yaml:"color_count"`
	DitherStrength float64 `yaml:"dither_strength"`
	Rotation       int     `yaml:"rotation"`
}

// AdjustConfig holds source preprocessing.
type AdjustConfig struct {
	Gamma      float64 `yaml:"gamma"`
	Brightness float64 `yaml:"brightness"`
	Contrast   float64 `yaml:"contrast"`
	Sharpen    float64 `yaml:"sharpen"`
	Invert     bool    `yaml:"invert"`
}

// CaptureConfig holds recording settings.
type CaptureConfig struct {
	Format   string        `yaml:"format"` // avi, mjpeg or gif
	FPS      float64       `yaml:"fps"`
	Duration time.Duration `yaml:"duration"`
	Width    int           `yaml:"width"`   // 0 keeps the surface width
	Quality  int           `yaml:"quality"` // JPEG quality
	Colors   int           `yaml:"colors"`  // GIF palette size
	Dir      string        `yaml:"dir"`

	// Stabilize is the weight of the previous frame when blending
	// quantized frames; 0 disables it.
	Stabilize       float64 `yaml:"stabilize"`
	StabilizeColors int     `yaml:"stabilize_colors"`
}

// SurfaceConfig holds the drawing surface and backend settings.
type SurfaceConfig struct {
	Backend    string `yaml:"backend"` // gpu or software
	Width      int    `yaml:"width"`   // 0 fits the source
	Height     int    `yaml:"height"`
	MaxTexture int    `yaml:"max_texture"`
	SPIRV      bool   `yaml:"spirv"`
}

const defaultMaxTexture = 8192

func defaultConfig() Config {
	p := mosaic.DefaultParams()
	return Config{
		Effect: EffectConfig{
			PixelSize:      p.PixelSize,
			ColorCount:     p.ColorCount,
			DitherStrength: p.DitherStrength,
			Rotation:       p.Rotation,
		},
		Adjust: AdjustConfig{Gamma: 1},
		Capture: CaptureConfig{
			Format:   "avi",
			FPS:      capture.DefaultFPS,
			Duration: capture.DefaultDuration,
			Quality:  capture.DefaultJPEGQuality,
			Colors:   256,
			Dir:      ".",

			StabilizeColors: capture.DefaultStabilizeColors,
		},
		Surface: SurfaceConfig{
			Backend:    "gpu",
			MaxTexture: defaultMaxTexture,
		},
	}
}

// loadConfig reads a preset over the defaults. An empty path returns the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if err := c.params().Validate(); err != nil {
		return err
	}
	if _, err := c.encoder(); err != nil {
		return err
	}
	switch c.Surface.Backend {
	case "gpu", "software":
	default:
		return fmt.Errorf("unknown backend %q (want gpu or software)", c.Surface.Backend)
	}
	if c.Capture.Stabilize < 0 || c.Capture.Stabilize >= 1 {
		return fmt.Errorf("stabilize weight %g out of range [0, 1)", c.Capture.Stabilize)
	}
	if c.Surface.Width < 0 || c.Surface.Height < 0 || c.Capture.Width < 0 {
		return fmt.Errorf("%w: negative size", mosaic.ErrInvalidDimensions)
	}
	return nil
}

func (c Config) params() mosaic.Params {
	return mosaic.Params{
		PixelSize:      c.Effect.PixelSize,
		ColorCount:     c.Effect.ColorCount,
		DitherStrength: c.Effect.DitherStrength,
		Rotation:       c.Effect.Rotation,
	}
}

func (c Config) adjustments() media.Adjustments {
	return media.Adjustments{
		Gamma:      c.Adjust.Gamma,
		Brightness: c.Adjust.Brightness,
		Contrast:   c.Adjust.Contrast,
		Sharpen:    c.Adjust.Sharpen,
		Invert:     c.Adjust.Invert,
	}
}

func (c Config) encoder() (capture.Encoder, error) {
	switch c.Capture.Format {
	case "", "avi":
		return &capture.AVIEncoder{MJPEGEncoder: capture.MJPEGEncoder{Quality: c.Capture.Quality}}, nil
	case "mjpeg":
		return &capture.MJPEGEncoder{Quality: c.Capture.Quality}, nil
	case "gif":
		return &capture.GIFEncoder{Colors: c.Capture.Colors}, nil
	default:
		return nil, fmt.Errorf("unknown capture format %q (want avi, mjpeg or gif)", c.Capture.Format)
	}
}

// recorderOptions returns the Recorder options shared by record and view.
func (c Config) recorderOptions() []capture.Option {
	return []capture.Option{
		capture.WithFPS(c.Capture.FPS),
		capture.WithWidth(c.Capture.Width),
		capture.WithStabilization(c.Capture.StabilizeColors, c.Capture.Stabilize),
		capture.WithSink(capture.DirSink{Dir: c.Capture.Dir}),
	}
}

// backend returns the Loop backend to use. nil selects the registered one.
func (c Config) backend() mosaic.Backend {
	if c.Surface.Backend == "software" {
		return &render.SoftwareBackend{MaxDimension: c.Surface.MaxTexture}
	}
	useSPIRV(c.Surface.SPIRV)
	return nil
}

// flagSource is the part of *cli.Context used to override a Config.
type flagSource interface {
	IsSet(name string) bool
	String(name string) string
	Int(name string) int
	Float64(name string) float64
	Bool(name string) bool
	Duration(name string) time.Duration
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(f flagSource, cfg *Config) {
	setFloat := func(name string, dst *float64) {
		if f.IsSet(name) {
			*dst = f.Float64(name)
		}
	}
	setInt := func(name string, dst *int) {
		if f.IsSet(name) {
			*dst = f.Int(name)
		}
	}
	setString := func(name string, dst *string) {
		if f.IsSet(name) {
			*dst = f.String(name)
		}
	}

	setFloat("pixel-size", &cfg.Effect.PixelSize)
	setFloat("colors", &cfg.Effect.ColorCount)
	setFloat("dither", &cfg.Effect.DitherStrength)
	setInt("rotation", &cfg.Effect.Rotation)

	setFloat("gamma", &cfg.Adjust.Gamma)
	setFloat("brightness", &cfg.Adjust.Brightness)
	setFloat("contrast", &cfg.Adjust.Contrast)
	setFloat("sharpen", &cfg.Adjust.Sharpen)
	if f.IsSet("invert") {
		cfg.Adjust.Invert = f.Bool("invert")
	}

	setString("backend", &cfg.Surface.Backend)
	setInt("width", &cfg.Surface.Width)
	setInt("height", &cfg.Surface.Height)
	setInt("max-texture", &cfg.Surface.MaxTexture)
	if f.IsSet("spirv") {
		cfg.Surface.SPIRV = f.Bool("spirv")
	}

	setString("format", &cfg.Capture.Format)
	setFloat("fps", &cfg.Capture.FPS)
	setInt("capture-width", &cfg.Capture.Width)
	setInt("quality", &cfg.Capture.Quality)
	setInt("palette", &cfg.Capture.Colors)
	setString("output-dir", &cfg.Capture.Dir)
	setFloat("stabilize", &cfg.Capture.Stabilize)
	setInt("stabilize-colors", &cfg.Capture.StabilizeColors)
	if f.IsSet("duration") {
		cfg.Capture.Duration = f.Duration("duration")
	}
}
