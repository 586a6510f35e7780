package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/mosaic"
	"github.com/gogpu/mosaic/media"
)

// source is an opened input. Animated inputs publish into a media.Latest
// while play runs.
type source struct {
	mosaic.Source
	name string
	play func(ctx context.Context) error // nil for stills
}

func (s *source) animated() bool { return s.play != nil }

// Size reports the intrinsic size of the wrapped source.
func (s *source) Size() (int, int) { return sourceSize(s.Source) }

// run plays an animated source until ctx is done.
func (s *source) run(ctx context.Context) {
	if s.play == nil {
		return
	}
	go func() {
		if err := s.play(ctx); err != nil && !errors.Is(err, context.Canceled) {
			mosaic.Logger().Warn("playback stopped", "source", s.name, "err", err)
		}
	}()
}

func kindOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gif":
		return "gif"
	case ".mjpeg", ".mjpg":
		return "mjpeg"
	default:
		return "still"
	}
}

// openSource opens path for continuous playback: GIFs and MJPEG streams
// loop, anything else is a still image.
func openSource(path string, cfg Config) (*source, error) {
	if path == "" {
		return nil, errors.New("missing SRC argument")
	}
	s := &source{name: filepath.Base(path)}

	switch kindOf(path) {
	case "gif":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		player, err := media.DecodeGIF(f)
		if err != nil {
			return nil, err
		}
		latest := media.NewLatest()
		latest.SetSize(player.Size())
		latest.Publish(player.Frames()[0].Image)
		s.Source = latest
		s.play = func(ctx context.Context) error { return player.Play(ctx, latest) }

	case "mjpeg":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		latest := media.NewLatest()
		s.Source = latest
		s.play = func(ctx context.Context) error {
			defer f.Close()
			p := media.MJPEGPlayer{FPS: int(cfg.Capture.FPS), Loop: true}
			return p.Play(ctx, f, latest)
		}

	default:
		still, err := media.Open(path)
		if err != nil {
			return nil, err
		}
		s.Source = still
	}

	s.Source = media.Preprocess(s.Source, cfg.adjustments(), cfg.Surface.MaxTexture)
	return s, nil
}

// openStill opens the first frame of path.
func openStill(path string, cfg Config) (*source, error) {
	if path == "" {
		return nil, errors.New("missing SRC argument")
	}
	s := &source{name: filepath.Base(path)}

	switch kindOf(path) {
	case "mjpeg":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 32<<20)
		sc.Split(media.ScanJPEG)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", mosaic.ErrSourceDecode, err)
			}
			return nil, fmt.Errorf("%w: %s has no frames", mosaic.ErrSourceDecode, s.name)
		}
		still, err := media.Decode(bytes.NewReader(sc.Bytes()))
		if err != nil {
			return nil, err
		}
		s.Source = still

	case "gif":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		player, err := media.DecodeGIF(f)
		if err != nil {
			return nil, err
		}
		s.Source = media.NewStill(player.Frames()[0].Image)

	default:
		still, err := media.Open(path)
		if err != nil {
			return nil, err
		}
		s.Source = still
	}

	s.Source = media.Preprocess(s.Source, cfg.adjustments(), cfg.Surface.MaxTexture)
	return s, nil
}

// sourceSize returns the intrinsic size of src, or 0x0 if unknown.
func sourceSize(src mosaic.Source) (int, int) {
	if s, ok := src.(mosaic.Sizer); ok {
		return s.Size()
	}
	if img := src.Frame(); img != nil {
		b := img.Bounds()
		return b.Dx(), b.Dy()
	}
	return 0, 0
}
