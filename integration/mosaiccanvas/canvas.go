// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package mosaiccanvas

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/mosaic"
)

// Common errors returned by Canvas operations.
var (
	// ErrCanvasClosed is returned when operations are attempted on a closed canvas.
	ErrCanvasClosed = errors.New("mosaiccanvas: canvas is closed")

	// ErrNilProvider is returned when a nil DeviceProvider is passed.
	ErrNilProvider = errors.New("mosaiccanvas: nil DeviceProvider")
)

// textureDestroyer matches gogpu.Texture.Destroy.
type textureDestroyer interface {
	Destroy()
}

// Canvas holds the latest mosaic frame and keeps a window texture in sync
// with it.
type Canvas struct {
	provider    gpucontext.DeviceProvider
	pixels      []byte // tightly packed RGBA rows
	width       int
	height      int
	texture     gpucontext.Texture
	oldTexture  gpucontext.Texture // replaced texture awaiting destruction
	dirty       bool
	sizeChanged bool
	closed      bool
}

// New creates a Canvas for a gogpu window. The provider should come from
// gogpu.App.GPUContextProvider().
func New(provider gpucontext.DeviceProvider) (*Canvas, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}

	// Non-fatal: the backend may be software or may already hold pipelines.
	if err := mosaic.SetBackendDeviceProvider(provider); err != nil {
		mosaic.Logger().Debug("mosaiccanvas: device not shared", "err", err)
	}

	return &Canvas{provider: provider}, nil
}

// Size returns the dimensions of the held frame.
func (c *Canvas) Size() (width, height int) {
	return c.width, c.height
}

// IsDirty reports whether the held frame has not reached the texture yet.
func (c *Canvas) IsDirty() bool {
	return c.dirty
}

// Update replaces the held frame with a copy of img. An empty image keeps
// the previous frame.
func (c *Canvas) Update(img *image.NRGBA) error {
	if c.closed {
		return ErrCanvasClosed
	}
	if img == nil || img.Rect.Empty() {
		return nil
	}

	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w != c.width || h != c.height {
		c.width, c.height = w, h
		c.sizeChanged = true
	}
	n := w * h * 4
	if cap(c.pixels) < n {
		c.pixels = make([]byte, n)
	}
	c.pixels = c.pixels[:n]

	rowBytes := w * 4
	for y := 0; y < h; y++ {
		off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(c.pixels[y*rowBytes:(y+1)*rowBytes], img.Pix[off:off+rowBytes])
	}
	c.dirty = true
	return nil
}

// UpdateFrom snapshots s into the canvas.
func (c *Canvas) UpdateFrom(s mosaic.Surface) error {
	if c.closed {
		return ErrCanvasClosed
	}
	img, err := s.Snapshot()
	if err != nil {
		return fmt.Errorf("mosaiccanvas: snapshot: %w", err)
	}
	return c.Update(img)
}

// Texture returns the current window texture, or nil before the first
// render.
func (c *Canvas) Texture() gpucontext.Texture {
	return c.texture
}

// Provider returns the DeviceProvider the canvas was created with, or nil
// once closed.
func (c *Canvas) Provider() gpucontext.DeviceProvider {
	if c.closed {
		return nil
	}
	return c.provider
}

// Close releases the textures. It is idempotent.
func (c *Canvas) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	destroy(c.oldTexture)
	destroy(c.texture)
	c.oldTexture, c.texture = nil, nil
	c.pixels = nil
	c.provider = nil
	return nil
}

func destroy(t gpucontext.Texture) {
	if d, ok := t.(textureDestroyer); ok {
		d.Destroy()
	}
}
