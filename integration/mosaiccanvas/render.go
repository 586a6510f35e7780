// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package mosaiccanvas

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"
)

// ErrNoTextureCreator is returned when the draw context has no
// gpucontext.TextureCreator.
var ErrNoTextureCreator = errors.New("mosaiccanvas: draw context has no texture creator")

// Present replaces the held frame with img and draws it at (0, 0).
//
//	app.OnDraw(func(dc *gogpu.Context) {
//	    frame, _ := loop.Surface().Snapshot()
//	    canvas.Present(dc.AsTextureDrawer(), frame)
//	})
func (c *Canvas) Present(dc gpucontext.TextureDrawer, img *image.NRGBA) error {
	if err := c.Update(img); err != nil {
		return err
	}
	return c.RenderTo(dc)
}

// RenderTo draws the held frame at (0, 0). See RenderToPosition.
func (c *Canvas) RenderTo(dc gpucontext.TextureDrawer) error {
	return c.RenderToPosition(dc, 0, 0)
}

// RenderToPosition uploads the held frame if it changed and draws it with
// its top-left corner at (x, y). Nothing is drawn before the first Update.
//
// The dc parameter should be obtained from gogpu.Context.AsTextureDrawer().
func (c *Canvas) RenderToPosition(dc gpucontext.TextureDrawer, x, y float32) error {
	if c.closed {
		return ErrCanvasClosed
	}
	if err := c.flush(dc); err != nil {
		return err
	}
	if c.texture == nil {
		return nil
	}
	return dc.DrawTexture(c.texture, x, y)
}

// RenderCentered draws the held frame centered in a viewW x viewH window.
func (c *Canvas) RenderCentered(dc gpucontext.TextureDrawer, viewW, viewH int) error {
	x := float32(viewW-c.width) / 2
	y := float32(viewH-c.height) / 2
	return c.RenderToPosition(dc, max(x, 0), max(y, 0))
}

func (c *Canvas) flush(dc gpucontext.TextureDrawer) error {
	// A texture of the old size may still be read by in-flight command
	// buffers; it is destroyed only after its replacement is written.
	if c.sizeChanged {
		if c.texture != nil {
			destroy(c.oldTexture)
			c.oldTexture = c.texture
			c.texture = nil
		}
		c.sizeChanged = false
	}
	if !c.dirty || len(c.pixels) == 0 {
		return nil
	}

	if c.texture != nil {
		if u, ok := c.texture.(gpucontext.TextureUpdater); ok {
			if err := u.UpdateData(c.pixels); err != nil {
				return fmt.Errorf("mosaiccanvas: texture update failed: %w", err)
			}
			c.dirty = false
			return nil
		}
		// Not updatable: replace it.
		destroy(c.oldTexture)
		c.oldTexture = c.texture
		c.texture = nil
	}

	creator := dc.TextureCreator()
	if creator == nil {
		return ErrNoTextureCreator
	}
	tex, err := creator.NewTextureFromRGBA(c.width, c.height, c.pixels)
	if err != nil {
		return fmt.Errorf("mosaiccanvas: NewTextureFromRGBA failed: %w", err)
	}
	// Frames are straight alpha.
	if pt, ok := tex.(interface{ SetPremultiplied(bool) }); ok {
		pt.SetPremultiplied(false)
	}
	c.texture = tex
	c.dirty = false

	destroy(c.oldTexture)
	c.oldTexture = nil
	return nil
}
