// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package mosaiccanvas shows mosaic frames in gogpu windows.
//
// A mosaic.Loop renders into an offscreen surface. Canvas carries the most
// recent frame of that surface to a window texture:
//
//	Loop (draw) -> Snapshot (CPU) -> GPU Texture -> Window
//
// # Usage
//
//	canvas, err := mosaiccanvas.New(app.GPUContextProvider())
//	if err != nil {
//	    return err
//	}
//	defer canvas.Close()
//
//	loop := mosaic.NewLoop(sched, viewport,
//	    mosaic.WithFrameHandler(func(s mosaic.Surface) {
//	        _ = canvas.UpdateFrom(s)
//	    }))
//
//	app.OnDraw(func(dc *gogpu.Context) {
//	    canvas.RenderTo(dc.AsTextureDrawer())
//	})
//
// # Thread Safety
//
// Canvas is NOT safe for concurrent use. Update and render from the
// window's main thread, or use external synchronization.
//
// # Device Sharing
//
// New hands the provider to the registered mosaic backend so the effect
// renders on the window's device. A backend that cannot share devices keeps
// its own; frames still reach the window through the CPU copy.
package mosaiccanvas
