// Package mosaic renders a still image or live video through a real-time
// shader effect that pixelates, color-quantizes, dithers and rotates it,
// and exposes the rendered surface for short video capture.
//
// # Overview
//
// The effect is a single full-screen fragment program (see package shader)
// parameterized by four live controls:
//
//   - PixelSize: edge length of the square blocks that share one sample
//   - ColorCount: number of evenly spaced levels per color channel
//   - DitherStrength: amplitude of the 4x4 ordered dither added before
//     quantization
//   - Rotation: quarter turns, applied to the sampling coordinate
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/mosaic"
//	    _ "github.com/gogpu/mosaic/gpu" // register the wgpu backend
//	    "github.com/gogpu/mosaic/media"
//	    "github.com/gogpu/mosaic/runloop"
//	)
//
//	sched := runloop.New()
//	src, err := media.Open("photo.png")
//	// ...
//	loop := mosaic.NewLoop(sched, mosaic.FixedViewport{Width: 800, Height: 450})
//	loop.SetSource(src)
//	if err := loop.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	go sched.Run(ctx, time.Second/60)
//
// # Architecture
//
// The Render Loop owns one Pipeline at a time (the "current bundle"). Any
// change to the source or to the effect parameters tears the bundle down and
// builds a fresh one from the registered Backend. Every display frame the
// loop resizes the surface, uploads the current source frame, binds the
// uniforms and draws.
//
// Two backends implement the Pipeline contract:
//   - wgpu (package gpu, registered by blank import): hal render pipeline
//   - software (package render): CPU reference evaluator, selected explicitly
//
// All state transitions happen on a single cooperative scheduler (package
// runloop); Loop and capture.Recorder methods must be called from it.
//
// # Coordinate System
//
// Surface pixels use a top-left origin with Y increasing downward. Rotation
// steps are quarter turns of -pi/2 each, which rotates the picture clockwise
// on screen.
package mosaic
