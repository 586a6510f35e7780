// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render provides the software rendering backend for mosaic.
//
// SoftwareBackend implements mosaic.Backend on the CPU. Its pipelines run
// the reference evaluator from package shader over a PixmapTarget, so the
// output matches the GPU program pixel for pixel. It needs no device and is
// used for headless rendering (mosaic render --backend software) and in tests.
//
// The software backend is never selected automatically. A Loop uses it
// only when passed explicitly:
//
//	loop := mosaic.NewLoop(sched, viewport,
//	    mosaic.WithBackend(render.NewSoftwareBackend()))
//
// # Targets
//
// PixmapTarget is the drawing surface storage: a straight-alpha
// *image.NRGBA with the same RGBA8 layout the GPU backend reads back.
package render
