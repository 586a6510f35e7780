// Package media produces Source Frames for the mosaic Render Loop.
//
// Still images are decoded once and served as a constant frame. Animated
// GIFs and MJPEG streams are played on their own goroutine and publish
// into a Latest cell, which the loop reads without blocking:
//
//	cell := media.NewLatest()
//	player, err := media.DecodeGIF(f)
//	...
//	go player.Play(ctx, cell)
//	loop.SetSource(cell)
//
// Decoding failures wrap mosaic.ErrSourceDecode. A source that fails to
// decode leaves the loop running with no bound texture.
package media
