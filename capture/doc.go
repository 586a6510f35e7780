// Package capture records a rendered mosaic surface into a video artifact.
//
// A Recorder samples a mosaic.Surface at a fixed rate (30 frames per
// second by default) on a runloop.Scheduler, hands each frame to an
// Encoder and, once the requested duration has elapsed since the start,
// assembles the encoded chunks into one Artifact:
//
//	rec := capture.NewRecorder(sched, nil, // nil selects MJPEG in AVI
//	    capture.WithSink(capture.DirSink{Dir: "."}),
//	    capture.WithCompletion(func(a capture.Artifact, err error) { ... }))
//	if err := rec.Start(loop.Surface(), capture.DefaultDuration); err != nil {
//	    // errors.Is(err, mosaic.ErrAlreadyRecording)
//	}
//
// Only one session runs per Recorder. Encoder failures end the session
// without an artifact and are reported as mosaic.ErrCaptureEncode.
package capture
