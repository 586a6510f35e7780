package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/codegangsta/cli"
	"github.com/dustin/go-humanize"
	"github.com/gogpu/mosaic"
	"github.com/gogpu/mosaic/capture"
	"github.com/gogpu/mosaic/runloop"
	"golang.org/x/term"
)

// recordFrameInterval paces the headless loop.
const recordFrameInterval = time.Second / 60

func recordCommand() cli.Command {
	return cli.Command{
		Name:      "record",
		Usage:     "Record a clip of SRC with the effect applied.",
		ArgsUsage: "SRC",
		Flags:     append(effectFlags(), captureFlags()...),
		Action:    runRecord,
	}
}

type outcome struct {
	artifact capture.Artifact
	err      error
}

func runRecord(c *cli.Context) error {
	cfg, err := commandConfig(c)
	if err != nil {
		return err
	}
	src, err := openSource(c.Args().First(), cfg)
	if err != nil {
		return err
	}
	enc, err := cfg.encoder()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Capture.Dir, 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	src.run(ctx)

	res, err := record(ctx, cfg, src, enc, term.IsTerminal(int(os.Stderr.Fd())))
	if err != nil {
		return err
	}
	a := res.artifact
	fmt.Fprintf(c.App.Writer, "%s: %d frames, %dx%d, %s\n",
		capture.DirSink{Dir: cfg.Capture.Dir}.Path(a), a.Frames, a.Width, a.Height,
		humanize.Bytes(uint64(len(a.Data))))
	return nil
}

// record runs a loop and one capture session to completion on a private
// scheduler.
func record(ctx context.Context, cfg Config, src *source, enc capture.Encoder, progress bool) (outcome, error) {
	sched := runloop.New()
	done := make(chan outcome, 1)
	rec := capture.NewRecorder(sched, enc, append(cfg.recorderOptions(),
		capture.WithCompletion(func(a capture.Artifact, err error) {
			done <- outcome{artifact: a, err: err}
		}),
	)...)

	// The session starts on the first drawn frame so that it never
	// samples an empty surface.
	started := false
	var loop *mosaic.Loop
	loop = newLoop(sched, surfaceViewport(cfg, src), cfg, src, mosaic.WithFrameHandler(func(mosaic.Surface) {
		if started {
			return
		}
		started = true
		if err := rec.Start(loop.Surface(), cfg.Capture.Duration); err != nil {
			done <- outcome{err: err}
			return
		}
		if progress {
			showProgress(sched, rec, cfg.Capture.Duration)
		}
	}))
	if err := loop.Start(); err != nil {
		return outcome{}, err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = sched.Run(runCtx, recordFrameInterval)
	}()

	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	cancelRun()
	<-stopped

	// The scheduler has stopped; nothing else touches the loop.
	rec.Cancel()
	loop.Stop()
	if res.err != nil {
		return res, res.err
	}
	mosaic.Logger().Debug("record: loop stats", "frames", loop.Stats().Frames, "skipped", loop.Stats().Skipped)
	return res, nil
}

// showProgress redraws a status line on stderr until the session ends.
func showProgress(sched runloop.Scheduler, rec *capture.Recorder, d time.Duration) {
	start := sched.Now()
	var tick func()
	tick = func() {
		if rec.State() != capture.Recording {
			fmt.Fprint(os.Stderr, "\r\033[K")
			return
		}
		elapsed := sched.Now().Sub(start)
		fmt.Fprintf(os.Stderr, "\rrecording %4.1fs / %.1fs", elapsed.Seconds(), d.Seconds())
		sched.AfterFunc(100*time.Millisecond, tick)
	}
	tick()
}
