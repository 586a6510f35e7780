package mosaic

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("Handle() = %v, want nil", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).(nopHandler); !ok {
		t.Error("WithAttrs() should stay a nopHandler")
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("WithGroup() should stay a nopHandler")
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("default logger should be silent")
	}

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SetLogger(custom)
	if Logger() != custom {
		t.Fatal("Logger() did not return the logger set via SetLogger")
	}

	SetLogger(nil)
	if l := Logger(); l == nil || l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) should restore a silent, non-nil logger")
	}
}

// captureLogs installs a Debug-level text logger for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return &buf
}

func TestLoopLogsLifecycle(t *testing.T) {
	buf := captureLogs(t)
	sched, clk := newTestScheduler()
	fb := &fakeBackend{name: "logged", uploadErr: errors.New("texture lost")}
	loop := NewLoop(sched, FixedViewport{Width: 8, Height: 8}, WithBackend(fb))
	loop.SetSource(newStillSource(4, 4))
	if err := loop.Start(); err != nil {
		t.Fatal(err)
	}
	sched.Tick(clk.advance(time.Millisecond))
	loop.Stop()

	out := buf.String()
	for _, want := range []string{
		"mosaic: loop started",
		"backend=logged",
		"level=WARN msg=\"mosaic: frame skipped\"",
		"texture lost",
		"mosaic: loop stopped",
		"skipped=1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLoopLogsSetupFailure(t *testing.T) {
	buf := captureLogs(t)
	sched, _ := newTestScheduler()
	fb := &fakeBackend{setupErr: errors.New("no adapter")}
	loop := NewLoop(sched, FixedViewport{Width: 8, Height: 8}, WithBackend(fb))
	if err := loop.Start(); err == nil {
		t.Fatal("Start should fail")
	}
	if n := strings.Count(buf.String(), "mosaic: setup failed"); n != 1 {
		t.Errorf("setup failure logged %d times, want 1", n)
	}
}

func TestSetLoggerPropagatesToBackend(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() {
		SetLogger(orig)
		resetBackend()
	})
	resetBackend()

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(custom)

	fb := &fakeBackend{name: "propagation-test"}
	if err := RegisterBackend(fb); err != nil {
		t.Fatalf("RegisterBackend() = %v", err)
	}
	if fb.logger != custom {
		t.Error("RegisterBackend did not hand the current logger to the backend")
	}

	later := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(later)
	if fb.logger != later {
		t.Error("SetLogger did not propagate to the registered backend")
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Logger().Debug("concurrent read")
		}()
		go func() {
			defer wg.Done()
			SetLogger(slog.Default())
			SetLogger(nil)
		}()
	}
	wg.Wait()
}

func BenchmarkLoggerDisabledLog(b *testing.B) {
	l := Logger()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		l.Debug("frame", "n", i)
	}
}
