//go:build !nogpu

package gpu

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/gogpu/mosaic"
	"github.com/gogpu/mosaic/runloop"
)

// halProvider mimics the HalDevice/HalQueue accessors of a gogpu app.
type halProvider struct {
	device any
	queue  any
}

func (p halProvider) HalDevice() any { return p.device }
func (p halProvider) HalQueue() any  { return p.queue }

func newSharedBackend(t *testing.T) *Backend {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	b := &Backend{}
	if err := b.SetDeviceProvider(halProvider{device: device, queue: queue}); err != nil {
		t.Fatalf("SetDeviceProvider: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestBackendName(t *testing.T) {
	b := &Backend{}
	if b.Name() != BackendName {
		t.Errorf("Name() = %q, want %q", b.Name(), BackendName)
	}
	if err := b.Init(); err != nil {
		t.Errorf("Init() = %v", err)
	}
	if b.Adapter() != "" {
		t.Errorf("Adapter() before device = %q", b.Adapter())
	}
}

func TestBackendSetDeviceProviderRejects(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tests := []struct {
		name     string
		provider any
	}{
		{"not a provider", "device"},
		{"wrong device type", halProvider{device: 1, queue: queue}},
		{"wrong queue type", halProvider{device: device, queue: "q"}},
		{"nil device", halProvider{device: nil, queue: queue}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Backend{}
			if err := b.SetDeviceProvider(tt.provider); err == nil {
				t.Error("SetDeviceProvider should fail")
			}
		})
	}
}

func TestBackendSharedDevicePipelines(t *testing.T) {
	b := newSharedBackend(t)
	if b.Adapter() != "shared" {
		t.Errorf("Adapter() = %q, want shared", b.Adapter())
	}

	p, err := b.NewPipeline()
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if n := len(b.live); n != 1 {
		t.Errorf("live pipelines = %d, want 1", n)
	}

	// Switching device with a live pipeline is refused.
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()
	if err := b.SetDeviceProvider(halProvider{device: device, queue: queue}); !errors.Is(err, ErrDeviceBusy) {
		t.Errorf("SetDeviceProvider with live pipeline = %v, want ErrDeviceBusy", err)
	}

	p.Destroy()
	if n := len(b.live); n != 0 {
		t.Errorf("live pipelines after Destroy = %d, want 0", n)
	}
	if err := b.SetDeviceProvider(halProvider{device: device, queue: queue}); err != nil {
		t.Errorf("SetDeviceProvider after Destroy = %v", err)
	}
}

func TestBackendCloseDestroysPipelines(t *testing.T) {
	b := newSharedBackend(t)
	p, err := b.NewPipeline()
	if err != nil {
		t.Fatal(err)
	}
	b.Close()
	if err := p.Resize(4, 4); !errors.Is(err, errDestroyed) {
		t.Errorf("Resize after Close = %v, want errDestroyed", err)
	}
	p.Destroy() // the loop still calls Destroy at teardown
	if b.Adapter() != "" {
		t.Errorf("Adapter() after Close = %q", b.Adapter())
	}
}

func TestBackendDrivesLoop(t *testing.T) {
	b := newSharedBackend(t)

	sched := runloop.New()
	var frames int
	loop := mosaic.NewLoop(sched, mosaic.FixedViewport{Width: 32, Height: 16},
		mosaic.WithBackend(b),
		mosaic.WithFrameHandler(func(mosaic.Surface) { frames++ }))
	if err := loop.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer loop.Stop()
	if loop.State() != mosaic.Running {
		t.Fatalf("State() = %v", loop.State())
	}
	if len(b.live) != 1 {
		t.Errorf("live pipelines = %d, want 1", len(b.live))
	}
	sched.Tick(time.Now())
	if frames != 1 {
		t.Errorf("frames = %d, want 1 (stats %+v)", frames, loop.Stats())
	}
	loop.Rotate()
	if len(b.live) != 1 {
		t.Errorf("live pipelines after rebuild = %d, want 1", len(b.live))
	}
}

func TestBackendSetLogger(t *testing.T) {
	orig := slogger()
	t.Cleanup(func() { setLogger(orig) })

	var buf bytes.Buffer
	b := &Backend{}
	b.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	p := newTestPipeline(t, pipelineConfig{})
	if err := p.Resize(3, 3); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("surface resized")) {
		t.Errorf("expected resize debug log, got %q", buf.String())
	}

	b.SetLogger(nil)
	if slogger().Enabled(t.Context(), slog.LevelError) {
		t.Error("nil logger should restore silence")
	}
}
