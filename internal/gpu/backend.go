//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/mosaic"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// BackendName is the identifier reported by Backend.Name.
const BackendName = "wgpu"

// ErrDeviceBusy is returned by SetDeviceProvider while pipelines created on
// the current device are still alive.
var ErrDeviceBusy = errors.New("gpu: device has live pipelines")

// Backend creates EffectPipelines on a wgpu/hal device. It implements
// mosaic.Backend.
//
// The device is acquired lazily on the first NewPipeline call, so a
// machine without a usable adapter only fails when a loop starts, with an
// error wrapping mosaic.ErrUnsupportedContext. A host application that
// already owns a device can hand it over with SetDeviceProvider instead.
type Backend struct {
	// SPIRV makes pipelines load the effect program as SPIR-V compiled by
	// naga instead of handing WGSL to the HAL.
	SPIRV bool

	// Variant selects the HAL backend used for device acquisition.
	// Zero means Vulkan.
	Variant gputypes.Backend

	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	limits   gputypes.Limits
	adapter  string

	externalDevice bool // true when using a shared device (don't destroy on Close)
	live           map[*EffectPipeline]struct{}
}

var (
	_ mosaic.Backend             = (*Backend)(nil)
	_ mosaic.DeviceProviderAware = (*Backend)(nil)
)

// Name implements mosaic.Backend.
func (b *Backend) Name() string { return BackendName }

// Init implements mosaic.Backend. Device acquisition is deferred to
// NewPipeline.
func (b *Backend) Init() error { return nil }

// SetLogger receives the logger propagated by mosaic.SetLogger.
func (b *Backend) SetLogger(l *slog.Logger) { setLogger(l) }

// SetSPIRV sets the SPIRV field under the backend lock.
func (b *Backend) SetSPIRV(enabled bool) {
	b.mu.Lock()
	b.SPIRV = enabled
	b.mu.Unlock()
}

// Adapter returns the name of the adapter in use, or "" before the device
// has been acquired.
func (b *Backend) Adapter() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.adapter
}

// NewPipeline implements mosaic.Backend.
func (b *Backend) NewPipeline() (mosaic.Pipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		if err := b.initDevice(); err != nil {
			return nil, fmt.Errorf("%w: %w", mosaic.ErrUnsupportedContext, err)
		}
	}

	p, err := newEffectPipeline(b.device, b.queue, pipelineConfig{
		spirv:      b.SPIRV,
		maxTexture: int(b.limits.MaxTextureDimension2D),
		onDestroy:  b.forget,
	})
	if err != nil {
		return nil, err
	}
	if b.live == nil {
		b.live = make(map[*EffectPipeline]struct{})
	}
	b.live[p] = struct{}{}
	return p, nil
}

// forget is called by EffectPipeline.Destroy.
func (b *Backend) forget(p *EffectPipeline) {
	b.mu.Lock()
	delete(b.live, p)
	b.mu.Unlock()
}

// Close implements mosaic.Backend. Live pipelines are destroyed; a shared
// device is released without being destroyed.
func (b *Backend) Close() {
	b.mu.Lock()
	live := b.live
	b.live = nil
	b.mu.Unlock()

	// Destroy outside the lock: it calls back into forget.
	for p := range live {
		p.Destroy()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseDevice()
}

// SetDeviceProvider switches the backend to a GPU device owned by a host
// application (e.g. gogpu). The provider must implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue.
func (b *Backend) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.live); n > 0 {
		return fmt.Errorf("%w: %d", ErrDeviceBusy, n)
	}
	b.releaseDevice()

	b.device = device
	b.queue = queue
	b.limits = gputypes.DefaultLimits()
	b.adapter = "shared"
	b.externalDevice = true
	slogger().Info("gpu: switched to shared GPU device")
	return nil
}

func (b *Backend) initDevice() error {
	variant := b.Variant
	if variant == 0 {
		variant = gputypes.BackendVulkan
	}
	backend, ok := hal.GetBackend(variant)
	if !ok {
		return fmt.Errorf("%v backend not available", variant)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return fmt.Errorf("no GPU adapters found")
	}
	selected := selectAdapter(adapters)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("open device: %w", err)
	}
	b.instance = instance
	b.device = openDev.Device
	b.queue = openDev.Queue
	b.limits = selected.Capabilities.Limits
	if b.limits.MaxTextureDimension2D == 0 {
		b.limits = gputypes.DefaultLimits()
	}
	b.adapter = selected.Info.Name
	b.externalDevice = false
	slogger().Info("gpu: device acquired",
		"adapter", selected.Info.Name,
		"type", selected.Info.DeviceType,
		"maxTexture", b.limits.MaxTextureDimension2D)
	return nil
}

// selectAdapter prefers a discrete or integrated GPU over software and
// other adapters.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

// releaseDevice drops the device, destroying it only if we created it.
// Caller holds b.mu.
func (b *Backend) releaseDevice() {
	if !b.externalDevice {
		if b.device != nil {
			b.device.Destroy()
		}
		if b.instance != nil {
			b.instance.Destroy()
		}
	}
	b.device = nil
	b.queue = nil
	b.instance = nil
	b.adapter = ""
	b.externalDevice = false
}
