//go:build !nogpu

package gpu

import (
	"fmt"
	"image"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/mosaic"
	"github.com/gogpu/mosaic/shader"
	"github.com/gogpu/wgpu/hal"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// targetFormat is the drawing surface format. The program writes straight
// (non-premultiplied) alpha, which maps onto image.NRGBA without conversion.
const targetFormat = gputypes.TextureFormatRGBA8Unorm

// copyPitchAlignment is the WebGPU requirement for BytesPerRow in
// texture-to-buffer copies.
const copyPitchAlignment = 256

// submitTimeout bounds the wait for a frame's readback.
const submitTimeout = 5 * time.Second

type pipelineConfig struct {
	spirv      bool
	maxTexture int
	onDestroy  func(*EffectPipeline)
}

// sourceTexture is a sampled texture and its view.
type sourceTexture struct {
	tex           hal.Texture
	view          hal.TextureView
	width, height int
}

// EffectPipeline is one resource bundle on a wgpu/hal device: the effect
// program, the quad, the source texture and the drawing surface with its
// readback buffer. It implements mosaic.Pipeline.
//
// Draw renders offscreen and reads the frame back into a CPU pixmap, so
// Snapshot never touches the GPU.
type EffectPipeline struct {
	device hal.Device
	queue  hal.Queue
	cfg    pipelineConfig

	// Program resources, created once.
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	vertBuf    hal.Buffer
	uniformBuf hal.Buffer

	// Source textures. placeholder is a 1x1 transparent texture bound when
	// there is no frame; source is reused across uploads of the same size.
	placeholder *sourceTexture
	source      *sourceTexture
	bound       *sourceTexture
	bindGroup   hal.BindGroup

	// Drawing surface, reallocated on resize.
	target      hal.Texture
	targetView  hal.TextureView
	staging     hal.Buffer
	stagingRow  uint32
	width       int
	height      int
	pixmap      *image.NRGBA
	uploadStage *image.NRGBA

	destroyed bool
}

var _ mosaic.Pipeline = (*EffectPipeline)(nil)

func newEffectPipeline(device hal.Device, queue hal.Queue, cfg pipelineConfig) (*EffectPipeline, error) {
	if cfg.maxTexture <= 0 {
		cfg.maxTexture = int(gputypes.DefaultLimits().MaxTextureDimension2D)
	}
	p := &EffectPipeline{device: device, queue: queue, cfg: cfg}

	if err := p.createProgram(); err != nil {
		p.release()
		return nil, fmt.Errorf("%w: %w", mosaic.ErrShaderCompile, err)
	}
	if err := p.createBuffers(); err != nil {
		p.release()
		return nil, fmt.Errorf("%w: %w", mosaic.ErrUnsupportedContext, err)
	}
	placeholder, err := p.createSourceTexture("mosaic_placeholder", 1, 1)
	if err != nil {
		p.release()
		return nil, fmt.Errorf("%w: %w", mosaic.ErrUnsupportedContext, err)
	}
	p.placeholder = placeholder
	if err := p.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: placeholder.tex, MipLevel: 0},
		make([]byte, 4),
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: 4, RowsPerImage: 1},
		&hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	); err != nil {
		p.release()
		return nil, fmt.Errorf("%w: clear placeholder: %w", mosaic.ErrUnsupportedContext, err)
	}
	if err := p.bind(placeholder); err != nil {
		p.release()
		return nil, fmt.Errorf("%w: %w", mosaic.ErrUnsupportedContext, err)
	}
	return p, nil
}

// createProgram compiles the effect shader and builds the render pipeline.
// Bind group layout:
//
//	Binding 0: Params (uniform buffer, fragment)
//	Binding 1: source texture (texture_2d<f32>, fragment, read with textureLoad)
func (p *EffectPipeline) createProgram() error {
	src := hal.ShaderSource{WGSL: shader.Source}
	if p.cfg.spirv {
		code, err := shader.Compile()
		if err != nil {
			return err
		}
		src = hal.ShaderSource{SPIRV: code}
	}
	module, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "mosaic_shader",
		Source: src,
	})
	if err != nil {
		return fmt.Errorf("compile mosaic shader: %w", err)
	}
	p.shader = module

	bindLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "mosaic_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create mosaic bind group layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "mosaic_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create mosaic pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "mosaic_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: shader.VertexEntryPoint,
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: shader.FragmentEntryPoint,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    targetFormat,
					Blend:     nil, // replace: the pass clears to transparent first
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create mosaic pipeline: %w", err)
	}
	p.pipeline = pipeline
	return nil
}

func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: shader.QuadVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
			},
		},
	}
}

func (p *EffectPipeline) createBuffers() error {
	verts := shader.QuadVertices()
	vertBuf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "mosaic_quad",
		Size:  uint64(len(verts)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create quad buffer: %w", err)
	}
	p.vertBuf = vertBuf
	if err := p.queue.WriteBuffer(vertBuf, 0, verts); err != nil {
		return fmt.Errorf("write quad buffer: %w", err)
	}

	uniformBuf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "mosaic_params",
		Size:  shader.UniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	p.uniformBuf = uniformBuf
	return nil
}

func (p *EffectPipeline) createSourceTexture(label string, w, h int) (*sourceTexture, error) {
	tex, err := p.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1}, //nolint:gosec // bounded by maxTexture
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s texture: %w", label, err)
	}
	view, err := p.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		p.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create %s view: %w", label, err)
	}
	return &sourceTexture{tex: tex, view: view, width: w, height: h}, nil
}

func (p *EffectPipeline) destroySourceTexture(st *sourceTexture) {
	if st == nil {
		return
	}
	if st.view != nil {
		p.device.DestroyTextureView(st.view)
	}
	if st.tex != nil {
		p.device.DestroyTexture(st.tex)
	}
}

// bind points the bind group at st, rebuilding it only when st changes.
func (p *EffectPipeline) bind(st *sourceTexture) error {
	if p.bound == st && p.bindGroup != nil {
		return nil
	}
	bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "mosaic_bind_group",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.uniformBuf.NativeHandle(), Offset: 0, Size: shader.UniformSize}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: st.view.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
	}
	p.bindGroup = bg
	p.bound = st
	return nil
}

// Size implements mosaic.Surface.
func (p *EffectPipeline) Size() (int, int) { return p.width, p.height }

// Resize implements mosaic.Pipeline. The render target and readback buffer
// are reallocated only when the size changes.
func (p *EffectPipeline) Resize(w, h int) error {
	if p.destroyed {
		return errDestroyed
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", mosaic.ErrInvalidDimensions, w, h)
	}
	if w > p.cfg.maxTexture || h > p.cfg.maxTexture {
		return fmt.Errorf("%w: %dx%d exceeds device limit %d", mosaic.ErrInvalidDimensions, w, h, p.cfg.maxTexture)
	}
	if w == p.width && h == p.height && p.target != nil {
		return nil
	}
	p.destroyTarget()

	size := hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1} //nolint:gosec // checked against maxTexture
	target, err := p.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "mosaic_target",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        targetFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create target texture: %w", err)
	}
	p.target = target

	view, err := p.device.CreateTextureView(target, &hal.TextureViewDescriptor{
		Label:         "mosaic_target_view",
		Format:        targetFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		p.destroyTarget()
		return fmt.Errorf("create target view: %w", err)
	}
	p.targetView = view

	// WebGPU (and DX12) requires BytesPerRow aligned to 256 bytes.
	row := size.Width * 4
	p.stagingRow = (row + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	staging, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "mosaic_staging",
		Size:  uint64(p.stagingRow) * uint64(size.Height),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		p.destroyTarget()
		return fmt.Errorf("create staging buffer: %w", err)
	}
	p.staging = staging

	p.width, p.height = w, h
	p.pixmap = image.NewNRGBA(image.Rect(0, 0, w, h))
	slogger().Debug("gpu: surface resized", "width", w, "height", h, "bytesPerRow", p.stagingRow)
	return nil
}

func (p *EffectPipeline) destroyTarget() {
	if p.staging != nil {
		p.device.DestroyBuffer(p.staging)
		p.staging = nil
	}
	if p.targetView != nil {
		p.device.DestroyTextureView(p.targetView)
		p.targetView = nil
	}
	if p.target != nil {
		p.device.DestroyTexture(p.target)
		p.target = nil
	}
	p.width, p.height = 0, 0
	p.pixmap = nil
}

// Upload implements mosaic.Pipeline. Frames larger than the device's
// maximum texture dimension are scaled down to fit first.
func (p *EffectPipeline) Upload(frame image.Image) error {
	if p.destroyed {
		return errDestroyed
	}
	if frame == nil {
		return p.bind(p.placeholder)
	}
	b := frame.Bounds()
	if b.Empty() {
		return p.bind(p.placeholder)
	}
	if b.Dx() > p.cfg.maxTexture || b.Dy() > p.cfg.maxTexture {
		limit := uint(p.cfg.maxTexture) //nolint:gosec // positive
		frame = resize.Thumbnail(limit, limit, frame, resize.Bilinear)
		b = frame.Bounds()
	}
	w, h := b.Dx(), b.Dy()

	pix := p.texels(frame)

	if p.source == nil || p.source.width != w || p.source.height != h {
		st, err := p.createSourceTexture("mosaic_source", w, h)
		if err != nil {
			return err
		}
		if p.bound == p.source {
			// Keep the bind group valid until the new texture is bound.
			if err := p.bind(st); err != nil {
				p.destroySourceTexture(st)
				return err
			}
		}
		p.destroySourceTexture(p.source)
		p.source = st
		slogger().Debug("gpu: source texture reallocated", "width", w, "height", h)
	}

	if err := p.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: p.source.tex, MipLevel: 0},
		pix,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(w * 4), RowsPerImage: uint32(h)}, //nolint:gosec // bounded by maxTexture
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},            //nolint:gosec // bounded by maxTexture
	); err != nil {
		return fmt.Errorf("write source texture: %w", err)
	}
	return p.bind(p.source)
}

// texels returns tightly packed straight-alpha RGBA rows for frame.
func (p *EffectPipeline) texels(frame image.Image) []byte {
	b := frame.Bounds()
	if n, ok := frame.(*image.NRGBA); ok && n.Stride == 4*b.Dx() {
		off := n.PixOffset(b.Min.X, b.Min.Y)
		return n.Pix[off : off+n.Stride*b.Dy()]
	}
	if p.uploadStage == nil || p.uploadStage.Rect.Dx() != b.Dx() || p.uploadStage.Rect.Dy() != b.Dy() {
		p.uploadStage = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	draw.Draw(p.uploadStage, p.uploadStage.Rect, frame, b.Min, draw.Src)
	return p.uploadStage.Pix
}

// Draw implements mosaic.Pipeline: clear to transparent, draw the quad,
// then copy the result into the CPU pixmap.
func (p *EffectPipeline) Draw(u shader.Uniforms) error {
	if p.destroyed {
		return errDestroyed
	}
	if p.target == nil {
		return fmt.Errorf("%w: surface not sized", mosaic.ErrInvalidDimensions)
	}
	if err := p.queue.WriteBuffer(p.uniformBuf, 0, u.Bytes()); err != nil {
		return fmt.Errorf("write uniforms: %w", err)
	}

	encoder, err := p.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "mosaic_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("mosaic_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "mosaic_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       p.targetView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, p.bindGroup, nil)
	rp.SetVertexBuffer(0, p.vertBuf, 0)
	rp.Draw(shader.QuadVertexCount, 1, 0, 0)
	rp.End()

	w, h := uint32(p.width), uint32(p.height) //nolint:gosec // checked in Resize
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: p.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(p.target, p.staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: p.stagingRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: p.target, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: p.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer p.device.FreeCommandBuffer(cmdBuf)

	idx, err := p.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := waitSubmission(p.queue, idx, submitTimeout); err != nil {
		return err
	}
	return p.readback()
}

// readback copies the staging buffer into the pixmap, dropping row padding.
func (p *EffectPipeline) readback() error {
	size := uint64(p.stagingRow) * uint64(p.height) //nolint:gosec // positive
	mapping, err := p.device.MapBuffer(p.staging, 0, size)
	if err != nil {
		return fmt.Errorf("map staging buffer: %w", err)
	}
	defer func() { _ = p.device.UnmapBuffer(p.staging) }()

	src := unsafe.Slice((*byte)(mapping.Ptr), size)
	unpadRows(p.pixmap.Pix, src, p.width*4, int(p.stagingRow), p.height)
	return nil
}

// unpadRows copies height rows of rowBytes from src (pitch srcPitch) to
// tightly packed dst.
func unpadRows(dst, src []byte, rowBytes, srcPitch, height int) {
	for y := range height {
		copy(dst[y*rowBytes:(y+1)*rowBytes], src[y*srcPitch:y*srcPitch+rowBytes])
	}
}

// waitSubmission polls the queue until submission idx has completed.
func waitSubmission(q hal.Queue, idx uint64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for q.PollCompleted() < idx {
		if time.Now().After(deadline) {
			return fmt.Errorf("wait for GPU: submission %d not complete after %v", idx, timeout)
		}
		time.Sleep(100 * time.Microsecond)
	}
	return nil
}

// Snapshot implements mosaic.Surface.
func (p *EffectPipeline) Snapshot() (*image.NRGBA, error) {
	if p.destroyed {
		return nil, errDestroyed
	}
	if p.pixmap == nil {
		return nil, fmt.Errorf("%w: surface not sized", mosaic.ErrInvalidDimensions)
	}
	out := image.NewNRGBA(p.pixmap.Rect)
	copy(out.Pix, p.pixmap.Pix)
	return out, nil
}

// Destroy implements mosaic.Pipeline.
func (p *EffectPipeline) Destroy() {
	if p.destroyed {
		return
	}
	p.release()
	if p.cfg.onDestroy != nil {
		p.cfg.onDestroy(p)
	}
}

// release frees everything in reverse creation order.
func (p *EffectPipeline) release() {
	p.destroyed = true
	if p.device == nil {
		return
	}
	p.destroyTarget()
	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	p.bound = nil
	p.destroySourceTexture(p.source)
	p.source = nil
	p.destroySourceTexture(p.placeholder)
	p.placeholder = nil
	if p.uniformBuf != nil {
		p.device.DestroyBuffer(p.uniformBuf)
		p.uniformBuf = nil
	}
	if p.vertBuf != nil {
		p.device.DestroyBuffer(p.vertBuf)
		p.vertBuf = nil
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
	p.uploadStage = nil
}
