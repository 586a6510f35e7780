// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/mosaic"
	"github.com/gogpu/mosaic/shader"
	"golang.org/x/image/draw"
)

// SoftwareName is the identifier reported by SoftwareBackend.Name.
const SoftwareName = "software"

var errDestroyed = errors.New("render: pipeline used after Destroy")

// SoftwareBackend creates CPU pipelines. It implements mosaic.Backend and
// holds no resources of its own.
type SoftwareBackend struct {
	// MaxDimension limits surface width and height. Zero means 8192, the
	// GPU default limit, so both backends accept the same sizes.
	MaxDimension int
}

var _ mosaic.Backend = (*SoftwareBackend)(nil)

// NewSoftwareBackend creates a software backend with default limits.
func NewSoftwareBackend() *SoftwareBackend {
	return &SoftwareBackend{}
}

// Name implements mosaic.Backend.
func (b *SoftwareBackend) Name() string { return SoftwareName }

// Init implements mosaic.Backend.
func (b *SoftwareBackend) Init() error { return nil }

// Close implements mosaic.Backend.
func (b *SoftwareBackend) Close() {}

// NewPipeline implements mosaic.Backend.
func (b *SoftwareBackend) NewPipeline() (mosaic.Pipeline, error) {
	limit := b.MaxDimension
	if limit <= 0 {
		limit = 8192
	}
	return &SoftwarePipeline{maxDimension: limit}, nil
}

// SoftwarePipeline is the CPU resource bundle: a straight-alpha copy of the
// current source frame and a PixmapTarget. It implements mosaic.Pipeline.
type SoftwarePipeline struct {
	maxDimension int

	target *PixmapTarget
	source *image.NRGBA // nil when no frame is bound

	destroyed bool
}

var _ mosaic.Pipeline = (*SoftwarePipeline)(nil)

// Size implements mosaic.Surface.
func (p *SoftwarePipeline) Size() (int, int) {
	if p.target == nil {
		return 0, 0
	}
	return p.target.Width(), p.target.Height()
}

// Resize implements mosaic.Pipeline.
func (p *SoftwarePipeline) Resize(width, height int) error {
	if p.destroyed {
		return errDestroyed
	}
	if width <= 0 || height <= 0 || width > p.maxDimension || height > p.maxDimension {
		return fmt.Errorf("%w: %dx%d", mosaic.ErrInvalidDimensions, width, height)
	}
	if p.target == nil {
		p.target = NewPixmapTarget(width, height)
		return nil
	}
	p.target.Resize(width, height)
	return nil
}

// Upload implements mosaic.Pipeline. The frame is converted into a reused
// straight-alpha buffer that is reallocated only when its size changes.
func (p *SoftwarePipeline) Upload(frame image.Image) error {
	if p.destroyed {
		return errDestroyed
	}
	if frame == nil || frame.Bounds().Empty() {
		p.source = nil
		return nil
	}
	b := frame.Bounds()
	if p.source == nil || p.source.Rect.Dx() != b.Dx() || p.source.Rect.Dy() != b.Dy() {
		p.source = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	draw.Draw(p.source, p.source.Rect, frame, b.Min, draw.Src)
	return nil
}

// Draw implements mosaic.Pipeline.
func (p *SoftwarePipeline) Draw(u shader.Uniforms) error {
	if p.destroyed {
		return errDestroyed
	}
	if p.target == nil {
		return fmt.Errorf("%w: surface not sized", mosaic.ErrInvalidDimensions)
	}
	if p.source == nil {
		u.HasSource = false
	}
	shader.Apply(p.target.Image(), p.source, u)
	return nil
}

// Snapshot implements mosaic.Surface.
func (p *SoftwarePipeline) Snapshot() (*image.NRGBA, error) {
	if p.destroyed {
		return nil, errDestroyed
	}
	if p.target == nil {
		return nil, fmt.Errorf("%w: surface not sized", mosaic.ErrInvalidDimensions)
	}
	return p.target.Snapshot(), nil
}

// Target returns the drawing surface. It is nil before the first Resize.
func (p *SoftwarePipeline) Target() *PixmapTarget { return p.target }

// Destroy implements mosaic.Pipeline.
func (p *SoftwarePipeline) Destroy() {
	p.destroyed = true
	p.target = nil
	p.source = nil
}
