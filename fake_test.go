package mosaic

import (
	"errors"
	"image"
	"log/slog"

	"github.com/gogpu/mosaic/shader"
)

// fakeBackend records pipeline lifecycles for loop and registry tests.
type fakeBackend struct {
	name      string
	initErr   error
	setupErr  error
	uploadErr error
	logger    *slog.Logger
	provider  any
	closed    int
	pipelines []*fakePipeline
}

func (b *fakeBackend) Name() string {
	if b.name == "" {
		return "fake"
	}
	return b.name
}

func (b *fakeBackend) Init() error { return b.initErr }

func (b *fakeBackend) NewPipeline() (Pipeline, error) {
	if b.setupErr != nil {
		return nil, b.setupErr
	}
	p := &fakePipeline{uploadErr: b.uploadErr}
	b.pipelines = append(b.pipelines, p)
	return p, nil
}

func (b *fakeBackend) Close() { b.closed++ }

func (b *fakeBackend) SetLogger(l *slog.Logger) { b.logger = l }

func (b *fakeBackend) SetDeviceProvider(p any) error {
	b.provider = p
	return nil
}

// live returns the pipelines that have not been destroyed.
func (b *fakeBackend) live() []*fakePipeline {
	var out []*fakePipeline
	for _, p := range b.pipelines {
		if !p.destroyed {
			out = append(out, p)
		}
	}
	return out
}

var errUseAfterDestroy = errors.New("pipeline used after Destroy")

type fakePipeline struct {
	w, h      int
	uploadErr error
	destroyed bool
	misuse    int

	uploads []image.Image
	draws   []shader.Uniforms
}

func (p *fakePipeline) check() error {
	if p.destroyed {
		p.misuse++
		return errUseAfterDestroy
	}
	return nil
}

func (p *fakePipeline) Size() (int, int) { return p.w, p.h }

func (p *fakePipeline) Snapshot() (*image.NRGBA, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	return image.NewNRGBA(image.Rect(0, 0, p.w, p.h)), nil
}

func (p *fakePipeline) Resize(w, h int) error {
	if err := p.check(); err != nil {
		return err
	}
	p.w, p.h = w, h
	return nil
}

func (p *fakePipeline) Upload(frame image.Image) error {
	if err := p.check(); err != nil {
		return err
	}
	if p.uploadErr != nil {
		return p.uploadErr
	}
	p.uploads = append(p.uploads, frame)
	return nil
}

func (p *fakePipeline) Draw(u shader.Uniforms) error {
	if err := p.check(); err != nil {
		return err
	}
	p.draws = append(p.draws, u)
	return nil
}

func (p *fakePipeline) Destroy() { p.destroyed = true }

// resetBackend clears the registry without closing anything.
func resetBackend() {
	backendMu.Lock()
	backend = nil
	backendMu.Unlock()
}
