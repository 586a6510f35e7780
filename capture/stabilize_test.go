package capture

import (
	"image"
	"image/color"
	"testing"
	"time"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func near(a, b color.NRGBA, tol int) bool {
	d := func(x, y uint8) bool { return int(x)-int(y) <= tol && int(y)-int(x) <= tol }
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}

var (
	red  = color.NRGBA{255, 0, 0, 255}
	blue = color.NRGBA{0, 0, 255, 255}
)

func TestStabilizerQuantizesFirstFrame(t *testing.T) {
	img := gradient(16, 8)
	orig := append([]byte(nil), img.Pix...)

	s := &Stabilizer{Colors: 4, Alpha: 0.7, Seed: 1}
	out := s.Apply(img)

	if out.Rect != image.Rect(0, 0, 16, 8) {
		t.Fatalf("bounds = %v", out.Rect)
	}
	seen := map[color.NRGBA]bool{}
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			seen[out.NRGBAAt(x, y)] = true
		}
	}
	if len(seen) > 4 {
		t.Errorf("first frame has %d colors, want <= 4", len(seen))
	}
	if string(img.Pix) != string(orig) {
		t.Error("Apply modified its input")
	}
}

func TestStabilizerBlendsWithPrevious(t *testing.T) {
	tests := []struct {
		alpha float64
		want  color.NRGBA
	}{
		{0.5, color.NRGBA{128, 0, 128, 255}},
		{0.7, color.NRGBA{179, 0, 77, 255}},
	}
	for _, tt := range tests {
		s := &Stabilizer{Colors: 2, Alpha: tt.alpha}
		if got := s.Apply(solid(4, 4, red)).NRGBAAt(0, 0); !near(got, red, 2) {
			t.Fatalf("alpha %v: first frame = %v, want %v", tt.alpha, got, red)
		}
		if got := s.Apply(solid(4, 4, blue)).NRGBAAt(2, 2); !near(got, tt.want, 3) {
			t.Errorf("alpha %v: blended = %v, want about %v", tt.alpha, got, tt.want)
		}
	}
}

func TestStabilizerResetAndResize(t *testing.T) {
	s := &Stabilizer{Colors: 2, Alpha: 0.5}
	s.Apply(solid(4, 4, red))
	if got := s.Apply(solid(8, 2, blue)).NRGBAAt(0, 0); !near(got, blue, 2) {
		t.Errorf("resized frame = %v, want unblended %v", got, blue)
	}

	s.Apply(solid(4, 4, red))
	s.Reset()
	if got := s.Apply(solid(4, 4, blue)).NRGBAAt(0, 0); !near(got, blue, 2) {
		t.Errorf("frame after Reset = %v, want unblended %v", got, blue)
	}
}

// frameEncoder keeps the frames it is given.
type frameEncoder struct {
	MJPEGEncoder
	frames []*image.NRGBA
}

func (e *frameEncoder) EncodeFrame(img *image.NRGBA) ([]byte, error) {
	e.frames = append(e.frames, img)
	return []byte{1}, nil
}

func TestRecorderStabilization(t *testing.T) {
	sched, clk := newTestScheduler()
	surface := &fakeSurface{img: solid(4, 4, red)}
	enc := &frameEncoder{}
	var res result
	rec := NewRecorder(sched, enc, WithFPS(10), WithStabilization(2, 0.5), WithCompletion(res.done))

	if err := rec.Start(surface, 300*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	run(sched, clk, 50*time.Millisecond, 10*time.Millisecond)
	surface.img = solid(4, 4, blue)
	run(sched, clk, 400*time.Millisecond, 10*time.Millisecond)

	if res.err != nil || len(enc.frames) != 3 {
		t.Fatalf("frames = %d, err = %v", len(enc.frames), res.err)
	}
	if got := enc.frames[1].NRGBAAt(0, 0); !near(got, color.NRGBA{128, 0, 128, 255}, 3) {
		t.Errorf("frame after the change = %v, want a red/blue blend", got)
	}
	if got := enc.frames[2].NRGBAAt(0, 0); !near(got, color.NRGBA{64, 0, 191, 255}, 3) {
		t.Errorf("third frame = %v, want the blend to converge on blue", got)
	}
}

func TestWithStabilizationDisabled(t *testing.T) {
	o := defaultOptions()
	WithStabilization(8, 0)(&o)
	if o.stab != nil {
		t.Error("alpha 0 should disable stabilization")
	}
	WithStabilization(8, 0.7)(&o)
	if o.stab == nil || o.stab.Alpha != 0.7 || o.stab.Colors != 8 {
		t.Errorf("stabilizer = %+v", o.stab)
	}
}
