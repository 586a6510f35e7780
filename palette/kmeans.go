// Package palette extracts color palettes by k-means clustering in CIE Lab
// space, where Euclidean distance follows perceived color difference.
package palette

import (
	"cmp"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/lucasb-eyer/go-colorful"
)

// Defaults for Options fields left at zero.
const (
	DefaultIterations = 16
	DefaultMaxSamples = 1 << 14
)

// Options tune KMeans.
type Options struct {
	// Seed makes centroid initialization reproducible.
	Seed uint64

	// Iterations caps the refinement passes.
	Iterations int

	// MaxSamples bounds the number of pixels clustered. Larger images
	// are sampled on a regular grid.
	MaxSamples int

	// Transparent reserves palette index 0 for color.Transparent when the
	// image has pixels with alpha below 128.
	Transparent bool
}

type sample struct {
	l, a, b float64
}

func (s sample) dist(o sample) float64 {
	dl, da, db := s.l-o.l, s.a-o.a, s.b-o.b
	return dl*dl + da*da + db*db
}

// KMeans returns a palette of at most k colors representative of img.
// The result is deterministic for a given image and Options. An image
// without opaque pixels yields a single transparent (or black) entry.
func KMeans(img image.Image, k int, opts Options) color.Palette {
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultIterations
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = DefaultMaxSamples
	}

	samples, hasTransparent := collect(img, opts.MaxSamples)
	reserve := opts.Transparent && hasTransparent

	var pal color.Palette
	if reserve {
		pal = append(pal, color.Transparent)
		k--
	}
	if len(samples) == 0 || k <= 0 {
		if len(pal) == 0 {
			pal = append(pal, color.Black)
		}
		return pal
	}

	centers := cluster(samples, k, opts)
	for _, c := range centers {
		r, g, b := colorful.Lab(c.l, c.a, c.b).Clamped().RGB255()
		pal = append(pal, color.NRGBA{R: r, G: g, B: b, A: 255})
	}
	return pal
}

// collect converts up to limit pixels of img to Lab.
func collect(img image.Image, limit int) ([]sample, bool) {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return nil, false
	}
	step := 1
	if n > limit {
		step = int(math.Ceil(math.Sqrt(float64(n) / float64(limit))))
	}

	samples := make([]sample, 0, min(n, limit))
	transparent := false
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.A < 128 {
				transparent = true
				continue
			}
			l, a, bb := colorful.Color{
				R: float64(c.R) / 255,
				G: float64(c.G) / 255,
				B: float64(c.B) / 255,
			}.Lab()
			samples = append(samples, sample{l, a, bb})
		}
	}
	return samples, transparent
}

// cluster runs Lloyd's algorithm seeded with k-means++.
func cluster(samples []sample, k int, opts Options) []sample {
	distinct := unique(samples)
	if len(distinct) <= k {
		return distinct
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	centers := seed(samples, k, rng)
	assign := make([]int, len(samples))
	for i := range assign {
		assign[i] = -1
	}

	for range opts.Iterations {
		changed := false
		for i, s := range samples {
			best := nearest(centers, s)
			if best != assign[i] {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([]sample, len(centers))
		counts := make([]int, len(centers))
		for i, s := range samples {
			c := assign[i]
			sums[c].l += s.l
			sums[c].a += s.a
			sums[c].b += s.b
			counts[c]++
		}
		for c := range centers {
			if counts[c] == 0 {
				continue // keep an empty cluster where it was
			}
			n := float64(counts[c])
			centers[c] = sample{sums[c].l / n, sums[c].a / n, sums[c].b / n}
		}
	}

	slices.SortFunc(centers, func(x, y sample) int { return cmp.Compare(x.l, y.l) })
	return centers
}

// seed picks k initial centers with k-means++.
func seed(samples []sample, k int, rng *rand.Rand) []sample {
	centers := make([]sample, 0, k)
	centers = append(centers, samples[rng.IntN(len(samples))])

	d := make([]float64, len(samples))
	for len(centers) < k {
		var total float64
		for i, s := range samples {
			d[i] = s.dist(centers[nearest(centers, s)])
			total += d[i]
		}
		if total == 0 {
			break
		}
		r := rng.Float64() * total
		pick := len(samples) - 1
		for i, w := range d {
			r -= w
			if r <= 0 {
				pick = i
				break
			}
		}
		centers = append(centers, samples[pick])
	}
	return centers
}

func nearest(centers []sample, s sample) int {
	best, bestD := 0, math.Inf(1)
	for i, c := range centers {
		if d := s.dist(c); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// unique returns the distinct samples ordered by lightness.
func unique(samples []sample) []sample {
	seen := make(map[sample]struct{}, len(samples))
	out := make([]sample, 0)
	for _, s := range samples {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	slices.SortFunc(out, func(x, y sample) int {
		if c := cmp.Compare(x.l, y.l); c != 0 {
			return c
		}
		if c := cmp.Compare(x.a, y.a); c != 0 {
			return c
		}
		return cmp.Compare(x.b, y.b)
	})
	return out
}
