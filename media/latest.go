package media

import (
	"image"
	"sync"

	"github.com/gogpu/mosaic"
)

// Latest is a single-slot frame cell with overwrite semantics. Producers
// Publish from any goroutine; the Render Loop reads the current frame with
// Frame and never blocks or sees a queue of old frames.
//
// A published frame must not be modified afterwards. Producers allocate a
// new image per frame or hand over ownership.
type Latest struct {
	mu    sync.Mutex
	frame image.Image
	size  image.Point
	read  bool // current frame has been returned by Frame
	stats LatestStats
}

// LatestStats counts cell traffic.
type LatestStats struct {
	Published uint64 // frames handed to Publish
	Dropped   uint64 // frames overwritten before any Frame call saw them
}

var (
	_ mosaic.Source = (*Latest)(nil)
	_ mosaic.Sizer  = (*Latest)(nil)
)

// NewLatest returns an empty cell.
func NewLatest() *Latest {
	return &Latest{}
}

// Publish replaces the current frame. A nil frame clears the cell.
func (l *Latest) Publish(frame image.Image) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frame != nil && !l.read {
		l.stats.Dropped++
	}
	l.stats.Published++
	l.frame = frame
	l.read = false
	if frame != nil {
		l.size = frame.Bounds().Size()
	}
}

// Frame implements mosaic.Source. It returns the most recently published
// frame, or nil if nothing has been published.
func (l *Latest) Frame() image.Image {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.read = true
	return l.frame
}

// Size implements mosaic.Sizer with the size of the last non-nil frame.
func (l *Latest) Size() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size.X, l.size.Y
}

// SetSize records the intrinsic size before the first frame arrives, so a
// loop can size its container without waiting for decode.
func (l *Latest) SetSize(width, height int) {
	l.mu.Lock()
	l.size = image.Pt(width, height)
	l.mu.Unlock()
}

// Stats returns a snapshot of the cell counters.
func (l *Latest) Stats() LatestStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
