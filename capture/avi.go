package capture

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/icza/mjpeg"
)

// AVIEncoder wraps Motion JPEG frames in a RIFF AVI container with one
// video stream and an idx1 index. It is the default capture format.
//
// The container is assembled in a temporary directory, since the AVI
// writer patches its headers in place on Close.
type AVIEncoder struct {
	MJPEGEncoder

	// TempDir is where the container is assembled. Empty means
	// os.TempDir.
	TempDir string
}

var _ Encoder = (*AVIEncoder)(nil)

// Extension implements Encoder.
func (e *AVIEncoder) Extension() string { return "avi" }

// MIMEType implements Encoder.
func (e *AVIEncoder) MIMEType() string { return "video/x-msvideo" }

// Finalize implements Encoder. Zero chunks produce a valid file with an
// empty movie list. The frame rate is stored as a whole number of frames
// per second.
func (e *AVIEncoder) Finalize(chunks [][]byte, _ time.Duration) ([]byte, error) {
	fps := e.fps
	if fps <= 0 {
		fps = DefaultFPS
	}

	dir, err := os.MkdirTemp(e.TempDir, "mosaic-avi-")
	if err != nil {
		return nil, fmt.Errorf("capture: avi: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "capture.avi")
	aw, err := mjpeg.New(path, int32(e.width), int32(e.height), int32(max(math.Round(fps), 1)))
	if err != nil {
		return nil, fmt.Errorf("capture: avi: %w", err)
	}
	for i, c := range chunks {
		if err := aw.AddFrame(c); err != nil {
			_ = aw.Close()
			return nil, fmt.Errorf("capture: avi frame %d: %w", i, err)
		}
	}
	if err := aw.Close(); err != nil {
		return nil, fmt.Errorf("capture: avi: %w", err)
	}
	return os.ReadFile(path)
}
