package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// Encoder turns sampled frames into chunks and chunks into a finished
// container. A Recorder calls Begin once per session, EncodeFrame for each
// sample and Finalize once at the end. Encoders are not safe for
// concurrent use.
type Encoder interface {
	// Begin starts a session with the given frame size and rate.
	Begin(width, height int, fps float64) error

	// EncodeFrame encodes one frame of the Begin size. An empty chunk is
	// allowed and is not accumulated.
	EncodeFrame(img *image.NRGBA) ([]byte, error)

	// Finalize joins the accumulated chunks into one artifact. It must
	// succeed with zero chunks.
	Finalize(chunks [][]byte, d time.Duration) ([]byte, error)

	// Extension is the file extension without the dot.
	Extension() string

	// MIMEType is the media type of the artifact.
	MIMEType() string
}

// DefaultJPEGQuality is used when an encoder's Quality is zero.
const DefaultJPEGQuality = 85

// MJPEGEncoder writes a raw Motion JPEG stream: concatenated JPEG images
// with no container. Players that accept MJPEG over HTTP read it directly,
// and media.MJPEGPlayer plays it back.
type MJPEGEncoder struct {
	// Quality is the JPEG quality, 1-100.
	Quality int

	width, height int
	fps           float64
	buf           bytes.Buffer
}

var _ Encoder = (*MJPEGEncoder)(nil)

// Begin implements Encoder.
func (e *MJPEGEncoder) Begin(width, height int, fps float64) error {
	if width < 0 || height < 0 || fps <= 0 {
		return fmt.Errorf("capture: invalid stream %dx%d at %g fps", width, height, fps)
	}
	e.width, e.height, e.fps = width, height, fps
	return nil
}

// EncodeFrame implements Encoder.
func (e *MJPEGEncoder) EncodeFrame(img *image.NRGBA) ([]byte, error) {
	if img.Rect.Empty() {
		return nil, nil
	}
	q := e.Quality
	if q <= 0 || q > 100 {
		q = DefaultJPEGQuality
	}
	e.buf.Reset()
	if err := jpeg.Encode(&e.buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return bytes.Clone(e.buf.Bytes()), nil
}

// Finalize implements Encoder.
func (e *MJPEGEncoder) Finalize(chunks [][]byte, _ time.Duration) ([]byte, error) {
	return bytes.Join(chunks, nil), nil
}

// Extension implements Encoder.
func (e *MJPEGEncoder) Extension() string { return "mjpeg" }

// MIMEType implements Encoder.
func (e *MJPEGEncoder) MIMEType() string { return "video/x-motion-jpeg" }
