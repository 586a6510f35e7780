package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"time"

	"github.com/gogpu/mosaic"
)

// DefaultMJPEGFPS is the playback rate used when MJPEGPlayer.FPS is zero.
const DefaultMJPEGFPS = 30

const maxJPEGFrame = 32 << 20

var (
	jpegSOI = []byte{0xff, 0xd8}
	jpegEOI = []byte{0xff, 0xd9}
)

// ScanJPEG is a bufio.SplitFunc that yields one JPEG image per token,
// from the SOI marker through the EOI marker. Bytes between images, such
// as multipart boundaries, are skipped.
func ScanJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xff that may begin a marker.
		return max(len(data)-1, 0), nil, nil
	}
	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}

// MJPEGPlayer plays a stream of concatenated JPEG images into a Latest
// cell at a fixed rate.
type MJPEGPlayer struct {
	// FPS is the playback rate; zero means DefaultMJPEGFPS.
	FPS int

	// Loop restarts from the beginning at end of stream when the reader
	// is an io.Seeker.
	Loop bool
}

// Play reads frames from r until the stream ends or ctx is canceled.
// Frames that fail to decode are skipped with a warning. It returns nil
// at end of stream, ctx.Err() on cancellation, or a read error wrapping
// mosaic.ErrSourceDecode.
func (p MJPEGPlayer) Play(ctx context.Context, r io.Reader, out *Latest) error {
	fps := p.FPS
	if fps <= 0 {
		fps = DefaultMJPEGFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	seeker, seekable := r.(io.Seeker)
	for {
		n, err := p.playOnce(ctx, r, out, ticker.C)
		if err != nil {
			return err
		}
		if !p.Loop || !seekable || n == 0 {
			return nil
		}
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("%w: rewind: %w", mosaic.ErrSourceDecode, err)
		}
	}
}

// playOnce plays one pass of the stream and returns the number of frames
// published.
func (p MJPEGPlayer) playOnce(ctx context.Context, r io.Reader, out *Latest, tick <-chan time.Time) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxJPEGFrame)
	sc.Split(ScanJPEG)

	published := 0
	for sc.Scan() {
		img, err := jpeg.Decode(bytes.NewReader(sc.Bytes()))
		if err != nil {
			mosaic.Logger().Warn("media: skipping undecodable mjpeg frame", "err", err)
			continue
		}
		if published == 0 {
			b := img.Bounds()
			out.SetSize(b.Dx(), b.Dy())
		}
		out.Publish(img)
		published++

		select {
		case <-ctx.Done():
			return published, ctx.Err()
		case <-tick:
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return published, fmt.Errorf("%w: %w", mosaic.ErrSourceDecode, err)
	}
	return published, nil
}
