package media

import (
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/gogpu/mosaic"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Still is a decoded still image. It implements mosaic.Source and
// mosaic.Sizer.
type Still struct {
	img    image.Image
	format string
}

var (
	_ mosaic.Source = (*Still)(nil)
	_ mosaic.Sizer  = (*Still)(nil)
)

// NewStill wraps an already decoded image.
func NewStill(img image.Image) *Still {
	return &Still{img: img}
}

// Decode reads a PNG, JPEG, GIF (first frame), BMP or WebP image from r.
func Decode(r io.Reader) (*Still, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mosaic.ErrSourceDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty %s image", mosaic.ErrSourceDecode, format)
	}
	mosaic.Logger().Debug("media: decoded still",
		"format", format, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return &Still{img: img, format: format}, nil
}

// Open decodes the image file at path.
func Open(path string) (*Still, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mosaic.ErrSourceDecode, err)
	}
	defer f.Close()
	return Decode(f)
}

// Frame implements mosaic.Source.
func (s *Still) Frame() image.Image { return s.img }

// Size implements mosaic.Sizer.
func (s *Still) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Format returns the name of the decoder that read the image, or "" for
// images created with NewStill.
func (s *Still) Format() string { return s.format }
