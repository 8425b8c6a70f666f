// Package imageutil decodes user supplied icon images and crops them to
// square shortcut icons.
package imageutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	// Registered decoders for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// defaultMaxPixels bounds decoded image size (width*height). 48 MP covers
// full resolution phone camera output.
const defaultMaxPixels = 48 * 1000 * 1000

var (
	// ErrEmptyInput is returned when there are no bytes to decode.
	ErrEmptyInput = errors.New("imageutil: empty input")
	// ErrTooLarge is returned when the encoded image header declares more
	// pixels than the codec accepts.
	ErrTooLarge = errors.New("imageutil: image too large")
)

// Codec decodes encoded images. The zero value accepts images up to
// defaultMaxPixels.
type Codec struct {
	// MaxPixels caps width*height read from the image header. 0 means default.
	MaxPixels int
}

// Decode decodes raw as PNG, JPEG, GIF, BMP, TIFF or WebP. The header is
// checked before the full decode so oversized images are rejected without
// allocating their pixel buffer.
func (c Codec) Decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyInput
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("imageutil: decode config: %w", err)
	}
	maxPixels := c.MaxPixels
	if maxPixels <= 0 {
		maxPixels = defaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("imageutil: %s image has no pixels (%dx%d)", format, cfg.Width, cfg.Height)
	}
	if cfg.Width > maxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d %s", ErrTooLarge, cfg.Width, cfg.Height, format)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("imageutil: decode %s: %w", format, err)
	}
	return img, nil
}
