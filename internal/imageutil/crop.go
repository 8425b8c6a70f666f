package imageutil

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ErrEmptyImage is returned when the source image has no pixels to crop.
var ErrEmptyImage = errors.New("imageutil: empty image")

// CenterSquareRect returns the largest square centered in bounds.
func CenterSquareRect(bounds image.Rectangle) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	side := min(w, h)
	x0 := bounds.Min.X + (w-side)/2
	y0 := bounds.Min.Y + (h-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}

// CenterSquareCrop crops the largest centered square from src and resamples
// it to size x size. The aspect ratio is never distorted: the parts of the
// longer side outside the square are discarded.
func CenterSquareCrop(src image.Image, size int) (*image.RGBA, error) {
	if src == nil {
		return nil, ErrEmptyImage
	}
	if size <= 0 {
		return nil, fmt.Errorf("imageutil: invalid target size %d", size)
	}
	square := CenterSquareRect(src.Bounds())
	if square.Empty() {
		return nil, ErrEmptyImage
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	if square.Dx() == size {
		draw.Draw(dst, dst.Bounds(), src, square.Min, draw.Src)
		return dst, nil
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, square, draw.Src, nil)
	return dst, nil
}
