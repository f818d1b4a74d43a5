package rimage

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ConvertAndNormalize converts an 8-bit grayscale image to a
// normalized float intensity image in [0, 1].
func ConvertAndNormalize(src *image.Gray) *Image {
	b := src.Bounds()
	out := NewImage(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.SetXY(x, y, float32(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)/255.0)
		}
	}
	return out
}

// NewImageFromGray converts any image to a normalized grayscale
// intensity image, using the luminance of each pixel.
func NewImageFromGray(src image.Image) *Image {
	gray := imaging.Grayscale(src)
	b := gray.Bounds()
	out := NewImage(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			// Grayscale leaves R == G == B.
			out.SetXY(x, y, float32(gray.NRGBAAt(b.Min.X+x, b.Min.Y+y).R)/255.0)
		}
	}
	return out
}

// NewImageFromFile loads an image file and converts it to a normalized
// grayscale intensity image.
func NewImageFromFile(path string) (*Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load image %q", path)
	}
	return NewImageFromGray(img), nil
}
