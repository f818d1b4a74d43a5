// Package rimage defines the dense float32 image grids the tracker
// operates on: normalized grayscale intensity images and metric depth
// maps, plus bilinear sampling and Gaussian pyramid construction.
package rimage

import (
	"math"

	"github.com/pkg/errors"
)

// Image is a dense grayscale intensity grid. Values are normalized to
// [0, 1] and stored row-major with stride equal to the width.
type Image struct {
	width  int
	height int

	data []float32
}

// NewImage returns a zero-filled image of the given dimensions.
func NewImage(width, height int) *Image {
	return &Image{
		width:  width,
		height: height,
		data:   make([]float32, width*height),
	}
}

// NewImageFromData wraps an existing row-major intensity buffer.
func NewImageFromData(width, height int, data []float32) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid image dimensions %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("data length %d does not match %dx%d", len(data), width, height)
	}
	return &Image{width: width, height: height, data: data}, nil
}

func (i *Image) Width() int {
	return i.width
}

func (i *Image) Height() int {
	return i.height
}

func (i *Image) Cols() int {
	return i.width
}

func (i *Image) Rows() int {
	return i.height
}

// GetXY returns the intensity at pixel (x, y).
func (i *Image) GetXY(x, y int) float32 {
	return i.data[y*i.width+x]
}

// SetXY sets the intensity at pixel (x, y).
func (i *Image) SetXY(x, y int, v float32) {
	i.data[y*i.width+x] = v
}

// Data exposes the backing row-major buffer.
func (i *Image) Data() []float32 {
	return i.data
}

// Clone returns a deep copy.
func (i *Image) Clone() *Image {
	out := NewImage(i.width, i.height)
	copy(out.data, i.data)
	return out
}

// SameSize reports whether the other image has identical dimensions.
func (i *Image) SameSize(o *Image) bool {
	return i.width == o.width && i.height == o.height
}

// MinMax returns the smallest and largest intensities in the image.
func (i *Image) MinMax() (float32, float32) {
	lo := float32(math.Inf(1))
	hi := float32(math.Inf(-1))
	for _, v := range i.data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
