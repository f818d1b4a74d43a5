package rimage

import (
	"math"

	"github.com/pkg/errors"
)

// DepthMap is a dense grid of metric depths in meters with the same
// shape and indexing as an Image. NaN marks cells with no depth.
type DepthMap struct {
	width  int
	height int

	data []float32
}

// NewEmptyDepthMap returns a depth map with every cell marked invalid.
func NewEmptyDepthMap(width, height int) *DepthMap {
	data := make([]float32, width*height)
	nan := float32(math.NaN())
	for i := range data {
		data[i] = nan
	}
	return &DepthMap{width: width, height: height, data: data}
}

// NewDepthMapFromData wraps an existing row-major depth buffer.
func NewDepthMapFromData(width, height int, data []float32) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid depth map dimensions %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("data length %d does not match %dx%d", len(data), width, height)
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

func (dm *DepthMap) Width() int {
	return dm.width
}

func (dm *DepthMap) Height() int {
	return dm.height
}

func (dm *DepthMap) Cols() int {
	return dm.width
}

func (dm *DepthMap) Rows() int {
	return dm.height
}

// GetDepth returns the depth at pixel (x, y) in meters.
func (dm *DepthMap) GetDepth(x, y int) float32 {
	return dm.data[y*dm.width+x]
}

// SetDepth sets the depth at pixel (x, y) in meters.
func (dm *DepthMap) SetDepth(x, y int, d float32) {
	dm.data[y*dm.width+x] = d
}

// Data exposes the backing row-major buffer.
func (dm *DepthMap) Data() []float32 {
	return dm.data
}

// Clone returns a deep copy.
func (dm *DepthMap) Clone() *DepthMap {
	out := &DepthMap{width: dm.width, height: dm.height, data: make([]float32, len(dm.data))}
	copy(out.data, dm.data)
	return out
}

// Fill sets every cell to the given depth.
func (dm *DepthMap) Fill(d float32) {
	for i := range dm.data {
		dm.data[i] = d
	}
}

// ValidCount returns the number of cells holding a finite depth.
func (dm *DepthMap) ValidCount() int {
	n := 0
	for _, d := range dm.data {
		if d == d {
			n++
		}
	}
	return n
}
