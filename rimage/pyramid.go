package rimage

import (
	"github.com/pkg/errors"
)

// ImagePyramid is an ordered stack of progressively downsampled
// images. Level 0 is the original resolution; level ℓ has both
// dimensions halved ℓ times (integer division).
type ImagePyramid struct {
	Images []*Image
}

// DepthMapPyramid is the depth counterpart of ImagePyramid. Invalid
// (NaN) cells poison their downsampled neighborhood, which is the
// standard behavior of Gaussian pyramid construction on depth.
type DepthMapPyramid struct {
	DepthMaps []*DepthMap
}

// The 5-tap binomial kernel used for pyramid smoothing.
var pyramidKernel = [5]float32{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}

// NewImagePyramid builds a Gaussian pyramid with the given number of
// levels. Every level must remain large enough to sample with a
// 2-pixel border.
func NewImagePyramid(img *Image, levels int) (*ImagePyramid, error) {
	if levels < 1 {
		return nil, errors.Errorf("pyramid needs at least 1 level, got %d", levels)
	}
	if err := checkPyramidSize(img.Width(), img.Height(), levels); err != nil {
		return nil, err
	}
	p := &ImagePyramid{Images: make([]*Image, levels)}
	p.Images[0] = img
	for l := 1; l < levels; l++ {
		prev := p.Images[l-1]
		w, h := prev.Width()/2, prev.Height()/2
		next := NewImage(w, h)
		downsampleHalf(prev.data, prev.Width(), prev.Height(), next.data)
		p.Images[l] = next
	}
	return p, nil
}

// NewDepthMapPyramid builds a Gaussian pyramid over a depth map.
func NewDepthMapPyramid(dm *DepthMap, levels int) (*DepthMapPyramid, error) {
	if levels < 1 {
		return nil, errors.Errorf("pyramid needs at least 1 level, got %d", levels)
	}
	if err := checkPyramidSize(dm.Width(), dm.Height(), levels); err != nil {
		return nil, err
	}
	p := &DepthMapPyramid{DepthMaps: make([]*DepthMap, levels)}
	p.DepthMaps[0] = dm
	for l := 1; l < levels; l++ {
		prev := p.DepthMaps[l-1]
		w, h := prev.Width()/2, prev.Height()/2
		next := &DepthMap{width: w, height: h, data: make([]float32, w*h)}
		downsampleHalf(prev.data, prev.Width(), prev.Height(), next.data)
		p.DepthMaps[l] = next
	}
	return p, nil
}

// Levels returns the number of pyramid levels.
func (p *ImagePyramid) Levels() int {
	return len(p.Images)
}

// Levels returns the number of pyramid levels.
func (p *DepthMapPyramid) Levels() int {
	return len(p.DepthMaps)
}

func checkPyramidSize(w, h, levels int) error {
	for l := 0; l < levels; l++ {
		if w < 8 || h < 8 {
			return errors.Errorf("image too small for %d pyramid levels (level %d would be %dx%d)", levels, l, w, h)
		}
		w /= 2
		h /= 2
	}
	return nil
}

// downsampleHalf smooths src with the separable binomial kernel and
// decimates by two. dst must hold (w/2)*(h/2) values. Borders reflect.
func downsampleHalf(src []float32, w, h int, dst []float32) {
	ow := w / 2
	oh := h / 2

	// Horizontal pass at the columns that survive decimation.
	tmp := make([]float32, ow*h)
	for y := 0; y < h; y++ {
		row := src[y*w : y*w+w]
		out := tmp[y*ow : y*ow+ow]
		for ox := 0; ox < ow; ox++ {
			x := 2 * ox
			var sum float32
			for k := -2; k <= 2; k++ {
				sum += row[reflectIndex(x+k, w)] * pyramidKernel[k+2]
			}
			out[ox] = sum
		}
	}

	// Vertical pass at the rows that survive decimation.
	for oy := 0; oy < oh; oy++ {
		y := 2 * oy
		out := dst[oy*ow : oy*ow+ow]
		for ox := 0; ox < ow; ox++ {
			var sum float32
			for k := -2; k <= 2; k++ {
				sum += tmp[reflectIndex(y+k, h)*ow+ox] * pyramidKernel[k+2]
			}
			out[ox] = sum
		}
	}
}

func reflectIndex(idx, size int) int {
	if idx < 0 {
		return -idx
	}
	if idx >= size {
		return 2*size - 2 - idx
	}
	return idx
}
