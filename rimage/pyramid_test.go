package rimage

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestImagePyramidDimensions(t *testing.T) {
	img := NewImage(130, 66)
	p, err := NewImagePyramid(img, 3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Levels(), test.ShouldEqual, 3)
	test.That(t, p.Images[0], test.ShouldEqual, img)
	test.That(t, p.Images[1].Width(), test.ShouldEqual, 65)
	test.That(t, p.Images[1].Height(), test.ShouldEqual, 33)
	test.That(t, p.Images[2].Width(), test.ShouldEqual, 32)
	test.That(t, p.Images[2].Height(), test.ShouldEqual, 16)
}

func TestImagePyramidRejectsBadSizes(t *testing.T) {
	_, err := NewImagePyramid(NewImage(64, 64), 0)
	test.That(t, err, test.ShouldNotBeNil)

	// 64 → 32 → 16 → 8 → 4: the fifth level is too small to sample.
	_, err = NewImagePyramid(NewImage(64, 64), 5)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewImagePyramid(NewImage(64, 64), 4)
	test.That(t, err, test.ShouldBeNil)
}

func TestImagePyramidConstantStaysConstant(t *testing.T) {
	img := NewImage(64, 64)
	for i := range img.Data() {
		img.Data()[i] = 0.5
	}
	p, err := NewImagePyramid(img, 4)
	test.That(t, err, test.ShouldBeNil)
	for l := 1; l < 4; l++ {
		for _, v := range p.Images[l].Data() {
			test.That(t, v, test.ShouldAlmostEqual, 0.5, 1e-6)
		}
	}
}

func TestImagePyramidSmooths(t *testing.T) {
	// A low-frequency sinusoid survives downsampling with reduced but
	// clearly nonzero contrast.
	img := NewImage(128, 128)
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			img.SetXY(x, y, 0.5+0.25*float32(math.Sin(2*math.Pi*float64(x)/32)))
		}
	}
	p, err := NewImagePyramid(img, 3)
	test.That(t, err, test.ShouldBeNil)
	lo, hi := p.Images[2].MinMax()
	test.That(t, float64(hi-lo), test.ShouldBeGreaterThan, 0.2)
	test.That(t, float64(hi), test.ShouldBeLessThan, 0.76)
	test.That(t, float64(lo), test.ShouldBeGreaterThan, 0.24)
}

func TestDepthMapPyramidConstant(t *testing.T) {
	dm := NewEmptyDepthMap(64, 64)
	dm.Fill(2.0)
	p, err := NewDepthMapPyramid(dm, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Levels(), test.ShouldEqual, 4)
	for l := 0; l < 4; l++ {
		for _, v := range p.DepthMaps[l].Data() {
			test.That(t, v, test.ShouldAlmostEqual, 2.0, 1e-5)
		}
	}
}

func TestDepthMapPyramidNaNPropagates(t *testing.T) {
	dm := NewEmptyDepthMap(64, 64)
	p, err := NewDepthMapPyramid(dm, 3)
	test.That(t, err, test.ShouldBeNil)
	for l := 0; l < 3; l++ {
		test.That(t, p.DepthMaps[l].ValidCount(), test.ShouldEqual, 0)
	}

	// A single hole poisons its smoothing neighborhood one level down.
	dm2 := NewEmptyDepthMap(64, 64)
	dm2.Fill(1.0)
	dm2.SetDepth(20, 20, float32(math.NaN()))
	p2, err := NewDepthMapPyramid(dm2, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p2.DepthMaps[1].ValidCount(), test.ShouldBeLessThan, 32*32)
	test.That(t, p2.DepthMaps[1].ValidCount(), test.ShouldBeGreaterThan, 0)
}
