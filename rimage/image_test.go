package rimage

import (
	"image"
	"image/color"
	"math"
	"testing"

	"go.viam.com/test"
)

func TestImageBasics(t *testing.T) {
	img := NewImage(8, 4)
	test.That(t, img.Width(), test.ShouldEqual, 8)
	test.That(t, img.Height(), test.ShouldEqual, 4)
	test.That(t, img.Cols(), test.ShouldEqual, 8)
	test.That(t, img.Rows(), test.ShouldEqual, 4)

	img.SetXY(3, 2, 0.5)
	test.That(t, img.GetXY(3, 2), test.ShouldEqual, float32(0.5))
	test.That(t, img.Data()[2*8+3], test.ShouldEqual, float32(0.5))

	clone := img.Clone()
	clone.SetXY(3, 2, 0.25)
	test.That(t, img.GetXY(3, 2), test.ShouldEqual, float32(0.5))

	lo, hi := img.MinMax()
	test.That(t, lo, test.ShouldEqual, float32(0))
	test.That(t, hi, test.ShouldEqual, float32(0.5))
}

func TestNewImageFromData(t *testing.T) {
	_, err := NewImageFromData(4, 4, make([]float32, 15))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewImageFromData(0, 4, nil)
	test.That(t, err, test.ShouldNotBeNil)

	img, err := NewImageFromData(4, 2, []float32{0, 1, 2, 3, 4, 5, 6, 7})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.GetXY(1, 1), test.ShouldEqual, float32(5))
}

func TestDepthMapBasics(t *testing.T) {
	dm := NewEmptyDepthMap(6, 5)
	test.That(t, dm.ValidCount(), test.ShouldEqual, 0)
	test.That(t, math.IsNaN(float64(dm.GetDepth(3, 3))), test.ShouldBeTrue)

	dm.SetDepth(3, 3, 1.5)
	test.That(t, dm.GetDepth(3, 3), test.ShouldEqual, float32(1.5))
	test.That(t, dm.ValidCount(), test.ShouldEqual, 1)

	dm.Fill(2.0)
	test.That(t, dm.ValidCount(), test.ShouldEqual, 30)

	_, err := NewDepthMapFromData(3, 3, make([]float32, 2))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConvertAndNormalize(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 3))
	gray.SetGray(1, 1, color.Gray{Y: 255})
	gray.SetGray(2, 2, color.Gray{Y: 51})

	img := ConvertAndNormalize(gray)
	test.That(t, img.Width(), test.ShouldEqual, 4)
	test.That(t, img.Height(), test.ShouldEqual, 3)
	test.That(t, img.GetXY(1, 1), test.ShouldEqual, float32(1.0))
	test.That(t, img.GetXY(2, 2), test.ShouldAlmostEqual, 0.2, 1e-6)
	test.That(t, img.GetXY(0, 0), test.ShouldEqual, float32(0))
}
