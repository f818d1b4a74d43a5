package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestNewZeroPose(t *testing.T) {
	p := NewZeroPose()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			expected := 0.0
			if i == j {
				expected = 1.0
			}
			test.That(t, p.At(i, j), test.ShouldEqual, expected)
		}
	}
	test.That(t, p.Log().Norm(), test.ShouldEqual, 0)
}

func TestExpTranslationFirst(t *testing.T) {
	p := Exp(Vector6{1, 2, 3, 0, 0, 0})
	test.That(t, p.Translation().X, test.ShouldAlmostEqual, 1)
	test.That(t, p.Translation().Y, test.ShouldAlmostEqual, 2)
	test.That(t, p.Translation().Z, test.ShouldAlmostEqual, 3)
	// Rotation block stays identity.
	test.That(t, p.At(0, 0), test.ShouldAlmostEqual, 1)
	test.That(t, p.At(0, 1), test.ShouldAlmostEqual, 0)
}

func TestExpRotationConvention(t *testing.T) {
	// A quarter turn about +z takes +x to +y (right-handed).
	p := Exp(Vector6{0, 0, 0, 0, 0, math.Pi / 2})
	v := p.Apply(r3.Vector{X: 1, Y: 0, Z: 0})
	test.That(t, v.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, v.Y, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, v.Z, test.ShouldAlmostEqual, 0, 1e-12)
}

func TestExpSmallMotionIsGeneratorSum(t *testing.T) {
	// For small x, exp(x)·P ≈ P + u + ω×P; the residual Jacobian
	// depends on this matching the generator products exactly.
	x := Vector6{1e-6, -2e-6, 3e-6, 2e-6, 1e-6, -1e-6}
	pt := r3.Vector{X: 0.3, Y: -0.7, Z: 2.1}
	moved := Exp(x).Apply(pt)
	w := x.Rotation()
	expected := pt.Add(x.Translation()).Add(w.Cross(pt))
	test.That(t, moved.X, test.ShouldAlmostEqual, expected.X, 1e-11)
	test.That(t, moved.Y, test.ShouldAlmostEqual, expected.Y, 1e-11)
	test.That(t, moved.Z, test.ShouldAlmostEqual, expected.Z, 1e-11)
}

func TestExpLogRoundTrip(t *testing.T) {
	vectors := []Vector6{
		{0, 0, 0, 0, 0, 0},
		{0.1, -0.2, 0.3, 0, 0, 0},
		{0, 0, 0, 0.4, -0.1, 0.2},
		{0.5, 0.25, -1, 0.3, 0.2, -0.4},
		{1e-9, 0, 0, 0, 1e-9, 0},
	}
	for _, v := range vectors {
		back := Exp(v).Log()
		for i := 0; i < 6; i++ {
			test.That(t, back[i], test.ShouldAlmostEqual, v[i], 1e-9)
		}
	}
}

func TestLogNearPi(t *testing.T) {
	v := Vector6{0, 0, 0, math.Pi, 0, 0}
	back := Exp(v).Log()
	test.That(t, back.Norm(), test.ShouldAlmostEqual, math.Pi, 1e-6)
	test.That(t, math.Abs(back[3]), test.ShouldAlmostEqual, math.Pi, 1e-6)
}

func TestComposeInverse(t *testing.T) {
	p := Exp(Vector6{0.2, -0.1, 0.4, 0.3, -0.2, 0.1})
	q := Exp(Vector6{-0.3, 0.2, 0.1, -0.1, 0.4, 0.2})

	ident := p.Compose(p.Inverse())
	test.That(t, ident.Log().Norm(), test.ShouldBeLessThan, 1e-12)

	// (p·q)⁻¹ = q⁻¹·p⁻¹.
	lhs := p.Compose(q).Inverse()
	rhs := q.Inverse().Compose(p.Inverse())
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			test.That(t, lhs.At(i, j), test.ShouldAlmostEqual, rhs.At(i, j), 1e-12)
		}
	}
}

func TestApplyMatchesMatrix(t *testing.T) {
	p := Exp(Vector6{0.2, 0.3, -0.4, 0.1, 0.2, 0.3})
	pt := r3.Vector{X: 1, Y: 2, Z: 3}
	applied := p.Apply(pt)
	m := p.Matrix()
	test.That(t, applied.X, test.ShouldAlmostEqual, m.At(0, 0)*1+m.At(0, 1)*2+m.At(0, 2)*3+m.At(0, 3))
	test.That(t, applied.Y, test.ShouldAlmostEqual, m.At(1, 0)*1+m.At(1, 1)*2+m.At(1, 2)*3+m.At(1, 3))
	test.That(t, applied.Z, test.ShouldAlmostEqual, m.At(2, 0)*1+m.At(2, 1)*2+m.At(2, 2)*3+m.At(2, 3))
}

func TestNewPoseFromAxisAngle(t *testing.T) {
	p := NewPoseFromAxisAngle(r3.Vector{X: 0, Y: 0, Z: 2}, math.Pi/2)
	v := p.Apply(r3.Vector{X: 1, Y: 0, Z: 0})
	test.That(t, v.Y, test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, p.Translation().Norm(), test.ShouldEqual, 0)

	ident := NewPoseFromAxisAngle(r3.Vector{}, 1.0)
	test.That(t, ident.Log().Norm(), test.ShouldEqual, 0)
}

func TestMat34(t *testing.T) {
	p := NewPoseFromTranslation(r3.Vector{X: 5, Y: 6, Z: 7})
	m := p.Mat34()
	test.That(t, m[3], test.ShouldEqual, 5)
	test.That(t, m[7], test.ShouldEqual, 6)
	test.That(t, m[11], test.ShouldEqual, 7)
	test.That(t, m[0], test.ShouldEqual, 1)
}
