// Package spatialmath defines the rigid-body transform math the
// tracker optimizes over: SE(3) poses with composition, inversion and
// the exponential/logarithm maps on the 6-dimensional tangent space.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// smallAngle is the squared-angle threshold below which the Taylor
// expansions of the exp/log coefficients are used.
const smallAngle = 1e-10

// Vector6 is a tangent-space vector of SE(3). The layout is
// translation first (indices 0..2), rotation last (indices 3..5).
type Vector6 [6]float64

// Norm returns the Euclidean norm of the tangent vector.
func (v Vector6) Norm() float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

// Translation returns the translational components.
func (v Vector6) Translation() r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// Rotation returns the rotational components.
func (v Vector6) Rotation() r3.Vector {
	return r3.Vector{X: v[3], Y: v[4], Z: v[5]}
}

// Pose is a rigid transform in SE(3), stored as a row-major 4x4
// homogeneous matrix whose last row is always (0, 0, 0, 1).
type Pose struct {
	m [4][4]float64
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	var p Pose
	p.m[0][0] = 1
	p.m[1][1] = 1
	p.m[2][2] = 1
	p.m[3][3] = 1
	return p
}

// NewPoseFromTranslation returns a pure translation.
func NewPoseFromTranslation(t r3.Vector) Pose {
	p := NewZeroPose()
	p.m[0][3] = t.X
	p.m[1][3] = t.Y
	p.m[2][3] = t.Z
	return p
}

// NewPoseFromAxisAngle returns a rotation of angle radians about the
// given (not necessarily unit) axis, with zero translation.
func NewPoseFromAxisAngle(axis r3.Vector, angle float64) Pose {
	n := axis.Norm()
	if n == 0 {
		return NewZeroPose()
	}
	w := axis.Mul(angle / n)
	return Exp(Vector6{0, 0, 0, w.X, w.Y, w.Z})
}

// NewPoseFromMatrix converts a 4x4 gonum matrix into a Pose.
func NewPoseFromMatrix(m *mat.Dense) Pose {
	var p Pose
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			p.m[i][j] = m.At(i, j)
		}
	}
	return p
}

// At returns the matrix entry at row i, column j.
func (p Pose) At(i, j int) float64 {
	return p.m[i][j]
}

// Matrix returns the pose as a 4x4 gonum matrix.
func (p Pose) Matrix() *mat.Dense {
	out := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out.Set(i, j, p.m[i][j])
		}
	}
	return out
}

// Mat34 returns the top three rows of the pose, row-major.
func (p Pose) Mat34() [12]float64 {
	var out [12]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			out[i*4+j] = p.m[i][j]
		}
	}
	return out
}

// Translation returns the translational part of the pose.
func (p Pose) Translation() r3.Vector {
	return r3.Vector{X: p.m[0][3], Y: p.m[1][3], Z: p.m[2][3]}
}

// Compose returns p·q, the transform that applies q first, then p.
func (p Pose) Compose(q Pose) Pose {
	var out Pose
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			s := p.m[i][3] * q.m[3][j]
			for k := 0; k < 3; k++ {
				s += p.m[i][k] * q.m[k][j]
			}
			out.m[i][j] = s
		}
	}
	out.m[3][3] = 1
	return out
}

// Inverse returns p⁻¹, computed in closed form from the rotation
// transpose.
func (p Pose) Inverse() Pose {
	var out Pose
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.m[i][j] = p.m[j][i]
		}
	}
	for i := 0; i < 3; i++ {
		out.m[i][3] = -(out.m[i][0]*p.m[0][3] + out.m[i][1]*p.m[1][3] + out.m[i][2]*p.m[2][3])
	}
	out.m[3][3] = 1
	return out
}

// Apply transforms the point v by the pose.
func (p Pose) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: p.m[0][0]*v.X + p.m[0][1]*v.Y + p.m[0][2]*v.Z + p.m[0][3],
		Y: p.m[1][0]*v.X + p.m[1][1]*v.Y + p.m[1][2]*v.Z + p.m[1][3],
		Z: p.m[2][0]*v.X + p.m[2][1]*v.Y + p.m[2][2]*v.Z + p.m[2][3],
	}
}

// Exp is the exponential map of SE(3): it converts a tangent vector
// (translation first, rotation last) into a Pose via the Rodrigues
// closed form.
func Exp(x Vector6) Pose {
	u := x.Translation()
	w := x.Rotation()
	theta2 := w.X*w.X + w.Y*w.Y + w.Z*w.Z

	var a, b, c float64 // sinθ/θ, (1−cosθ)/θ², (θ−sinθ)/θ³
	if theta2 < smallAngle {
		a = 1 - theta2/6
		b = 0.5 - theta2/24
		c = 1.0/6 - theta2/120
	} else {
		theta := math.Sqrt(theta2)
		a = math.Sin(theta) / theta
		b = (1 - math.Cos(theta)) / theta2
		c = (theta - math.Sin(theta)) / (theta2 * theta)
	}

	wx := skew(w)
	wx2 := matMul3(wx, wx)

	var p Pose
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r := a*wx[i][j] + b*wx2[i][j]
			if i == j {
				r++
			}
			p.m[i][j] = r
		}
	}

	// V = I + b·ŵ + c·ŵ², t = V·u.
	var v [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v[i][j] = b*wx[i][j] + c*wx2[i][j]
			if i == j {
				v[i][j]++
			}
		}
	}
	p.m[0][3] = v[0][0]*u.X + v[0][1]*u.Y + v[0][2]*u.Z
	p.m[1][3] = v[1][0]*u.X + v[1][1]*u.Y + v[1][2]*u.Z
	p.m[2][3] = v[2][0]*u.X + v[2][1]*u.Y + v[2][2]*u.Z
	p.m[3][3] = 1
	return p
}

// Log is the logarithm map of SE(3), the inverse of Exp.
func (p Pose) Log() Vector6 {
	trace := p.m[0][0] + p.m[1][1] + p.m[2][2]
	cosTheta := (trace - 1) / 2
	if cosTheta > 1 {
		cosTheta = 1
	} else if cosTheta < -1 {
		cosTheta = -1
	}
	theta := math.Acos(cosTheta)
	theta2 := theta * theta

	var w r3.Vector
	switch {
	case theta2 < smallAngle:
		// ω ≈ ½·vee(R − Rᵀ)
		w = r3.Vector{
			X: (p.m[2][1] - p.m[1][2]) / 2,
			Y: (p.m[0][2] - p.m[2][0]) / 2,
			Z: (p.m[1][0] - p.m[0][1]) / 2,
		}
	case math.Pi-theta < 1e-6:
		// Near π the antisymmetric part vanishes; recover the axis
		// from the diagonal of R = I + (2/θ²)·ŵ² scaled to length θ.
		ax := math.Sqrt(math.Max(0, (p.m[0][0]+1)/2))
		ay := math.Sqrt(math.Max(0, (p.m[1][1]+1)/2))
		az := math.Sqrt(math.Max(0, (p.m[2][2]+1)/2))
		if p.m[0][1]+p.m[1][0] < 0 {
			ay = -ay
		}
		if p.m[0][2]+p.m[2][0] < 0 {
			az = -az
		}
		w = r3.Vector{X: ax, Y: ay, Z: az}.Mul(theta)
	default:
		s := theta / (2 * math.Sin(theta))
		w = r3.Vector{
			X: s * (p.m[2][1] - p.m[1][2]),
			Y: s * (p.m[0][2] - p.m[2][0]),
			Z: s * (p.m[1][0] - p.m[0][1]),
		}
	}

	// u = V⁻¹·t with V⁻¹ = I − ½ŵ + (1/θ²)(1 − a/(2b))·ŵ².
	var coeff float64
	if theta2 < smallAngle {
		coeff = 1.0 / 12
	} else {
		a := math.Sin(theta) / theta
		b := (1 - math.Cos(theta)) / theta2
		coeff = (1 - a/(2*b)) / theta2
	}
	wx := skew(w)
	wx2 := matMul3(wx, wx)
	var vinv [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			vinv[i][j] = -wx[i][j]/2 + coeff*wx2[i][j]
			if i == j {
				vinv[i][j]++
			}
		}
	}
	t := p.Translation()
	return Vector6{
		vinv[0][0]*t.X + vinv[0][1]*t.Y + vinv[0][2]*t.Z,
		vinv[1][0]*t.X + vinv[1][1]*t.Y + vinv[1][2]*t.Z,
		vinv[2][0]*t.X + vinv[2][1]*t.Y + vinv[2][2]*t.Z,
		w.X, w.Y, w.Z,
	}
}

func skew(w r3.Vector) [3][3]float64 {
	return [3][3]float64{
		{0, -w.Z, w.Y},
		{w.Z, 0, -w.X},
		{-w.Y, w.X, 0},
	}
}

func matMul3(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}
