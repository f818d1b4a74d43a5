package dtrack

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"

	"github.com/mfkiwl/vidtrack/rimage"
	"github.com/mfkiwl/vidtrack/spatialmath"
	"github.com/mfkiwl/vidtrack/transform"
)

// borderMargin is the pixel margin inside which reprojections are
// discarded so the sampler and its ±1 gradient probes stay in bounds.
const borderMargin = 2

// accumulator is the monoid the per-pixel contributions are summed
// into: the Tukey-weighted normal equations, the unweighted Hessian,
// the squared photometric error and the observation count. The merge
// of two accumulators is element-wise addition.
type accumulator struct {
	lhs     [36]float64 // Σ J·Jᵀ·w, row-major 6x6
	rhs     [6]float64  // Σ J·y·w
	hessian [36]float64 // Σ J·Jᵀ, unweighted
	sse     float64     // Σ y²
	obs     int
}

func (a *accumulator) merge(b *accumulator) {
	for i := range a.lhs {
		a.lhs[i] += b.lhs[i]
	}
	for i := range a.rhs {
		a.rhs[i] += b.rhs[i]
	}
	for i := range a.hessian {
		a.hessian[i] += b.hessian[i]
	}
	a.sse += b.sse
	a.obs += b.obs
}

// poseRefine evaluates photometric residuals for one pyramid level
// under one candidate transform. All fields are read-only while
// workers run; each worker accumulates into its own accumulator.
type poseRefine struct {
	liveGrey *rimage.Image
	refGrey  *rimage.Image
	refDepth *rimage.DepthMap

	klg *transform.PinholeCameraIntrinsics // live grey
	krg *transform.PinholeCameraIntrinsics // reference grey
	krd *transform.PinholeCameraIntrinsics // reference depth

	tgd    spatialmath.Pose // depth-to-grey extrinsic of the reference rig
	tlr    spatialmath.Pose // live-from-reference candidate
	klgTlr [12]float64      // Klg · Tlr, 3x4 row-major, built once per iteration

	normParam        float64
	discardSaturated bool
	minDepth         float64
	maxDepth         float64

	logger golog.Logger
}

func newPoseRefine(
	liveGrey, refGrey *rimage.Image,
	refDepth *rimage.DepthMap,
	klg, krg, krd *transform.PinholeCameraIntrinsics,
	tgd, tlr spatialmath.Pose,
	normParam float64,
	opts *Options,
	logger golog.Logger,
) *poseRefine {
	p := &poseRefine{
		liveGrey:         liveGrey,
		refGrey:          refGrey,
		refDepth:         refDepth,
		klg:              klg,
		krg:              krg,
		krd:              krd,
		tgd:              tgd,
		tlr:              tlr,
		normParam:        normParam,
		discardSaturated: opts.DiscardSaturated,
		minDepth:         opts.MinDepth,
		maxDepth:         opts.MaxDepth,
		logger:           logger,
	}
	t := tlr.Mat34()
	// Klg·Tlr: upper-triangular K against the top three rows of T.
	for j := 0; j < 4; j++ {
		p.klgTlr[j] = klg.Fx*t[j] + klg.Ppx*t[8+j]
		p.klgTlr[4+j] = klg.Fy*t[4+j] + klg.Ppy*t[8+j]
		p.klgTlr[8+j] = t[8+j]
	}
	return p
}

// accumulate evaluates pixels [from, to) of the reference depth map
// and adds their contributions to acc. Pixels are indexed row-major.
// No allocations happen here.
func (p *poseRefine) accumulate(from, to int, acc *accumulator) {
	cols := p.refDepth.Cols()
	refCols := p.refGrey.Cols()
	refRows := p.refGrey.Rows()
	liveCols := p.liveGrey.Cols()
	liveRows := p.liveGrey.Rows()

	for ii := from; ii < to; ii++ {
		u := ii % cols
		v := ii / cols

		depth := float64(p.refDepth.GetDepth(u, v))
		if depth != depth {
			continue
		}
		if depth <= p.minDepth || depth >= p.maxDepth {
			continue
		}

		// 3d point in the reference depth camera.
		prd := p.krd.BackProject(float64(u), float64(v), depth)

		// Move into the reference grey camera. Tgd is identity when
		// depth is aligned to the grey image.
		prg := p.tgd.Apply(prd)

		// Project into the reference grey image.
		rx, ry := p.krg.PointToPixel(prg.X, prg.Y, prg.Z)
		if rx < borderMargin || rx >= float64(refCols-borderMargin-1) ||
			ry < borderMargin || ry >= float64(refRows-borderMargin-1) {
			continue
		}

		// Move into the live grey camera and project.
		plg := p.tlr.Apply(prg)
		lx, ly := p.klg.PointToPixel(plg.X, plg.Y, plg.Z)
		if lx < borderMargin || lx >= float64(liveCols-borderMargin-1) ||
			ly < borderMargin || ly >= float64(liveRows-borderMargin-1) {
			continue
		}

		il := rimage.BilinearInterpolation(lx, ly, p.liveGrey, p.logger)
		ir := rimage.BilinearInterpolation(rx, ry, p.refGrey, p.logger)

		if p.discardSaturated {
			if il == 0 || il == 1.0 || ir == 0 || ir == 1.0 {
				continue
			}
		}

		y := float64(il) - float64(ir)

		// Central-difference gradients in both images; their average
		// is the ESM gradient that gives near-second-order steps.
		ilXr := rimage.BilinearInterpolation(lx+1, ly, p.liveGrey, p.logger)
		ilXl := rimage.BilinearInterpolation(lx-1, ly, p.liveGrey, p.logger)
		ilYu := rimage.BilinearInterpolation(lx, ly-1, p.liveGrey, p.logger)
		ilYd := rimage.BilinearInterpolation(lx, ly+1, p.liveGrey, p.logger)

		irXr := rimage.BilinearInterpolation(rx+1, ry, p.refGrey, p.logger)
		irXl := rimage.BilinearInterpolation(rx-1, ry, p.refGrey, p.logger)
		irYu := rimage.BilinearInterpolation(rx, ry-1, p.refGrey, p.logger)
		irYd := rimage.BilinearInterpolation(rx, ry+1, p.refGrey, p.logger)

		gx := (float64(ilXr-ilXl)/2 + float64(irXr-irXl)/2) / 2
		gy := (float64(ilYd-ilYu)/2 + float64(irYd-irYu)/2) / 2

		// Projection/dehomogenization Jacobian of the live pinhole at
		// Klg·Plg, folded into the gradient: g·dπ is a 1x3 row.
		kp := r3.Vector{
			X: p.klg.Fx*plg.X + p.klg.Ppx*plg.Z,
			Y: p.klg.Fy*plg.Y + p.klg.Ppy*plg.Z,
			Z: plg.Z,
		}
		iz := 1 / kp.Z
		iz2 := iz * iz
		b0 := gx * iz
		b1 := gy * iz
		b2 := -(gx*kp.X + gy*kp.Y) * iz2

		// a = g·dπ·(Klg·Tlr), a 1x4 row.
		var a [4]float64
		for j := 0; j < 4; j++ {
			a[j] = b0*p.klgTlr[j] + b1*p.klgTlr[4+j] + b2*p.klgTlr[8+j]
		}

		// J = a·gen_i·Prg over the six SE(3) generators,
		// translation first, rotation last.
		var jac [6]float64
		jac[0] = a[0]
		jac[1] = a[1]
		jac[2] = a[2]
		jac[3] = -a[1]*prg.Z + a[2]*prg.Y
		jac[4] = +a[0]*prg.Z - a[2]*prg.X
		jac[5] = -a[0]*prg.Y + a[1]*prg.X

		w := normTukey(y, p.normParam)

		for r := 0; r < 6; r++ {
			jr := jac[r]
			for c := 0; c < 6; c++ {
				jj := jr * jac[c]
				acc.hessian[r*6+c] += jj
				acc.lhs[r*6+c] += jj * w
			}
			acc.rhs[r] += jr * y * w
		}
		acc.sse += y * y
		acc.obs++
	}
}

// normTukey is the Tukey biweight: full rejection beyond the scale c.
func normTukey(r, c float64) float64 {
	roc := r / c
	omroc2 := 1 - roc*roc
	if math.Abs(r) <= c {
		return omroc2 * omroc2
	}
	return 0
}
