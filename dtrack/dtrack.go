package dtrack

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mfkiwl/vidtrack/rimage"
	"github.com/mfkiwl/vidtrack/spatialmath"
	"github.com/mfkiwl/vidtrack/transform"
)

// convergenceTol ends a level's iteration once the tangent-space
// update drops below it.
const convergenceTol = 1e-5

// DTrack aligns live grayscale frames against a reference
// grayscale+depth keyframe and reports the rigid transform between
// the two camera poses.
//
// Usage: New, SetParams (or SetParamsAligned), SetKeyframe, then
// Estimate once per live frame until the next keyframe.
type DTrack struct {
	opts   Options
	logger golog.Logger

	// Per-level scaled camera models, built once at SetParams.
	liveGreyCam []*transform.PinholeCameraIntrinsics
	refGreyCam  []*transform.PinholeCameraIntrinsics
	refDepthCam []*transform.PinholeCameraIntrinsics
	tgd         spatialmath.Pose

	refGreyPyramid  *rimage.ImagePyramid
	refDepthPyramid *rimage.DepthMapPyramid

	configured  bool
	hasKeyframe bool
}

// New creates a tracker with the given options.
func New(opts Options, logger golog.Logger) (*DTrack, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &DTrack{opts: opts, logger: logger}, nil
}

// SetParams stores the camera models of the rig: live grayscale,
// reference grayscale and reference depth intrinsics, plus the
// depth-to-grayscale extrinsic Tgd of the reference rig (identity
// when depth is aligned to the grayscale image). Intrinsics are
// scaled once per pyramid level here so Estimate never recomputes
// them.
func (d *DTrack) SetParams(
	liveGrey, refGrey, refDepth *transform.PinholeCameraIntrinsics,
	tgd spatialmath.Pose,
) error {
	for _, c := range []*transform.PinholeCameraIntrinsics{liveGrey, refGrey, refDepth} {
		if err := c.CheckValid(); err != nil {
			return err
		}
	}
	levels := d.opts.PyramidLevels
	d.liveGreyCam = make([]*transform.PinholeCameraIntrinsics, levels)
	d.refGreyCam = make([]*transform.PinholeCameraIntrinsics, levels)
	d.refDepthCam = make([]*transform.PinholeCameraIntrinsics, levels)
	for l := 0; l < levels; l++ {
		d.liveGreyCam[l] = liveGrey.Scaled(l)
		d.refGreyCam[l] = refGrey.Scaled(l)
		d.refDepthCam[l] = refDepth.Scaled(l)
	}
	d.tgd = tgd
	d.configured = true
	d.logger.Debugf("Tgd is: %v", tgd.Log())
	return nil
}

// SetParamsAligned configures a rig whose three cameras share one
// model and whose depth is pre-aligned to the grayscale image.
func (d *DTrack) SetParamsAligned(cam *transform.PinholeCameraIntrinsics) error {
	return d.SetParams(cam, cam, cam, spatialmath.NewZeroPose())
}

// SetKeyframe ingests a new reference pair and builds its pyramids.
// The grayscale image is normalized [0, 1] float; depth is metric
// with NaN marking missing cells.
func (d *DTrack) SetKeyframe(refGrey *rimage.Image, refDepth *rimage.DepthMap) error {
	if refGrey == nil || refDepth == nil {
		return errors.New("keyframe images must not be nil")
	}
	if refGrey.Width() != refDepth.Width() || refGrey.Height() != refDepth.Height() {
		return errors.Errorf("keyframe dimensions mismatch: grey %dx%d vs depth %dx%d",
			refGrey.Width(), refGrey.Height(), refDepth.Width(), refDepth.Height())
	}
	greyPyr, err := rimage.NewImagePyramid(refGrey, d.opts.PyramidLevels)
	if err != nil {
		return errors.Wrap(err, "building keyframe grey pyramid")
	}
	depthPyr, err := rimage.NewDepthMapPyramid(refDepth, d.opts.PyramidLevels)
	if err != nil {
		return errors.Wrap(err, "building keyframe depth pyramid")
	}
	d.refGreyPyramid = greyPyr
	d.refDepthPyramid = depthPyr
	d.hasKeyframe = true
	return nil
}

// Estimate refines the reference-from-live transform Trl starting
// from the given hint (a constant-velocity prediction, or identity)
// and returns the refined transform, its 6x6 covariance on the SE(3)
// tangent space, and the final RMS photometric residual at the finest
// level.
//
// The error return covers caller misuse only (unconfigured tracker,
// missing keyframe, dimension mismatch). Numerical conditions such as
// rank deficiency, divergence or an empty observation set are handled
// internally and Estimate still returns a transform. When no pixel
// ever contributes, the hint is returned unchanged with an infinite
// RMS and a zero covariance, and a warning is logged.
func (d *DTrack) Estimate(
	liveGrey *rimage.Image,
	hint spatialmath.Pose,
	usePyramid bool,
) (spatialmath.Pose, *mat.Dense, float64, error) {
	if !d.configured {
		return hint, nil, 0, errors.New("tracker is not configured; call SetParams first")
	}
	if !d.hasKeyframe {
		return hint, nil, 0, errors.New("tracker has no keyframe; call SetKeyframe first")
	}
	if liveGrey == nil {
		return hint, nil, 0, errors.New("live image must not be nil")
	}
	ref := d.refGreyPyramid.Images[0]
	if !liveGrey.SameSize(ref) {
		return hint, nil, 0, errors.Errorf("live image %dx%d does not match keyframe %dx%d",
			liveGrey.Width(), liveGrey.Height(), ref.Width(), ref.Height())
	}

	livePyramid, err := rimage.NewImagePyramid(liveGrey, d.opts.PyramidLevels)
	if err != nil {
		return hint, nil, 0, errors.Wrap(err, "building live pyramid")
	}

	// Solve on Tlr internally; the caller's transform is Trl.
	tlr := hint.Inverse()

	var hessian [36]float64
	hessianWritten := false
	lastError := math.Inf(1)

	for lvl := d.opts.PyramidLevels - 1; lvl >= 0; lvl-- {
		maxIters := d.opts.MaxIterations[lvl]
		if !usePyramid {
			if lvl == 0 {
				maxIters = noPyramidIterations
			} else {
				maxIters = 0
			}
		}
		rotationOnly := d.opts.RotationOnly[lvl]

		liveImg := livePyramid.Images[lvl]
		refImg := d.refGreyPyramid.Images[lvl]
		refDepth := d.refDepthPyramid.DepthMaps[lvl]

		lastError = math.Inf(1)
		normC := d.opts.NormParam * float64(lvl+1)

		for iter := 0; iter < maxIters; iter++ {
			pr := newPoseRefine(
				liveImg, refImg, refDepth,
				d.liveGreyCam[lvl], d.refGreyCam[lvl], d.refDepthCam[lvl],
				d.tgd, tlr,
				normC, &d.opts, d.logger,
			)
			acc := pr.reduce(refDepth.Cols()*refDepth.Rows(), d.opts.chunkSize())

			if acc.obs == 0 {
				d.logger.Warnf("[@L:%d I:%d] no observations; keeping current estimate", lvl, iter)
				break
			}

			var x spatialmath.Vector6
			if rotationOnly {
				// Rotation block only: bottom-right 3x3 of the LHS,
				// bottom 3 entries of the RHS.
				var rlhs [9]float64
				var rrhs [3]float64
				for r := 0; r < 3; r++ {
					for c := 0; c < 3; c++ {
						rlhs[r*3+c] = acc.lhs[(r+3)*6+(c+3)]
					}
					rrhs[r] = acc.rhs[r+3]
				}
				sol, rank := solveNormalEquations(rlhs[:], rrhs[:], 3)
				if rank < 3 {
					d.logger.Warnf("[@L:%d I:%d] LS trashed. Rank deficient!", lvl, iter)
				}
				for r := 0; r < 3; r++ {
					x[r+3] = -sol[r]
				}
			} else {
				sol, rank := solveNormalEquations(acc.lhs[:], acc.rhs[:], 6)
				if rank < 6 {
					d.logger.Warnf("[@L:%d I:%d] LS trashed. Rank deficient!", lvl, iter)
				}
				for r := 0; r < 6; r++ {
					x[r] = -sol[r]
				}
			}

			newError := math.Sqrt(acc.sse / float64(acc.obs))

			if newError < lastError {
				lastError = newError
				tlr = tlr.Compose(spatialmath.Exp(x))

				if lvl == 0 {
					hessian = acc.hessian
					hessianWritten = true
				}

				if x.Norm() < convergenceTol {
					d.logger.Debugf("[@L:%d I:%d] Update is too small. Breaking early!", lvl, iter)
					break
				}
			} else {
				d.logger.Debugf("[@L:%d I:%d] Error is increasing. Breaking early!", lvl, iter)
				break
			}
		}
	}

	covariance := d.covarianceFromHessian(hessian, hessianWritten)
	return tlr.Inverse(), covariance, lastError, nil
}

// covarianceFromHessian inverts the unweighted Hessian accumulated on
// the last accepted finest-level iteration. The robust weights shape
// the optimization but not the information matrix at the optimum, so
// the unweighted sum is the one inverted. A zero matrix is returned
// when the finest level never accepted an iteration.
func (d *DTrack) covarianceFromHessian(hessian [36]float64, written bool) *mat.Dense {
	covariance := mat.NewDense(6, 6, nil)
	if !written {
		d.logger.Warnf("covariance is undefined: no accepted iteration at the finest pyramid level")
		return covariance
	}

	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(6, 6, hessian[:]), mat.SVDFull); !ok {
		d.logger.Warnf("covariance Hessian SVD failed")
		return covariance
	}
	vals := svd.Values(nil)
	tol := 6 * vals[0] * svdRankTol
	if vals[5] <= tol {
		// Degenerate information matrix; an unbounded variance is the
		// signal the caller needs.
		d.logger.Warnf("covariance Hessian is rank deficient")
		for i := 0; i < 6; i++ {
			covariance.Set(i, i, math.Inf(1))
		}
		return covariance
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			var s float64
			for k := 0; k < 6; k++ {
				s += v.At(i, k) * u.At(j, k) / vals[k]
			}
			covariance.Set(i, j, s)
		}
	}
	return covariance
}
