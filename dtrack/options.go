// Package dtrack implements dense RGB-D visual odometry: it refines
// the rigid transform between a reference grayscale+depth keyframe and
// a live grayscale frame by minimizing the photometric error over
// every valid depth pixel, coarse-to-fine, with an ESM Gauss-Newton
// solver and a Tukey robust norm.
package dtrack

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// defaultChunkSize is the number of pixels handed to a worker at a
// time during the parallel reduction. A throughput/overhead tradeoff;
// it does not affect the result.
const defaultChunkSize = 10000

// noPyramidIterations is the finest-level iteration budget used when
// an Estimate call opts out of the pyramid schedule.
const noPyramidIterations = 3

// Options configures a DTrack instance. Immutable for the duration of
// an Estimate call.
type Options struct {
	// PyramidLevels is the number of levels in all pyramids (≥ 1).
	PyramidLevels int `json:"pyramid_levels"`
	// NormParam is the Tukey robust-norm scale c. Level ℓ uses c·(ℓ+1).
	NormParam float64 `json:"norm_param"`
	// DiscardSaturated skips residuals whose sampled intensity is
	// exactly 0 or 1 in either image.
	DiscardSaturated bool `json:"discard_saturated"`
	// MinDepth and MaxDepth bound the usable depth range in meters;
	// cells outside (MinDepth, MaxDepth) are skipped.
	MinDepth float64 `json:"min_depth"`
	MaxDepth float64 `json:"max_depth"`
	// MaxIterations caps the solver iterations per pyramid level,
	// indexed by level (0 = finest). Coarser levels get longer
	// budgets by default.
	MaxIterations []int `json:"max_iterations"`
	// RotationOnly marks levels at which only the three rotational
	// components are estimated. Default: true only at the coarsest
	// level, and false everywhere when there is a single level.
	RotationOnly []bool `json:"rotation_only"`
	// ChunkSize overrides the reduction chunk size; 0 means default.
	ChunkSize int `json:"chunk_size"`
}

// DefaultOptions returns the standard tracker configuration for the
// given number of pyramid levels.
func DefaultOptions(pyramidLevels int) Options {
	maxIters := make([]int, pyramidLevels)
	rotOnly := make([]bool, pyramidLevels)
	for l := 0; l < pyramidLevels; l++ {
		maxIters[l] = l + 1
		rotOnly[l] = l == pyramidLevels-1 && pyramidLevels > 1
	}
	return Options{
		PyramidLevels:    pyramidLevels,
		NormParam:        0.04,
		DiscardSaturated: true,
		MinDepth:         0.01,
		MaxDepth:         100.0,
		MaxIterations:    maxIters,
		RotationOnly:     rotOnly,
	}
}

// LoadOptions loads tracker options from a JSON file. Fields absent
// from the file keep their defaults for the configured level count.
func LoadOptions(path string) (Options, error) {
	blob, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return Options{}, errors.Wrapf(err, "cannot open options file %q", path)
	}

	var raw struct {
		PyramidLevels int `json:"pyramid_levels"`
	}
	if err := json.Unmarshal(blob, &raw); err != nil {
		return Options{}, errors.Wrapf(err, "invalid options file %q", path)
	}
	levels := raw.PyramidLevels
	if levels == 0 {
		levels = 4
	}
	opts := DefaultOptions(levels)
	if err := json.Unmarshal(blob, &opts); err != nil {
		return Options{}, errors.Wrapf(err, "invalid options file %q", path)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate checks the options for consistency.
func (o *Options) Validate() error {
	var err error
	if o.PyramidLevels < 1 {
		err = multierr.Append(err, errors.Errorf("pyramid_levels must be >= 1, got %d", o.PyramidLevels))
	}
	if o.NormParam <= 0 {
		err = multierr.Append(err, errors.Errorf("norm_param must be positive, got %v", o.NormParam))
	}
	if o.MinDepth < 0 || o.MaxDepth <= o.MinDepth {
		err = multierr.Append(err, errors.Errorf("invalid depth range (%v, %v)", o.MinDepth, o.MaxDepth))
	}
	if len(o.MaxIterations) != o.PyramidLevels {
		err = multierr.Append(err, errors.Errorf("max_iterations needs %d entries, got %d",
			o.PyramidLevels, len(o.MaxIterations)))
	}
	for _, n := range o.MaxIterations {
		if n < 0 {
			err = multierr.Append(err, errors.Errorf("max_iterations entries must be >= 0, got %d", n))
			break
		}
	}
	if len(o.RotationOnly) != o.PyramidLevels {
		err = multierr.Append(err, errors.Errorf("rotation_only needs %d entries, got %d",
			o.PyramidLevels, len(o.RotationOnly)))
	}
	if o.ChunkSize < 0 {
		err = multierr.Append(err, errors.Errorf("chunk_size must be >= 0, got %d", o.ChunkSize))
	}
	return err
}

func (o *Options) chunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return defaultChunkSize
}
