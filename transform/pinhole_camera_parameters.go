// Package transform holds the pinhole camera models used to move
// between image coordinates and 3D camera-frame points, including the
// per-pyramid-level scaled variants the tracker iterates over.
package transform

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// PinholeCameraIntrinsics holds the intrinsics of a pinhole camera:
// focal lengths and principal point in pixels, no distortion terms.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return errors.New("pointer to PinholeCameraIntrinsics is nil")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return errors.Errorf("invalid image dimensions %dx%d", params.Width, params.Height)
	}
	if params.Fx <= 0 || params.Fy <= 0 {
		return errors.Errorf("focal lengths must be positive, got fx: %v, fy: %v", params.Fx, params.Fy)
	}
	return nil
}

// GetCameraMatrix creates a new camera matrix and returns it.
// Camera matrix:
// [[fx 0 ppx],
//
//	[0 fy ppy],
//	[0 0  1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}

// PixelToPoint transforms a pixel with depth to a 3D point in the
// camera frame. Remember to convert to millimeters or meters as your
// application requires.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	return xOverZ * z, yOverZ * z, z
}

// PointToPixel projects a 3D camera-frame point to a pixel location.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0 {
		return (x/z)*params.Fx + params.Ppx, (y/z)*params.Fy + params.Ppy
	}
	// This is due to a divide by zero error; return negative
	// coordinates so callers discard the point.
	return -1.0, -1.0
}

// BackProject back-projects a pixel with depth to a camera-frame
// point as an r3.Vector.
func (params *PinholeCameraIntrinsics) BackProject(x, y, depth float64) r3.Vector {
	px, py, pz := params.PixelToPoint(x, y, depth)
	return r3.Vector{X: px, Y: py, Z: pz}
}

// Scaled returns the intrinsics of the camera downsampled by the
// given pyramid level: focal lengths and principal point are scaled
// by 2^(−level) and the image dimensions halved level times.
func (params *PinholeCameraIntrinsics) Scaled(level int) *PinholeCameraIntrinsics {
	scale := 1.0 / float64(int(1)<<uint(level))
	out := &PinholeCameraIntrinsics{
		Width:  params.Width,
		Height: params.Height,
		Fx:     params.Fx * scale,
		Fy:     params.Fy * scale,
		Ppx:    params.Ppx * scale,
		Ppy:    params.Ppy * scale,
	}
	for l := 0; l < level; l++ {
		out.Width /= 2
		out.Height /= 2
	}
	return out
}
