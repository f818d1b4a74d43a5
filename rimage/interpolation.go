package rimage

import (
	"github.com/edaniels/golog"
)

// BilinearInterpolation samples img at the floating point coordinate
// (x, y) using the four-pixel neighborhood whose top-left corner is
// (⌊x⌋, ⌊y⌋). Coordinates are clamped into [2, W−2] × [2, H−2] before
// truncation, so the sampler never reads out of bounds and never
// fails. A coordinate outside the looser [0, W−2] × [0, H−2] bound is
// reported through the logger; callers are expected to have applied
// their own border margin already.
//
// Interpolation arithmetic is single precision, matching the intensity
// storage.
func BilinearInterpolation(x, y float64, img *Image, logger golog.Logger) float32 {
	w := img.Width()
	h := img.Height()

	if !(x >= 0 && y >= 0 && x <= float64(w-2) && y <= float64(h-2)) {
		logger.Debugf("bad sample point: %f, %f", x, y)
	}

	fx := clampF32(float32(x), 2, float32(w)-2)
	fy := clampF32(float32(y), 2, float32(h)-2)

	px := int(fx) // top-left corner
	py := int(fy)
	ax := fx - float32(px)
	ay := fy - float32(py)
	ax1 := 1 - ax
	ay1 := 1 - ay

	row := img.data[py*w+px:]

	p1 := row[0]
	p2 := row[1]
	p3 := row[w]
	p4 := row[w+1]

	p1 *= ay1
	p2 *= ay1
	p3 *= ay
	p4 *= ay
	p1 += p3
	p2 += p4
	p1 *= ax1
	p2 *= ax

	return p1 + p2
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
