package common

import (
	"image"

	"github.com/chewxy/math32"
)

// MapToScreen converts an ROI-local box to screen coordinates by adding the ROI origin to both
// corners. No clamping is applied.
//
// Arguments:
// - box: Box relative to the ROI's top-left corner.
// - origin: Screen position of the ROI's top-left corner.
//
// Returns:
// - The same box in screen coordinates.
//
// @example
// MapToScreen(BoundingBox{10, 10, 74, 138}, image.Pt(100, 50)) // (110, 60), (174, 188)
func MapToScreen(box BoundingBox, origin image.Point) BoundingBox {
	return box.Translate(origin)
}

// ScaleBox maps a box found on a downscaled pyramid level back to the full-resolution ROI.
//
// Corners are multiplied by the per-axis factors, rounded to the nearest pixel and clamped to
// [0, limit] so a rounded box never leaves the ROI.
//
// Arguments:
// - box: Box in level coordinates.
// - fx: Horizontal factor (ROI width / level width).
// - fy: Vertical factor (ROI height / level height).
// - limit: ROI width and height.
//
// Returns:
// - The box in ROI-local coordinates.
func ScaleBox(box BoundingBox, fx, fy float32, limit image.Point) BoundingBox {
	if fx == 1 && fy == 1 {
		return box
	}
	scale := func(v int, f float32, max int) int {
		s := int(math32.Round(float32(v) * f))
		if s < 0 {
			return 0
		}
		if s > max {
			return max
		}
		return s
	}
	return BoundingBox{
		X1: scale(box.X1, fx, limit.X),
		Y1: scale(box.Y1, fy, limit.Y),
		X2: scale(box.X2, fx, limit.X),
		Y2: scale(box.Y2, fy, limit.Y),
	}
}
