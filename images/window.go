package images

import (
	"image"
	"iter"

	"github.com/disintegration/imaging"
	"github.com/nvr-ai/player-overlay/common"
)

// Window is one candidate sub-image of a frame.
type Window struct {
	// X and Y are the window's top-left corner relative to the scanned image.
	X, Y int
	// Patch shares pixels with the scanned image whenever the image supports SubImage.
	Patch image.Image
}

// Box returns the window's bounding box for a given window size.
func (w Window) Box(size Size) common.BoundingBox {
	return common.NewBoundingBox(w.X, w.Y, size.Width, size.Height)
}

// Positions yields the top-left offsets of every full window inside bounds.
//
// Offsets start at (0, 0) and advance by stride along x first, then y (row-major). Only
// positions where the window fits entirely are produced; partial windows at the right and
// bottom edges are skipped. The sequence is empty when stride is not positive, the window has
// a non-positive dimension, or the window is larger than bounds. Each call returns a fresh
// sequence.
//
// Arguments:
// - bounds: The scanned image size.
// - stride: Step in pixels on both axes.
// - window: The window size.
//
// Returns:
// - A lazy, deterministic sequence of offsets.
//
// @example
// for p := range Positions(Size{800, 600}, 32, Size{64, 128}) { ... }
func Positions(bounds Size, stride int, window Size) iter.Seq[image.Point] {
	return func(yield func(image.Point) bool) {
		if stride <= 0 || !window.Positive() || !window.Fits(bounds) {
			return
		}
		for y := 0; y+window.Height <= bounds.Height; y += stride {
			for x := 0; x+window.Width <= bounds.Width; x += stride {
				if !yield(image.Pt(x, y)) {
					return
				}
			}
		}
	}
}

// CountPositions returns how many offsets Positions would yield.
func CountPositions(bounds Size, stride int, window Size) int {
	if stride <= 0 || !window.Positive() || !window.Fits(bounds) {
		return 0
	}
	cols := (bounds.Width-window.Width)/stride + 1
	rows := (bounds.Height-window.Height)/stride + 1
	return cols * rows
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Windows yields every full window of img in row-major order.
//
// Offsets are relative to img.Bounds().Min, so sub-images are handled transparently. Patches
// are zero-copy views for the standard image types; other implementations are cropped into a
// new NRGBA image.
func Windows(img image.Image, stride int, window Size) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		b := img.Bounds()
		sub, zeroCopy := img.(subImager)
		for p := range Positions(SizeOf(img), stride, window) {
			r := image.Rect(p.X, p.Y, p.X+window.Width, p.Y+window.Height).Add(b.Min)
			var patch image.Image
			if zeroCopy {
				patch = sub.SubImage(r)
			} else {
				patch = imaging.Crop(img, r)
			}
			if !yield(Window{X: p.X, Y: p.Y, Patch: patch}) {
				return
			}
		}
	}
}
