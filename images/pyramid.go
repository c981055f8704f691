package images

import (
	"image"
	"iter"

	"github.com/disintegration/imaging"
)

// Level is one scale of an image pyramid.
type Level struct {
	Image image.Image
	// ScaleX and ScaleY map level coordinates back to the original image.
	ScaleX, ScaleY float32
}

// Pyramid yields img followed by successively smaller copies.
//
// Each level divides the previous level's dimensions by scale (truncating) and is produced by
// area averaging. Iteration stops before a level whose width or height would drop below
// minSize. A scale of 1 or less yields only the original image.
//
// Arguments:
// - img: The full-resolution image.
// - scale: Shrink factor between consecutive levels, e.g. 1.5.
// - minSize: Smallest acceptable level, normally the window size.
//
// Returns:
// - A lazy sequence of levels, largest first.
func Pyramid(img image.Image, scale float64, minSize Size) iter.Seq[Level] {
	return func(yield func(Level) bool) {
		if !yield(Level{Image: img, ScaleX: 1, ScaleY: 1}) || scale <= 1 {
			return
		}
		base := SizeOf(img)
		cur := img
		for {
			s := SizeOf(cur)
			next := Size{Width: int(float64(s.Width) / scale), Height: int(float64(s.Height) / scale)}
			if next.Width < minSize.Width || next.Height < minSize.Height || !next.Positive() {
				return
			}
			cur = imaging.Resize(cur, next.Width, next.Height, imaging.Box)
			level := Level{
				Image:  cur,
				ScaleX: float32(base.Width) / float32(next.Width),
				ScaleY: float32(base.Height) / float32(next.Height),
			}
			if !yield(level) {
				return
			}
		}
	}
}
