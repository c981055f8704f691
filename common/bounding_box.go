package common

import (
	"fmt"
	"image"
)

// BoundingBox is an axis-aligned pixel box. X2 and Y2 are exclusive, matching image.Rectangle.
type BoundingBox struct {
	X1, Y1, X2, Y2 int
}

// Detection is the single best match reported for a frame.
type Detection struct {
	// Box is expressed in whichever coordinate space the producer documents: ROI-local out of the
	// scanner, screen space after MapToScreen.
	Box BoundingBox
	// Score is the classifier confidence in [0, 1].
	Score float32
}

// NewBoundingBox builds a box from a top-left corner and a size.
//
// Arguments:
// - x: Left edge.
// - y: Top edge.
// - w: Width in pixels.
// - h: Height in pixels.
//
// Returns:
// - The box spanning (x, y) to (x+w, y+h).
//
// @example
// box := NewBoundingBox(320, 256, 64, 128) // (320, 256), (384, 384)
func NewBoundingBox(x, y, w, h int) BoundingBox {
	return BoundingBox{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d, %d), (%d, %d)", b.X1, b.Y1, b.X2, b.Y2)
}

func (d Detection) String() string {
	return fmt.Sprintf("player (score %.3f): %s", d.Score, d.Box)
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() int { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// Center returns the integer centre of the box, used as the pointer target.
func (b BoundingBox) Center() image.Point {
	return image.Pt((b.X1+b.X2)/2, (b.Y1+b.Y2)/2)
}

// ToRect converts the bounding box to an image.Rectangle.
//
// Returns:
// - An image.Rectangle with canonicalized coordinates.
//
// @example
// box := BoundingBox{X1: 10, Y1: 10, X2: 74, Y2: 138}
// rect := box.ToRect() // (10,10)-(74,138)
func (b BoundingBox) ToRect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2).Canon()
}

// Translate shifts both corners by the given offset.
func (b BoundingBox) Translate(offset image.Point) BoundingBox {
	return BoundingBox{
		X1: b.X1 + offset.X,
		Y1: b.Y1 + offset.Y,
		X2: b.X2 + offset.X,
		Y2: b.Y2 + offset.Y,
	}
}

// Within reports whether the box lies entirely inside r.
func (b BoundingBox) Within(r image.Rectangle) bool {
	return b.ToRect().In(r)
}
