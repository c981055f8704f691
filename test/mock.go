// Package test - Deterministic fixtures shared by package tests.
package test

import (
	"image"
	"image/color"
	"image/draw"
)

// MockFrameGenerator creates deterministic screen captures for idempotent testing.
//
// Frames are a flat background with optional solid markers standing in for players.
//
// @example
// gen := NewMockFrameGenerator(800, 600)
// frame := gen.GenerateMarkerFrame(image.Rect(320, 256, 384, 384))
type MockFrameGenerator struct {
	width      int
	height     int
	background color.RGBA
	marker     color.RGBA
}

// NewMockFrameGenerator creates a new frame generator with specified dimensions.
//
// Arguments:
// - width: Frame width in pixels.
// - height: Frame height in pixels.
//
// Returns:
// - A generator drawing white markers on black.
func NewMockFrameGenerator(width, height int) *MockFrameGenerator {
	return &MockFrameGenerator{
		width:      width,
		height:     height,
		background: color.RGBA{A: 255},
		marker:     color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}
}

// GenerateStaticFrame creates a frame with no markers.
func (g *MockFrameGenerator) GenerateStaticFrame() *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	draw.Draw(frame, frame.Bounds(), &image.Uniform{C: g.background}, image.Point{}, draw.Src)
	return frame
}

// GenerateMarkerFrame creates a frame with a solid marker filling each rectangle.
//
// Arguments:
// - markers: Rectangles in frame coordinates.
//
// Returns:
// - The frame.
func (g *MockFrameGenerator) GenerateMarkerFrame(markers ...image.Rectangle) *image.RGBA {
	frame := g.GenerateStaticFrame()
	for _, r := range markers {
		draw.Draw(frame, r, &image.Uniform{C: g.marker}, image.Point{}, draw.Src)
	}
	return frame
}

// GenerateShadedFrame creates a frame with a marker of the given brightness, letting tests
// control the score the stub classifier assigns to it.
func (g *MockFrameGenerator) GenerateShadedFrame(r image.Rectangle, level uint8) *image.RGBA {
	frame := g.GenerateStaticFrame()
	c := color.RGBA{R: level, G: level, B: level, A: 255}
	draw.Draw(frame, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
	return frame
}
