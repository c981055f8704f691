// Package render - Presentation sinks: overlay layout shared by the GUI sink, and a log sink.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/nvr-ai/player-overlay/controller"
)

var (
	// BoxColor outlines the detection.
	BoxColor = color.RGBA{R: 255, A: 255}
	// TextColor is used for the FPS readout.
	TextColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

const (
	// BoxThickness is the outline width in pixels.
	BoxThickness = 3
	// LabelOffset places the score label above the box's top-left corner.
	LabelOffset = 10
)

// FPSAnchor is the top-left position of the FPS readout on the canvas.
var FPSAnchor = image.Pt(20, 20)

// Overlay is everything drawn for one presentation, in canvas coordinates.
type Overlay struct {
	// Box is the detection outline. Only valid when HasBox is set.
	Box    image.Rectangle
	HasBox bool
	// Label is the score text and LabelAt its baseline origin.
	Label   string
	LabelAt image.Point
	// FPS is the readout drawn at FPSAnchor.
	FPS string
}

// Layout converts a presentation into canvas coordinates. The canvas covers the display
// whose top-left screen coordinate is origin.
//
// Arguments:
// - p: The frame's presentation with the detection in screen coordinates.
// - origin: Screen coordinate of the canvas's top-left pixel.
//
// Returns:
// - Overlay: The shapes and strings to draw.
func Layout(p controller.Presentation, origin image.Point) Overlay {
	o := Overlay{FPS: fmt.Sprintf("FPS: %.1f", p.FPS)}
	if p.Detection == nil {
		return o
	}

	box := p.Detection.Box.ToRect().Sub(origin)
	o.Box = box
	o.HasBox = true
	o.Label = fmt.Sprintf("%.2f", p.Detection.Score)
	o.LabelAt = image.Pt(box.Min.X+4, box.Min.Y-LabelOffset)
	return o
}
