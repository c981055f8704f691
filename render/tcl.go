package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// KeyColor fills the overlay background. Platforms with colour keying make it see-through and
// pass clicks on it to the window below.
var KeyColor = color.RGBA{A: 255}

// LabelFont is the Tk font of the score label and the FPS readout.
const LabelFont = "{Helvetica 14 bold}"

// Transparency is how a platform's window manager makes KeyColor see-through.
type Transparency struct {
	// Background replaces KeyColor as the canvas background when the platform keys a named
	// colour instead.
	Background string
	// Attributes are passed to wm attributes after -topmost.
	Attributes []any
}

// TransparencyFor returns the colour keying for goos, or false when its window manager has
// none. On such platforms an overlay covering the captured display would be captured itself.
func TransparencyFor(goos string) (Transparency, bool) {
	switch goos {
	case "windows":
		key := HexColor(KeyColor)
		return Transparency{Background: key, Attributes: []any{"-toolwindow", true, "-transparentcolor", key}}, true
	case "darwin":
		return Transparency{Background: "systemTransparent", Attributes: []any{"-transparent", true}}, true
	}
	return Transparency{Background: HexColor(KeyColor)}, false
}

// HexColor formats c as a Tk colour.
func HexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Geometry formats display bounds as a Tk geometry, WIDTHxHEIGHT+X+Y.
func Geometry(r image.Rectangle) string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Dx(), r.Dy(), r.Min.X, r.Min.Y)
}

// CanvasScript returns the Tcl commands that redraw canvas with o.
//
// Arguments:
// - canvas: Tk path of the canvas widget.
// - o: The frame's overlay in canvas coordinates.
//
// Returns:
// - string: A script that clears the canvas, then draws the box, its label and the FPS readout.
func CanvasScript(canvas string, o Overlay) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s delete all\n", canvas)
	if o.HasBox {
		fmt.Fprintf(&b, "%s create rectangle %d %d %d %d -outline %s -width %d\n",
			canvas, o.Box.Min.X, o.Box.Min.Y, o.Box.Max.X, o.Box.Max.Y, HexColor(BoxColor), BoxThickness)
		fmt.Fprintf(&b, "%s create text %d %d -anchor sw -text {%s} -fill %s -font %s\n",
			canvas, o.LabelAt.X, o.LabelAt.Y, o.Label, HexColor(BoxColor), LabelFont)
	}
	fmt.Fprintf(&b, "%s create text %d %d -anchor nw -text {%s} -fill %s -font %s\n",
		canvas, FPSAnchor.X, FPSAnchor.Y, o.FPS, HexColor(TextColor), LabelFont)
	return b.String()
}
