// Package highgui - Fullscreen OpenCV HighGUI overlay sink.
package highgui

import (
	"context"
	"image"
	"log/slog"

	"github.com/nvr-ai/player-overlay/common"
	"github.com/nvr-ai/player-overlay/controller"
	"github.com/nvr-ai/player-overlay/render"
	"gocv.io/x/gocv"
)

const (
	keyEscape = 27
	keyQuit   = 'q'
)

// Window draws each presentation on a fresh black canvas covering one display.
//
// HighGUI has no transparent windows, so the canvas is opaque and hides the display from screen
// capture. Use it only when frames come from a replay. Window must be used from the goroutine
// that created it.
type Window struct {
	window *gocv.Window
	bounds image.Rectangle
	logger *slog.Logger
}

// NewWindow opens a fullscreen window sized to display bounds.
//
// Arguments:
// - title: Window title.
// - display: Bounds of the display to cover, in screen coordinates.
// - logger: Nil uses slog.Default().
//
// Returns:
// - *Window: The sink. Close it to destroy the window.
func NewWindow(title string, display image.Rectangle, logger *slog.Logger) *Window {
	if logger == nil {
		logger = slog.Default()
	}
	w := gocv.NewWindow(title)
	w.SetWindowProperty(gocv.WindowPropertyFullscreen, gocv.WindowFullscreen)
	logger.Info("overlay window opened", "title", title, "display", display.String())
	return &Window{window: w, bounds: display, logger: logger}
}

// Present redraws the canvas and services GUI events for one millisecond.
// ESC or q requests a stop.
func (w *Window) Present(ctx context.Context, p controller.Presentation) error {
	canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), w.bounds.Dy(), w.bounds.Dx(), gocv.MatTypeCV8UC3)
	defer canvas.Close()

	o := render.Layout(p, w.bounds.Min)
	if o.HasBox {
		gocv.Rectangle(&canvas, o.Box, render.BoxColor, render.BoxThickness)
		gocv.PutText(&canvas, o.Label, o.LabelAt, gocv.FontHersheySimplex, 0.6, render.BoxColor, 2)
	}
	gocv.PutText(&canvas, o.FPS, render.FPSAnchor, gocv.FontHersheySimplex, 0.6, render.TextColor, 2)

	w.window.IMShow(canvas)
	switch key := w.window.WaitKey(1); key {
	case keyEscape, keyQuit:
		w.logger.InfoContext(ctx, "overlay closed by user", "key", key)
		return common.ErrStopRequested
	}
	return nil
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.window.Close()
}
