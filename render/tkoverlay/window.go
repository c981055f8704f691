// Package tkoverlay - Borderless, always-on-top Tk overlay with a colour-keyed background.
package tkoverlay

import (
	"context"
	"image"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/nvr-ai/player-overlay/common"
	"github.com/nvr-ai/player-overlay/controller"
	"github.com/nvr-ai/player-overlay/render"
	"github.com/pkg/errors"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// Supported reports whether the window manager can key the overlay background out, leaving
// only the box and text visible to screen capture.
func Supported() bool {
	_, ok := render.TransparencyFor(runtime.GOOS)
	return ok
}

// Window is the overlay sink. It turns the Tk root window into a borderless, topmost canvas
// covering one display and redraws it on every presentation.
//
// Tk is not driven by App.Wait: each Present services pending events with "update". Window
// must be created and used on the main goroutine.
type Window struct {
	canvas *CanvasWidget
	bounds image.Rectangle
	logger *slog.Logger
	stop   atomic.Bool
}

// New shapes the Tk root window into the overlay.
//
// Arguments:
// - title: Window title, shown by task switchers only.
// - display: Bounds of the display to cover, in screen coordinates.
// - logger: Nil uses slog.Default().
//
// Returns:
// - *Window: The sink. Close it to destroy the window.
// - error: An error if Tk rejects the window setup.
func New(title string, display image.Rectangle, logger *slog.Logger) (*Window, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tr, keyed := render.TransparencyFor(runtime.GOOS)

	App.WmTitle(title)
	WmGeometry(App, render.Geometry(display))
	if _, err := EvalErr("wm overrideredirect " + App.String() + " 1"); err != nil {
		return nil, errors.Wrap(err, "borderless overlay")
	}
	WmAttributes(App, "-topmost", 1)
	if keyed {
		WmAttributes(App, tr.Attributes...)
	} else {
		logger.Warn("overlay background is opaque on this platform", "os", runtime.GOOS)
	}

	w := &Window{bounds: display, logger: logger}
	w.canvas = Canvas(Background(tr.Background), Highlightthickness(0), Borderwidth(0),
		Width(display.Dx()), Height(display.Dy()))
	Pack(w.canvas)
	Bind(App, "<Escape>", Command(func() { w.stop.Store(true) }))
	Bind(App, "<KeyPress-q>", Command(func() { w.stop.Store(true) }))

	if _, err := EvalErr("update"); err != nil {
		return nil, errors.Wrap(err, "map overlay")
	}
	logger.Info("overlay window opened", "title", title, "display", display.String(), "keyed", keyed)
	return w, nil
}

// Present redraws the canvas and processes pending Tk events. ESC or q requests a stop.
func (w *Window) Present(ctx context.Context, p controller.Presentation) error {
	script := render.CanvasScript(w.canvas.String(), render.Layout(p, w.bounds.Min))
	if _, err := EvalErr(script + "update\n"); err != nil {
		return errors.Wrapf(err, "draw frame %d", p.Frame)
	}
	if w.stop.Load() {
		w.logger.InfoContext(ctx, "overlay closed by user")
		return common.ErrStopRequested
	}
	return nil
}

// Close destroys the overlay.
func (w *Window) Close() error {
	Destroy(App)
	return nil
}
