// Package capture - Screen and replay frame sources for the frame loop.
package capture

import (
	"context"
	"image"
	"log/slog"

	"github.com/kbinani/screenshot"
	"github.com/nvr-ai/player-overlay/common"
	"github.com/nvr-ai/player-overlay/images"
	"github.com/pkg/errors"
)

// Displays returns the bounds of every active display in virtual screen coordinates.
func Displays() []image.Rectangle {
	n := screenshot.NumActiveDisplays()
	out := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, screenshot.GetDisplayBounds(i))
	}
	return out
}

// PrimaryRegion returns the full primary display as a region.
func PrimaryRegion() (images.Region, error) {
	if screenshot.NumActiveDisplays() < 1 {
		return images.Region{}, errors.New("no active displays")
	}
	return images.RegionFromRect(screenshot.GetDisplayBounds(0)), nil
}

// Screen grabs regions of the live desktop.
type Screen struct {
	logger   *slog.Logger
	displays func() []image.Rectangle
	grab     func(image.Rectangle) (*image.RGBA, error)
}

// NewScreen returns a desktop capturer. A nil logger uses slog.Default().
func NewScreen(logger *slog.Logger) *Screen {
	if logger == nil {
		logger = slog.Default()
	}
	return &Screen{
		logger:   logger,
		displays: Displays,
		grab:     screenshot.CaptureRect,
	}
}

// Grab captures region. The region must lie inside the union of the active displays.
//
// Returns:
// - image.Image: An RGBA image of exactly the region's size with bounds starting at (0, 0).
// - error: A *common.CaptureError when the region is off-screen or the platform grab fails.
func (s *Screen) Grab(ctx context.Context, region images.Region) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := region.Rect()

	var union image.Rectangle
	for _, d := range s.displays() {
		union = union.Union(d)
	}
	if !r.In(union) {
		return nil, &common.CaptureError{Region: r, Err: errors.Errorf("outside displays %v", union)}
	}

	img, err := s.grab(r)
	if err != nil {
		s.logger.Debug("screen grab failed", "region", region.String(), "error", err)
		return nil, &common.CaptureError{Region: r, Err: err}
	}
	if b := img.Bounds(); b.Dx() != r.Dx() || b.Dy() != r.Dy() {
		return nil, &common.CaptureError{Region: r, Err: errors.Errorf("platform returned %v", b)}
	}
	return img, nil
}
