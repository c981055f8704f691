// Package pointer - Moves the pointer to a detection and clicks, behind a corner fail-safe.
package pointer

import (
	"context"
	"image"
	"log/slog"

	"github.com/nvr-ai/player-overlay/common"
	"github.com/pkg/errors"
)

// Driver is the platform input backend.
type Driver interface {
	// Location returns the current pointer position in screen coordinates.
	Location() image.Point
	// ScreenSize returns the size of the primary display.
	ScreenSize() image.Point
	Move(p image.Point) error
	Click() error
}

// Actuator clicks screen points through a Driver.
//
// Parking the pointer within Margin pixels of any screen corner disables clicking, so a user
// can always take back control. A zero Margin only matches the exact corner pixels.
type Actuator struct {
	driver Driver
	margin int
	logger *slog.Logger
}

// NewActuator returns an Actuator. A negative margin is treated as zero.
func NewActuator(driver Driver, margin int, logger *slog.Logger) *Actuator {
	if logger == nil {
		logger = slog.Default()
	}
	if margin < 0 {
		margin = 0
	}
	return &Actuator{driver: driver, margin: margin, logger: logger}
}

// InCorner reports whether p lies within margin pixels of a corner of a screen of the given size.
func InCorner(p, size image.Point, margin int) bool {
	nearX := p.X <= margin || p.X >= size.X-1-margin
	nearY := p.Y <= margin || p.Y >= size.Y-1-margin
	return nearX && nearY
}

// Click moves to target and presses the left button.
//
// Returns:
// - error: common.ErrPointerAbort when the fail-safe tripped, a wrapped driver error otherwise.
func (a *Actuator) Click(ctx context.Context, target image.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	at := a.driver.Location()
	if InCorner(at, a.driver.ScreenSize(), a.margin) {
		a.logger.WarnContext(ctx, "fail-safe tripped", "pointer", at.String(), "margin", a.margin)
		return common.ErrPointerAbort
	}

	if err := a.driver.Move(target); err != nil {
		return errors.Wrapf(err, "move to %v", target)
	}
	if err := a.driver.Click(); err != nil {
		return errors.Wrapf(err, "click at %v", target)
	}
	a.logger.DebugContext(ctx, "clicked", "target", target.String())
	return nil
}
