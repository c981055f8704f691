// Package native - robotgo pointer driver.
package native

import (
	"image"

	"github.com/go-vgo/robotgo"
)

// Driver injects pointer events through robotgo.
type Driver struct{}

// New returns the robotgo driver.
func New() Driver { return Driver{} }

// Location returns the pointer position.
func (Driver) Location() image.Point {
	x, y := robotgo.Location()
	return image.Pt(x, y)
}

// ScreenSize returns the primary display size.
func (Driver) ScreenSize() image.Point {
	w, h := robotgo.GetScreenSize()
	return image.Pt(w, h)
}

// Move warps the pointer to p.
func (Driver) Move(p image.Point) error {
	robotgo.Move(p.X, p.Y)
	return nil
}

// Click presses and releases the left button.
func (Driver) Click() error {
	robotgo.Click("left", false)
	return nil
}
