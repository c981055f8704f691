// Package images - Screen regions, sliding windows, pyramids and patch normalization.
package images

import (
	"image"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Size is a width and height in pixels.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Point returns the size as an image.Point.
func (s Size) Point() image.Point { return image.Pt(s.Width, s.Height) }

// Positive reports whether both dimensions are greater than zero.
func (s Size) Positive() bool { return s.Width > 0 && s.Height > 0 }

// Fits reports whether s fits inside outer.
func (s Size) Fits(outer Size) bool {
	return s.Width <= outer.Width && s.Height <= outer.Height
}

// SizeOf returns the size of an image's bounds.
func SizeOf(img image.Image) Size {
	b := img.Bounds()
	return Size{Width: b.Dx(), Height: b.Dy()}
}

// Region is the on-screen rectangle to scan, in absolute screen pixels.
type Region struct {
	Left   int `yaml:"left"`
	Top    int `yaml:"top"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// RegionFromRect converts an image.Rectangle to a Region.
func RegionFromRect(r image.Rectangle) Region {
	return Region{Left: r.Min.X, Top: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// ParseRegion parses a "left,top,width,height" string.
//
// Arguments:
// - s: Four comma or space separated integers.
//
// Returns:
// - The parsed region, validated.
// - An error if the string is malformed or the region is invalid.
//
// @example
// r, err := ParseRegion("100,50,800,600")
func ParseRegion(s string) (Region, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) != 4 {
		return Region{}, errors.Errorf("region %q: want left,top,width,height", s)
	}
	var v [4]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Region{}, errors.Wrapf(err, "region %q", s)
		}
		v[i] = n
	}
	r := Region{Left: v[0], Top: v[1], Width: v[2], Height: v[3]}
	return r, r.Validate()
}

// Validate checks the region has a non-negative origin and a positive size.
func (r Region) Validate() error {
	if r.Left < 0 || r.Top < 0 {
		return errors.Errorf("region %v: origin must be non-negative", r)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return errors.Errorf("region %v: width and height must be positive", r)
	}
	return nil
}

// IsZero reports whether the region is unset.
func (r Region) IsZero() bool { return r == Region{} }

// Origin returns the region's top-left corner in screen coordinates.
func (r Region) Origin() image.Point { return image.Pt(r.Left, r.Top) }

// Size returns the region's dimensions.
func (r Region) Size() Size { return Size{Width: r.Width, Height: r.Height} }

// Rect returns the region as an image.Rectangle in screen coordinates.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
}

func (r Region) String() string {
	return strconv.Itoa(r.Left) + "," + strconv.Itoa(r.Top) + "," +
		strconv.Itoa(r.Width) + "," + strconv.Itoa(r.Height)
}
