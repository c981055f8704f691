package images

import (
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Layout is the memory order of a single image inside a model input tensor.
type Layout string

const (
	// LayoutHWC is channels-last: (batch, height, width, channels). Keras exports use it.
	LayoutHWC Layout = "hwc"
	// LayoutCHW is channels-first: (batch, channels, height, width).
	LayoutCHW Layout = "chw"
)

// ColorOrder is the channel order fed to the model.
type ColorOrder string

const (
	// RGB matches images decoded by Keras' directory loaders.
	RGB ColorOrder = "rgb"
	// BGR matches OpenCV-native pipelines.
	BGR ColorOrder = "bgr"
)

// ParseLayout parses "hwc"/"nhwc" or "chw"/"nchw".
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(s) {
	case "hwc", "nhwc":
		return LayoutHWC, nil
	case "chw", "nchw":
		return LayoutCHW, nil
	}
	return "", errors.Errorf("unknown layout %q", s)
}

// ParseColorOrder parses "rgb" or "bgr".
func ParseColorOrder(s string) (ColorOrder, error) {
	switch strings.ToLower(s) {
	case "rgb":
		return RGB, nil
	case "bgr":
		return BGR, nil
	}
	return "", errors.Errorf("unknown color order %q", s)
}

// Channels is the number of color channels every normalized patch carries.
const Channels = 3

// Normalizer converts window patches into model input tensors.
//
// Output is a single-element batch of float32 values in [0, 1]. Normalize is pure: the same
// patch always produces bit-identical output.
type Normalizer struct {
	Size   Size
	Layout Layout
	Order  ColorOrder
}

// Shape returns the tensor shape produced for one patch.
func (n Normalizer) Shape() tensor.Shape {
	if n.Layout == LayoutCHW {
		return tensor.Shape{1, Channels, n.Size.Height, n.Size.Width}
	}
	return tensor.Shape{1, n.Size.Height, n.Size.Width, Channels}
}

// Normalize resizes the patch to the target size and scales it into a batch-of-one tensor.
//
// Arguments:
// - patch: The window sub-image.
//
// Returns:
// - A (1,H,W,3) or (1,3,H,W) float32 tensor depending on Layout.
//
// @example
// n := Normalizer{Size: Size{64, 128}, Layout: LayoutHWC, Order: RGB}
// t := n.Normalize(window.Patch)
func (n Normalizer) Normalize(patch image.Image) *tensor.Dense {
	w, h := n.Size.Width, n.Size.Height
	data := make([]float32, w*h*Channels)
	n.fill(Resample(patch, n.Size), data)
	return tensor.New(tensor.WithShape(n.Shape()...), tensor.WithBacking(data))
}

// Resample resizes img to exactly size.
//
// Images already at the target size are returned untouched. Shrinking on both axes uses
// area averaging; any enlargement uses bilinear interpolation.
func Resample(img image.Image, size Size) image.Image {
	src := SizeOf(img)
	if src == size {
		return img
	}
	if size.Fits(src) {
		return imaging.Resize(img, size.Width, size.Height, imaging.Box)
	}
	return resize.Resize(uint(size.Width), uint(size.Height), img, resize.Bilinear)
}

func (n Normalizer) fill(img image.Image, data []float32) {
	w, h := n.Size.Width, n.Size.Height
	plane := w * h
	b := img.Bounds()

	// Channel slots inside the output for source R, G, B.
	ri, gi, bi := 0, 1, 2
	if n.Order == BGR {
		ri, bi = 2, 0
	}

	put := func(x, y int, r, g, bl uint8) {
		if n.Layout == LayoutCHW {
			off := y*w + x
			data[ri*plane+off] = float32(r) / 255
			data[gi*plane+off] = float32(g) / 255
			data[bi*plane+off] = float32(bl) / 255
			return
		}
		off := (y*w + x) * Channels
		data[off+ri] = float32(r) / 255
		data[off+gi] = float32(g) / 255
		data[off+bi] = float32(bl) / 255
	}

	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
				put(x, y, src.Pix[i], src.Pix[i+1], src.Pix[i+2])
			}
		}
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
				put(x, y, src.Pix[i], src.Pix[i+1], src.Pix[i+2])
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				put(x, y, uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			}
		}
	}
}
