package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// TestNormalizeLayouts verifies shape, channel order and value scaling.
func TestNormalizeLayouts(t *testing.T) {
	patch := solid(64, 128, color.RGBA{R: 255, G: 51, B: 0, A: 255})

	tests := []struct {
		name   string
		layout Layout
		order  ColorOrder
		shape  tensor.Shape
		first3 []float32
	}{
		{
			name:   "hwc rgb",
			layout: LayoutHWC,
			order:  RGB,
			shape:  tensor.Shape{1, 128, 64, 3},
			first3: []float32{1, 0.2, 0},
		},
		{
			name:   "hwc bgr",
			layout: LayoutHWC,
			order:  BGR,
			shape:  tensor.Shape{1, 128, 64, 3},
			first3: []float32{0, 0.2, 1},
		},
		{
			name:   "chw rgb",
			layout: LayoutCHW,
			order:  RGB,
			shape:  tensor.Shape{1, 3, 128, 64},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Normalizer{Size: Size{64, 128}, Layout: tt.layout, Order: tt.order}
			out := n.Normalize(patch)

			assert.True(t, tt.shape.Eq(out.Shape()))
			data := out.Data().([]float32)
			require.Len(t, data, 64*128*3)
			if tt.first3 != nil {
				assert.InDeltaSlice(t, tt.first3, data[:3], 1e-6)
			}
			if tt.layout == LayoutCHW {
				plane := 64 * 128
				assert.InDelta(t, 1.0, data[0], 1e-6)
				assert.InDelta(t, 0.2, data[plane], 1e-6)
				assert.InDelta(t, 0.0, data[2*plane], 1e-6)
			}
			for _, v := range data {
				assert.True(t, v >= 0 && v <= 1)
			}
		})
	}
}

// TestNormalizeDeterministic verifies identical input gives bit-identical output.
func TestNormalizeDeterministic(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 160))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	n := Normalizer{Size: Size{64, 128}, Layout: LayoutHWC, Order: RGB}

	a := n.Normalize(img).Data().([]float32)
	b := n.Normalize(img).Data().([]float32)
	assert.Equal(t, a, b)
}

// TestNormalizeSubImage verifies patches with a non-zero origin read the right pixels.
func TestNormalizeSubImage(t *testing.T) {
	parent := solid(200, 200, color.RGBA{A: 255})
	marker := solid(64, 128, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	for y := 0; y < 128; y++ {
		copy(parent.Pix[parent.PixOffset(100, 50+y):], marker.Pix[marker.PixOffset(0, y):marker.PixOffset(64, y)])
	}

	n := Normalizer{Size: Size{64, 128}, Layout: LayoutHWC, Order: RGB}
	on := n.Normalize(parent.SubImage(image.Rect(100, 50, 164, 178))).Data().([]float32)
	off := n.Normalize(parent.SubImage(image.Rect(0, 0, 64, 128))).Data().([]float32)

	assert.InDelta(t, 1.0, on[len(on)-1], 1e-6)
	assert.InDelta(t, 0.0, off[len(off)-1], 1e-6)
}

// TestResample verifies both resize directions land on the exact target size.
func TestResample(t *testing.T) {
	target := Size{64, 128}

	same := solid(64, 128, color.RGBA{A: 255})
	assert.Same(t, same, Resample(same, target).(*image.RGBA))

	shrunk := Resample(solid(128, 256, color.RGBA{R: 200, A: 255}), target)
	assert.Equal(t, target, SizeOf(shrunk))
	r, _, _, _ := shrunk.At(10, 10).RGBA()
	assert.InDelta(t, 200, float64(r>>8), 1)

	grown := Resample(solid(32, 64, color.RGBA{G: 90, A: 255}), target)
	assert.Equal(t, target, SizeOf(grown))
	_, g, _, _ := grown.At(30, 60).RGBA()
	assert.InDelta(t, 90, float64(g>>8), 1)

	mixed := Resample(solid(128, 64, color.RGBA{A: 255}), target)
	assert.Equal(t, target, SizeOf(mixed))
}

// TestParseLayoutAndOrder covers the config string forms.
func TestParseLayoutAndOrder(t *testing.T) {
	l, err := ParseLayout("NHWC")
	require.NoError(t, err)
	assert.Equal(t, LayoutHWC, l)
	l, err = ParseLayout("chw")
	require.NoError(t, err)
	assert.Equal(t, LayoutCHW, l)
	_, err = ParseLayout("hw")
	assert.Error(t, err)

	o, err := ParseColorOrder("BGR")
	require.NoError(t, err)
	assert.Equal(t, BGR, o)
	_, err = ParseColorOrder("yuv")
	assert.Error(t, err)
}
