package onnx

import (
	"log/slog"

	"github.com/nvr-ai/player-overlay/images"
	"github.com/nvr-ai/player-overlay/inference/providers"
	"github.com/pkg/errors"
)

// Options for loading an ONNX classifier.
type Options struct {
	// Window is the size every patch is resized to. The model's recorded input must agree.
	Window images.Size
	// Layout forces the tensor layout. Empty infers it from the model's input shape.
	Layout images.Layout
	// Order is the channel order the model was trained on.
	Order images.ColorOrder
	// BatchSize is the preferred number of windows per inference call.
	BatchSize int
	// Warmup is how many dummy inferences to run at load time. Any failure is a load error.
	Warmup int
	// Provider selects the execution provider.
	Provider providers.Config
	// Logger receives load and close events. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the options for the reference 64x128 channels-last model.
func DefaultOptions() Options {
	return Options{
		Window:    images.Size{Width: 64, Height: 128},
		Order:     images.RGB,
		BatchSize: 16,
		Warmup:    1,
		Provider:  providers.DefaultConfig(),
	}
}

func (o Options) validate() error {
	if !o.Window.Positive() {
		return errors.Errorf("window %dx%d must be positive", o.Window.Width, o.Window.Height)
	}
	if o.BatchSize < 1 {
		return errors.Errorf("batch size %d must be at least 1", o.BatchSize)
	}
	if o.Warmup < 0 {
		return errors.Errorf("warmup %d must not be negative", o.Warmup)
	}
	return nil
}
