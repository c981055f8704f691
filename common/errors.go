package common

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
)

var (
	// ErrStopRequested is returned by a sink or pointer when the user asked the loop to stop.
	ErrStopRequested = errors.New("stop requested")

	// ErrPointerAbort is returned when the pointer sits in a screen corner and the act step
	// must be skipped.
	ErrPointerAbort = errors.New("pointer fail-safe triggered")
)

// ModelLoadError reports a model that is missing, corrupt or incompatible with the configured
// window size. It is fatal.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %q: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// CaptureError reports a failed screen grab. It is fatal.
type CaptureError struct {
	Region image.Rectangle
	Err    error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %v: %v", e.Region, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// InferenceError reports a failed classification of one window. The window is skipped.
type InferenceError struct {
	// X and Y are the window offset relative to the ROI.
	X, Y int
	Err  error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("infer window at (%d, %d): %v", e.X, e.Y, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// IsFatal reports whether err must stop the frame loop.
func IsFatal(err error) bool {
	var mle *ModelLoadError
	var ce *CaptureError
	return errors.As(err, &mle) || errors.As(err, &ce)
}
