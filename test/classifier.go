package test

import (
	"context"
	"sync"

	"github.com/nvr-ai/player-overlay/common"
	"github.com/nvr-ai/player-overlay/images"
	"github.com/nvr-ai/player-overlay/inference"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// StubScale is the score the stub gives a fully white window.
const StubScale = 0.95

// StubClassifier scores each window by the mean of its normalized pixels times StubScale, so a
// window entirely covering a white marker scores 0.95 and a black window scores 0.
type StubClassifier struct {
	spec inference.InputSpec

	// ScoreFn overrides the default mean-based score.
	ScoreFn func(mean float32) float32
	// BatchErr, when set, fails every call with more than one window.
	BatchErr error
	// WindowErr, when it returns an error for any window, fails the whole call.
	WindowErr func(mean float32) error
	// FirstCallErr fails the first call as a model load error.
	FirstCallErr error

	mu      sync.Mutex
	calls   int
	windows int
	closed  bool
}

// NewStubClassifier returns a stub for the given window size and batch limit.
func NewStubClassifier(window images.Size, maxBatch int) *StubClassifier {
	return &StubClassifier{
		spec: inference.InputSpec{
			Window:   window,
			Layout:   images.LayoutHWC,
			Order:    images.RGB,
			MaxBatch: maxBatch,
		},
	}
}

// Spec implements inference.Classifier.
func (s *StubClassifier) Spec() inference.InputSpec { return s.spec }

// Infer implements inference.Classifier.
func (s *StubClassifier) Infer(ctx context.Context, batch *tensor.Dense) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()

	if first && s.FirstCallErr != nil {
		return nil, &common.ModelLoadError{Path: "stub.onnx", Err: s.FirstCallErr}
	}

	n := inference.BatchSize(batch)
	if n < 1 || n > s.spec.MaxBatch {
		return nil, errors.Errorf("batch of %d outside [1, %d]", n, s.spec.MaxBatch)
	}
	if n > 1 && s.BatchErr != nil {
		return nil, s.BatchErr
	}

	data := batch.Data().([]float32)
	per := len(data) / n
	scores := make([]float32, n)
	for i := range scores {
		var sum float32
		for _, v := range data[i*per : (i+1)*per] {
			sum += v
		}
		mean := sum / float32(per)
		if s.WindowErr != nil {
			if err := s.WindowErr(mean); err != nil {
				return nil, err
			}
		}
		if s.ScoreFn != nil {
			scores[i] = s.ScoreFn(mean)
		} else {
			scores[i] = StubScale * mean
		}
	}

	s.mu.Lock()
	s.windows += n
	s.mu.Unlock()
	return scores, nil
}

// Close implements inference.Classifier.
func (s *StubClassifier) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Calls returns how many Infer calls were made.
func (s *StubClassifier) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Windows returns how many windows were scored successfully.
func (s *StubClassifier) Windows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windows
}

// Closed reports whether Close was called.
func (s *StubClassifier) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
