// Package inference - Binary classifier port and batch assembly.
package inference

import (
	"context"

	"github.com/nvr-ai/player-overlay/images"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// InputSpec describes what a classifier expects for each window.
type InputSpec struct {
	// Window is the spatial size of one input image.
	Window images.Size
	// Layout is the per-image memory order.
	Layout images.Layout
	// Order is the channel order.
	Order images.ColorOrder
	// MaxBatch is the largest batch Infer accepts. Always at least 1.
	MaxBatch int
}

// Normalizer returns the patch normalizer matching the spec.
func (s InputSpec) Normalizer() images.Normalizer {
	return images.Normalizer{Size: s.Window, Layout: s.Layout, Order: s.Order}
}

// Classifier scores normalized windows. Implementations never mutate their model, so a
// Classifier may be shared, but callers serialize Infer.
type Classifier interface {
	// Spec reports the input contract.
	Spec() InputSpec
	// Infer returns one score in [0, 1] per batch element, in batch order.
	Infer(ctx context.Context, batch *tensor.Dense) ([]float32, error)
	// Close releases native resources.
	Close() error
}

// Batch stacks single-element tensors along the batch axis.
//
// Arguments:
// - items: Tensors of identical shape whose first dimension is 1.
//
// Returns:
// - A tensor of shape (len(items), ...).
// - An error if items is empty or the shapes disagree.
func Batch(items []*tensor.Dense) (*tensor.Dense, error) {
	switch len(items) {
	case 0:
		return nil, errors.New("empty batch")
	case 1:
		return items[0], nil
	}
	out, err := items[0].Concat(0, items[1:]...)
	if err != nil {
		return nil, errors.Wrap(err, "stack batch")
	}
	return out, nil
}

// BatchSize returns the leading dimension of a batch tensor.
func BatchSize(batch *tensor.Dense) int {
	shape := batch.Shape()
	if len(shape) == 0 {
		return 0
	}
	return shape[0]
}

// DecodeScores turns a flat classifier output into one positive-class score per element.
//
// A single output per element is taken as a sigmoid probability. Two outputs per element are
// taken as softmax probabilities with the positive class at index 1.
func DecodeScores(out []float32, n int) ([]float32, error) {
	if n <= 0 || len(out) == 0 || len(out)%n != 0 {
		return nil, errors.Errorf("output of %d values does not split into %d scores", len(out), n)
	}
	switch k := len(out) / n; k {
	case 1:
		return append([]float32(nil), out...), nil
	case 2:
		scores := make([]float32, n)
		for i := range scores {
			scores[i] = out[i*2+1]
		}
		return scores, nil
	default:
		return nil, errors.Errorf("expected 1 or 2 outputs per window, got %d", k)
	}
}
