// Package onnx - ONNX Runtime backed window classifier.
package onnx

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/nvr-ai/player-overlay/common"
	"github.com/nvr-ai/player-overlay/images"
	"github.com/nvr-ai/player-overlay/inference"
	"github.com/nvr-ai/player-overlay/inference/providers"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

var envMu sync.Mutex

// initEnvironment points the runtime at its shared library and initializes it once per process.
func initEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	libPath, err := providers.GetSharedLibPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "onnxruntime library not found at %s (set %s)", libPath, providers.SharedLibEnv)
	}
	ort.SetSharedLibraryPath(libPath)
	return errors.Wrap(ort.InitializeEnvironment(), "initialize onnxruntime")
}

// Classifier scores 3-channel windows with a binary ONNX model.
//
// The model must take a single float tensor of rank 4 holding 3-channel images, either
// channels-last (N,H,W,3) or channels-first (N,3,H,W), and return one sigmoid score or two
// softmax scores per image.
type Classifier struct {
	path    string
	spec    inference.InputSpec
	input   string
	output  string
	session *ort.DynamicAdvancedSession
	logger  *slog.Logger

	// fixedBatch is the model's static batch dimension, or 0 when dynamic.
	fixedBatch int

	mu       sync.Mutex
	verified bool
}

// Load opens the model at path and checks it against the options.
//
// Arguments:
// - path: Path to the .onnx file.
// - opts: Window size, layout, batching and provider options.
//
// Returns:
// - *Classifier: A ready classifier.
// - error: A *common.ModelLoadError for any missing, unreadable or incompatible model.
//
// @example
// clf, err := onnx.Load("player.onnx", onnx.DefaultOptions())
// if err != nil { return err }
// defer clf.Close()
func Load(path string, opts Options) (*Classifier, error) {
	fail := func(err error) (*Classifier, error) {
		return nil, &common.ModelLoadError{Path: path, Err: err}
	}
	if err := opts.validate(); err != nil {
		return fail(err)
	}
	if _, err := os.Stat(path); err != nil {
		return fail(err)
	}
	if err := initEnvironment(); err != nil {
		return fail(err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return fail(errors.Wrap(err, "read model io"))
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return fail(errors.Errorf("expected 1 input and at least 1 output, got %d and %d", len(inputs), len(outputs)))
	}
	in, out := inputs[0], outputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat {
		return fail(errors.Errorf("input %q has element type %v, want float", in.Name, in.DataType))
	}

	shape, err := inspectInput([]int64(in.Dimensions), opts.Layout)
	if err != nil {
		return fail(errors.Wrapf(err, "input %q", in.Name))
	}
	if err := shape.matches(opts.Window); err != nil {
		return fail(err)
	}

	maxBatch := opts.BatchSize
	if shape.batch > 0 {
		maxBatch = shape.batch
	}

	options, err := opts.Provider.NewSessionOptions()
	if err != nil {
		return fail(err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(path, []string{in.Name}, []string{out.Name}, options)
	if err != nil {
		return fail(errors.Wrap(err, "create session"))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Classifier{
		path:   path,
		input:  in.Name,
		output: out.Name,
		spec: inference.InputSpec{
			Window:   opts.Window,
			Layout:   shape.layout,
			Order:    opts.Order,
			MaxBatch: maxBatch,
		},
		session:    session,
		logger:     logger,
		fixedBatch: shape.batch,
	}

	for i := 0; i < opts.Warmup; i++ {
		if _, err := c.Infer(context.Background(), c.blank()); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	logger.Info("model loaded",
		"path", path,
		"input", in.Name,
		"dims", []int64(in.Dimensions),
		"layout", shape.layout,
		"provider", opts.Provider.Backend,
		"max_batch", maxBatch,
	)
	return c, nil
}

// Spec reports the input contract resolved at load time.
func (c *Classifier) Spec() inference.InputSpec { return c.spec }

// Infer scores a batch of normalized windows.
//
// The first inference that fails is reported as a *common.ModelLoadError, since it means the
// model cannot consume the configured window shape. Later failures are plain errors.
func (c *Classifier) Infer(ctx context.Context, batch *tensor.Dense) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := inference.BatchSize(batch)
	if n < 1 || n > c.spec.MaxBatch {
		return nil, errors.Errorf("batch of %d outside [1, %d]", n, c.spec.MaxBatch)
	}
	data, ok := batch.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("batch holds %T, want []float32", batch.Data())
	}

	dims := make([]int64, 0, 4)
	for _, d := range batch.Shape() {
		dims = append(dims, int64(d))
	}
	rows := n
	if c.fixedBatch > 0 && n < c.fixedBatch {
		// Pad to the static batch dimension; extra scores are dropped below.
		padded := make([]float32, len(data)/n*c.fixedBatch)
		copy(padded, data)
		data = padded
		dims[0] = int64(c.fixedBatch)
		rows = c.fixedBatch
	}

	input, err := ort.NewTensor(ort.NewShape(dims...), data)
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, errors.New("classifier closed")
	}
	err = c.session.Run([]ort.Value{input}, outputs)
	first := !c.verified
	if err == nil {
		c.verified = true
	}
	c.mu.Unlock()
	if err != nil {
		if first {
			return nil, &common.ModelLoadError{Path: c.path, Err: errors.Wrap(err, "first inference")}
		}
		return nil, errors.Wrap(err, "run session")
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("output %q has type %T, want float tensor", c.output, outputs[0])
	}
	scores, err := inference.DecodeScores(out.GetData(), rows)
	if err != nil {
		return nil, err
	}
	return scores[:n], nil
}

// Close releases the session.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	err := c.session.Destroy()
	c.session = nil
	c.logger.Debug("model closed", "path", c.path)
	return errors.Wrap(err, "destroy session")
}

// blank returns an all-zero single-window batch.
func (c *Classifier) blank() *tensor.Dense {
	shape := c.spec.Normalizer().Shape()
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(make([]float32, shape.TotalSize())))
}

// inputShape is the resolved geometry of a rank-4 image input. Unknown dimensions are 0.
type inputShape struct {
	batch         int
	height, width int
	layout        images.Layout
}

// inspectInput resolves the layout and spatial size of a model input.
//
// A dimension of exactly 3 in the last position means channels-last; in the second position
// channels-first. When both or neither hold, want decides; with no preference that is an error.
func inspectInput(dims []int64, want images.Layout) (inputShape, error) {
	if len(dims) != 4 {
		return inputShape{}, errors.Errorf("expected 4D input, got %dD", len(dims))
	}
	known := func(d int64) int {
		if d > 0 {
			return int(d)
		}
		return 0
	}

	hwc := dims[3] == images.Channels
	chw := dims[1] == images.Channels
	layout := want
	switch {
	case hwc && !chw:
		if want != "" && want != images.LayoutHWC {
			return inputShape{}, errors.Errorf("input %v is channels-last, configured %s", dims, want)
		}
		layout = images.LayoutHWC
	case chw && !hwc:
		if want != "" && want != images.LayoutCHW {
			return inputShape{}, errors.Errorf("input %v is channels-first, configured %s", dims, want)
		}
		layout = images.LayoutCHW
	case want == "":
		return inputShape{}, errors.Errorf("cannot tell layout of input %v; configure one", dims)
	}

	s := inputShape{batch: known(dims[0]), layout: layout}
	if layout == images.LayoutHWC {
		s.height, s.width = known(dims[1]), known(dims[2])
	} else {
		s.height, s.width = known(dims[2]), known(dims[3])
	}
	return s, nil
}

// matches checks the recorded spatial size against the window. Unknown dimensions pass and are
// checked by the first inference instead.
func (s inputShape) matches(window images.Size) error {
	if (s.width > 0 && s.width != window.Width) || (s.height > 0 && s.height != window.Height) {
		return errors.Errorf("model expects %dx%d windows, configured %dx%d",
			s.width, s.height, window.Width, window.Height)
	}
	return nil
}
