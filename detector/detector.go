// Package detector - Sliding-window player detection over a captured region.
package detector

import (
	"context"
	"image"
	"log/slog"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/player-overlay/common"
	"github.com/nvr-ai/player-overlay/images"
	"github.com/nvr-ai/player-overlay/inference"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Config tunes a scan.
type Config struct {
	// Stride is the window step in pixels on both axes. A stride below 1 yields no windows.
	Stride int
	// Threshold is the minimum score for a window to be reported.
	Threshold float32
	// MaxWindows caps classifier evaluations per frame.
	MaxWindows int
	// PyramidScale enables multi-scale scanning when greater than 1.
	PyramidScale float64
}

// Validate checks the scan parameters. Stride is not checked: a stride or region that produces
// no windows scans to "no detection" rather than failing.
func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return errors.Errorf("threshold %v must be within [0, 1]", c.Threshold)
	}
	if c.MaxWindows < 1 {
		return errors.Errorf("max windows %d must be at least 1", c.MaxWindows)
	}
	if c.PyramidScale != 0 && c.PyramidScale <= 1 {
		return errors.Errorf("pyramid scale %v must be greater than 1, or 0 to disable", c.PyramidScale)
	}
	return nil
}

// Stats are the per-frame budget counters.
type Stats struct {
	// Evaluated counts windows submitted to the classifier. Never exceeds the cap.
	Evaluated int
	// Failed counts windows whose inference failed and were skipped.
	Failed int
	// Truncated is set when windows remained after the cap was reached.
	Truncated bool
	// Levels counts the pyramid levels visited.
	Levels int
}

// Result is the outcome of scanning one frame.
type Result struct {
	// Detection is in ROI-local coordinates. Valid only when Found.
	Detection common.Detection
	Found     bool
	Stats     Stats
}

// Scanner runs enumeration, normalization, classification and selection over one frame.
type Scanner struct {
	clf    inference.Classifier
	cfg    Config
	spec   inference.InputSpec
	norm   images.Normalizer
	logger *slog.Logger
}

// NewScanner binds a classifier to scan parameters.
//
// Arguments:
// - clf: The window classifier.
// - cfg: Stride, threshold, cap and pyramid settings.
// - logger: Receives per-window failures. Nil means slog.Default().
//
// Returns:
// - *Scanner: A scanner reusable across frames from one goroutine.
// - error: An error if cfg is invalid.
func NewScanner(clf inference.Classifier, cfg Config, logger *slog.Logger) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	spec := clf.Spec()
	if spec.MaxBatch < 1 {
		spec.MaxBatch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		clf:    clf,
		cfg:    cfg,
		spec:   spec,
		norm:   spec.Normalizer(),
		logger: logger,
	}, nil
}

// Window returns the classifier window size.
func (s *Scanner) Window() images.Size { return s.spec.Window }

// Cap returns the per-frame window cap the scanner enforces.
func (s *Scanner) Cap() int { return s.cfg.MaxWindows }

type pending struct {
	window images.Window
	level  images.Level
	input  *tensor.Dense
}

// Scan finds the best window in img, which is the captured region.
//
// Windows are enumerated row-major per pyramid level, largest level first. At most
// Config.MaxWindows windows are evaluated; the scan stops early once the cap is hit. Windows
// are classified in batches of up to the classifier's MaxBatch but scores are offered to the
// selector in enumeration order, so the result does not depend on the batch size.
//
// Per-window inference failures are logged and skipped. A *common.ModelLoadError from the
// classifier aborts the scan, as does cancellation of ctx, which is checked between batches.
//
// Returns:
// - Result: The best detection, if any, with the frame's counters.
// - error: A fatal classifier error or ctx.Err().
func (s *Scanner) Scan(ctx context.Context, img image.Image) (Result, error) {
	var (
		stats Stats
		sel   = NewSelector(s.cfg.Threshold)
		batch = make([]pending, 0, s.spec.MaxBatch)
		roi   = images.SizeOf(img).Point()
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		scores, errs, err := s.classify(ctx, batch)
		if err != nil {
			return err
		}
		for i, p := range batch {
			if errs[i] != nil {
				stats.Failed++
				s.logger.Warn("window skipped", "x", p.window.X, "y", p.window.Y, "err", errs[i])
				continue
			}
			box := common.ScaleBox(p.window.Box(s.spec.Window), p.level.ScaleX, p.level.ScaleY, roi)
			sel.Observe(common.Detection{Box: box, Score: scores[i]})
		}
		batch = batch[:0]
		return nil
	}

scan:
	for level := range images.Pyramid(img, s.cfg.PyramidScale, s.spec.Window) {
		stats.Levels++
		for w := range images.Windows(level.Image, s.cfg.Stride, s.spec.Window) {
			if stats.Evaluated >= s.cfg.MaxWindows {
				stats.Truncated = true
				break scan
			}
			stats.Evaluated++
			batch = append(batch, pending{window: w, level: level, input: s.norm.Normalize(w.Patch)})
			if len(batch) == s.spec.MaxBatch {
				if err := flush(); err != nil {
					return Result{Stats: stats}, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return Result{Stats: stats}, err
	}

	det, found := sel.Result()
	return Result{Detection: det, Found: found, Stats: stats}, nil
}

// classify scores a batch. When a multi-window call fails for a non-fatal reason each window is
// retried alone so one bad window does not discard its neighbours.
//
// Returns per-window scores and errors, or a fatal error.
func (s *Scanner) classify(ctx context.Context, batch []pending) ([]float32, []error, error) {
	errs := make([]error, len(batch))

	if len(batch) > 1 {
		inputs := make([]*tensor.Dense, len(batch))
		for i, p := range batch {
			inputs[i] = p.input
		}
		stacked, err := inference.Batch(inputs)
		if err == nil {
			var scores []float32
			scores, err = s.clf.Infer(ctx, stacked)
			if err == nil && len(scores) != len(batch) {
				err = errors.Errorf("classifier returned %d scores for %d windows", len(scores), len(batch))
			}
			if err == nil {
				for i, p := range batch {
					errs[i] = checkScore(p.window, scores[i])
				}
				return scores, errs, nil
			}
		}
		if fatal(ctx, err) {
			return nil, nil, err
		}
		s.logger.Debug("batch inference failed, retrying per window", "size", len(batch), "err", err)
	}

	scores := make([]float32, len(batch))
	for i, p := range batch {
		out, err := s.clf.Infer(ctx, p.input)
		if err == nil && len(out) != 1 {
			err = errors.Errorf("classifier returned %d scores for 1 window", len(out))
		}
		if err != nil {
			if fatal(ctx, err) {
				return nil, nil, err
			}
			errs[i] = &common.InferenceError{X: p.window.X, Y: p.window.Y, Err: err}
			continue
		}
		scores[i] = out[0]
		errs[i] = checkScore(p.window, out[0])
	}
	return scores, errs, nil
}

func fatal(ctx context.Context, err error) bool {
	var mle *common.ModelLoadError
	return errors.As(err, &mle) || ctx.Err() != nil
}

func checkScore(w images.Window, score float32) error {
	if math32.IsNaN(score) || score < 0 || score > 1 {
		return &common.InferenceError{X: w.X, Y: w.Y, Err: errors.Errorf("score %v outside [0, 1]", score)}
	}
	return nil
}
