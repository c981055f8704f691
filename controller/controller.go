// Package controller - The frame loop: capture, scan, select, map, emit.
package controller

import (
	"context"
	"image"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/nvr-ai/player-overlay/common"
	"github.com/nvr-ai/player-overlay/detector"
	"github.com/nvr-ai/player-overlay/images"
	"github.com/pkg/errors"
)

// Capturer grabs a screen region. The returned image has exactly the region's size.
type Capturer interface {
	Grab(ctx context.Context, region images.Region) (image.Image, error)
}

// Presentation is what a sink shows for one frame.
type Presentation struct {
	Frame uint64
	// Region is the scanned area in screen coordinates.
	Region images.Region
	// Detection is in screen coordinates, nil when nothing met the threshold.
	Detection *common.Detection
	// FPS is the last published frame rate, 0 until the first second has elapsed.
	FPS float64
}

// Sink renders presentations. Returning common.ErrStopRequested stops the loop cleanly.
type Sink interface {
	Present(ctx context.Context, p Presentation) error
	Close() error
}

// Pointer moves the pointer to a screen point and clicks.
type Pointer interface {
	Click(ctx context.Context, target image.Point) error
}

// Counters are the per-frame budget counters.
type Counters struct {
	Frame     uint64
	Evaluated int
	Cap       int
	Failed    int
	Truncated bool
}

// Report summarizes one completed frame for observers.
type Report struct {
	Counters
	Detection *common.Detection
	FPS       float64
	// Clicked is set when the pointer acted on the detection.
	Clicked bool
	// PointerAborted is set when the fail-safe blocked the click.
	PointerAborted bool

	Capture time.Duration
	Scan    time.Duration
	Emit    time.Duration
	Total   time.Duration
}

// Observer receives a report after every frame. Called on the loop goroutine.
type Observer interface {
	ObserveFrame(r Report)
}

// Options configure a Controller.
type Options struct {
	// Region is the screen area to scan. It is fixed for the life of the loop.
	Region images.Region
	// Act moves the pointer to the detection and clicks.
	Act bool
	// MaxFrames stops the loop after this many frames. Zero runs until stopped.
	MaxFrames uint64
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Controller drives the frame loop. It is single-goroutine: Run must not be called concurrently.
type Controller struct {
	capturer  Capturer
	scanner   *detector.Scanner
	sink      Sink
	pointer   Pointer
	observers []Observer
	opts      Options
	logger    *slog.Logger
	now       func() time.Time

	state    atomic.Int32
	fps      *FPSMeter
	frame    uint64
	previous *common.Detection
}

// New wires a controller.
//
// Arguments:
// - capturer: Screen source.
// - scanner: Window scanner bound to the classifier.
// - sink: Overlay or log sink.
// - pointer: Pointer actuator; may be nil unless opts.Act is set.
// - opts: Region and loop options.
//
// Returns:
// - *Controller: An idle controller.
// - error: An error if the region is invalid or act mode lacks a pointer.
func New(capturer Capturer, scanner *detector.Scanner, sink Sink, pointer Pointer, opts Options) (*Controller, error) {
	if err := opts.Region.Validate(); err != nil {
		return nil, err
	}
	if capturer == nil || scanner == nil || sink == nil {
		return nil, errors.New("capturer, scanner and sink are required")
	}
	if opts.Act && pointer == nil {
		return nil, errors.New("act mode requires a pointer")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	c := &Controller{
		capturer: capturer,
		scanner:  scanner,
		sink:     sink,
		pointer:  pointer,
		opts:     opts,
		logger:   opts.Logger,
		now:      opts.Clock,
	}
	c.state.Store(int32(Idle))
	return c, nil
}

// AddObserver registers an observer. Call before Run.
func (c *Controller) AddObserver(o Observer) {
	c.observers = append(c.observers, o)
}

// State returns the current loop state. Safe to call from any goroutine.
func (c *Controller) State() State { return State(c.state.Load()) }

func (c *Controller) setState(s State) { c.state.Store(int32(s)) }

// Run processes frames until ctx is cancelled, the sink requests a stop, MaxFrames is reached or
// a fatal error occurs.
//
// Returns:
// - nil on a clean stop.
// - *common.CaptureError or *common.ModelLoadError on a fatal failure.
func (c *Controller) Run(ctx context.Context) error {
	defer c.setState(Stopped)

	c.fps = NewFPSMeter(c.now)
	c.logger.Info("frame loop started",
		"region", c.opts.Region.String(),
		"window", c.scanner.Window(),
		"act", c.opts.Act,
	)

	for {
		if ctx.Err() != nil {
			c.logger.Info("frame loop stopped", "reason", "cancelled", "frames", c.frame)
			return nil
		}
		if c.opts.MaxFrames > 0 && c.frame >= c.opts.MaxFrames {
			c.logger.Info("frame loop stopped", "reason", "max frames", "frames", c.frame)
			return nil
		}

		if err := c.step(ctx); err != nil {
			switch {
			case errors.Is(err, common.ErrStopRequested):
				c.logger.Info("frame loop stopped", "reason", "stop requested", "frames", c.frame)
				return nil
			case ctx.Err() != nil:
				c.logger.Info("frame loop stopped", "reason", "cancelled", "frames", c.frame)
				return nil
			}
			c.logger.Error("frame loop failed", "frame", c.frame, "err", err)
			return err
		}

		c.setState(Throttling)
		runtime.Gosched()
	}
}

// step runs one frame from capture to emission.
func (c *Controller) step(ctx context.Context) error {
	c.frame++
	region := c.opts.Region
	report := Report{Counters: Counters{Frame: c.frame, Cap: c.scanner.Cap()}}
	start := c.now()

	c.setState(Capturing)
	img, err := c.capturer.Grab(ctx, region)
	if err == nil && images.SizeOf(img) != region.Size() {
		err = errors.Errorf("captured %v, want %v", images.SizeOf(img), region.Size())
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var ce *common.CaptureError
		if !errors.As(err, &ce) {
			err = &common.CaptureError{Region: region.Rect(), Err: err}
		}
		return err
	}
	captured := c.now()
	report.Capture = captured.Sub(start)

	c.setState(Scanning)
	res, err := c.scanner.Scan(ctx, img)
	report.Evaluated = res.Stats.Evaluated
	report.Failed = res.Stats.Failed
	report.Truncated = res.Stats.Truncated
	if err != nil {
		return err
	}
	scanned := c.now()
	report.Scan = scanned.Sub(captured)

	c.setState(Selecting)
	var det *common.Detection
	if res.Found {
		d := res.Detection
		det = &d
	}

	c.setState(Mapping)
	if det != nil {
		det.Box = common.MapToScreen(det.Box, region.Origin())
	}
	report.Detection = det

	c.setState(Emitting)
	err = c.sink.Present(ctx, Presentation{
		Frame:     c.frame,
		Region:    region,
		Detection: det,
		FPS:       c.fps.FPS(),
	})
	if err != nil {
		if errors.Is(err, common.ErrStopRequested) {
			return err
		}
		c.logger.Warn("present failed", "frame", c.frame, "err", err)
	}

	if c.opts.Act && det != nil {
		switch err := c.pointer.Click(ctx, det.Box.Center()); {
		case err == nil:
			report.Clicked = true
		case errors.Is(err, common.ErrPointerAbort):
			report.PointerAborted = true
			c.logger.Warn("click skipped", "reason", "fail-safe", "target", det.Box.Center())
		case errors.Is(err, common.ErrStopRequested):
			return err
		default:
			c.logger.Warn("click failed", "target", det.Box.Center(), "err", err)
		}
	}

	fps, updated := c.fps.Tick()
	report.FPS = fps
	if updated {
		c.logger.Debug("fps", "value", fps)
	}

	c.logTransition(det)
	c.previous = det

	end := c.now()
	report.Emit = end.Sub(scanned)
	report.Total = end.Sub(start)
	c.logger.Debug("frame",
		"frame", c.frame,
		"evaluated", report.Evaluated,
		"truncated", report.Truncated,
		"found", det != nil,
		"took", report.Total,
	)
	for _, o := range c.observers {
		o.ObserveFrame(report)
	}
	return nil
}

// logTransition logs when a player appears or disappears. It never affects selection.
func (c *Controller) logTransition(det *common.Detection) {
	switch {
	case det != nil && c.previous == nil:
		c.logger.Info("player acquired", "frame", c.frame, "box", det.Box.String(), "score", det.Score)
	case det == nil && c.previous != nil:
		c.logger.Info("player lost", "frame", c.frame, "last_box", c.previous.Box.String())
	}
}
