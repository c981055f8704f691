package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/nvr-ai/player-overlay/capture"
	"github.com/nvr-ai/player-overlay/common"
	"github.com/nvr-ai/player-overlay/config"
	"github.com/nvr-ai/player-overlay/controller"
	"github.com/nvr-ai/player-overlay/detector"
	"github.com/nvr-ai/player-overlay/images"
	"github.com/nvr-ai/player-overlay/metrics"
	"github.com/nvr-ai/player-overlay/onnx"
	"github.com/nvr-ai/player-overlay/pointer"
	"github.com/nvr-ai/player-overlay/pointer/native"
	"github.com/nvr-ai/player-overlay/profiler"
	"github.com/nvr-ai/player-overlay/render"
	"github.com/nvr-ai/player-overlay/render/highgui"
	"github.com/nvr-ai/player-overlay/render/tkoverlay"
	"github.com/pkg/errors"
)

const windowTitle = "player-overlay"

func main() {
	overrides := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := run(overrides); err != nil {
		fmt.Fprintf(os.Stderr, "player-overlay: %v\n", err)
		os.Exit(1)
	}
}

func run(overrides *config.Overrides) error {
	cfg, err := config.Load(overrides.Path())
	if err != nil {
		return err
	}
	if err := overrides.Apply(&cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings() {
		logger.Warn("configuration", "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{Logger: logger})
	if cfg.Profile {
		prof.Start(ctx)
		defer prof.Stop()
	}

	opts, err := cfg.ONNXOptions(logger)
	if err != nil {
		return err
	}
	loaded := prof.StartOperation("model_load")
	clf, err := onnx.Load(cfg.Model, opts)
	loaded()
	if err != nil {
		return err
	}
	defer clf.Close()

	scanner, err := detector.NewScanner(clf, cfg.ScanConfig(), logger)
	if err != nil {
		return err
	}

	var capturer controller.Capturer
	var region images.Region
	if cfg.ReplayDir != "" {
		replay, err := capture.NewReplay(cfg.ReplayDir, cfg.ReplayPrefix, logger)
		if err != nil {
			return err
		}
		capturer = replay
		region = images.RegionFromRect(replay.Bounds())
		if cfg.ROI != nil {
			region = *cfg.ROI
		}
	} else {
		capturer = capture.NewScreen(logger)
		if cfg.ROI != nil {
			region = *cfg.ROI
		} else if region, err = capture.PrimaryRegion(); err != nil {
			return &common.CaptureError{Err: err}
		}
	}

	sink, err := newSink(cfg, region, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	var ptr controller.Pointer
	if cfg.EnableAct {
		ptr = pointer.NewActuator(native.New(), cfg.FailSafeMargin, logger)
	}

	ctl, err := controller.New(capturer, scanner, sink, ptr, controller.Options{
		Region:    region,
		Act:       cfg.EnableAct,
		MaxFrames: cfg.MaxFrames,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if cfg.Profile {
		ctl.AddObserver(prof)
	}

	if cfg.MetricsAddr != "" {
		m := metrics.New()
		m.TrackState(ctl.State)
		ctl.AddObserver(m)
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	logger.Info("player-overlay started",
		"model", cfg.Model,
		"region", region.String(),
		"window", fmt.Sprintf("%dx%d", cfg.WindowWidth, cfg.WindowHeight),
		"stride", cfg.Stride,
		"threshold", cfg.ConfidenceThreshold,
		"max_windows", cfg.MaxWindowsPerFrame,
		"act", cfg.EnableAct,
		"replay", cfg.ReplayDir,
	)

	if err := ctl.Run(ctx); err != nil {
		logger.Error("frame loop stopped", "error", err, "state", ctl.State().String())
		return err
	}
	logger.Info("player-overlay stopped")
	return nil
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, hopts)), nil
}

// newSink opens the configured overlay. Without colour keying a Tk window over the live screen
// would be scanned as part of the next frame, so detections are logged instead.
func newSink(cfg config.Config, region images.Region, logger *slog.Logger) (controller.Sink, error) {
	switch cfg.Overlay {
	case config.OverlayNone:
		return render.NewLog(logger), nil
	case config.OverlayHighGUI:
		return highgui.NewWindow(windowTitle, overlayDisplay(region), logger), nil
	}
	if cfg.ReplayDir == "" && !tkoverlay.Supported() {
		logger.Warn("no transparent overlay on this platform, logging detections instead", "os", runtime.GOOS)
		return render.NewLog(logger), nil
	}
	return tkoverlay.New(windowTitle, overlayDisplay(region), logger)
}

// overlayDisplay returns the bounds of the display holding the region's origin. Without a
// matching display the canvas covers the region itself.
func overlayDisplay(region images.Region) image.Rectangle {
	displays := capture.Displays()
	for _, d := range displays {
		if region.Origin().In(d) {
			return d
		}
	}
	return region.Rect()
}
