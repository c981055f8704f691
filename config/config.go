// Package config - YAML configuration with flag overrides for the player-overlay binary.
package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nvr-ai/player-overlay/detector"
	"github.com/nvr-ai/player-overlay/images"
	"github.com/nvr-ai/player-overlay/inference/providers"
	"github.com/nvr-ai/player-overlay/onnx"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is read when no -config flag is given. A missing default file is not an error.
	DefaultPath = "player-overlay.yaml"
	// DefaultModel is the exported classifier next to the binary.
	DefaultModel = "player.onnx"
)

// Overlay sinks.
const (
	// OverlayTk is the borderless, topmost Tk window with a colour-keyed background.
	OverlayTk = "tk"
	// OverlayHighGUI is an opaque OpenCV window. It covers what it would capture, so it is
	// only accepted with replayDir.
	OverlayHighGUI = "highgui"
	// OverlayNone logs presentations instead of drawing them.
	OverlayNone = "none"
)

// Config is the full runtime configuration.
type Config struct {
	Model               string         `yaml:"model"`
	WindowWidth         int            `yaml:"windowWidth"`
	WindowHeight        int            `yaml:"windowHeight"`
	Stride              int            `yaml:"stride"`
	ConfidenceThreshold float64        `yaml:"confidenceThreshold"`
	EnableAct           bool           `yaml:"enableAct"`
	ROI                 *images.Region `yaml:"roi"`
	MaxWindowsPerFrame  int            `yaml:"maxWindowsPerFrame"`

	BatchSize      int     `yaml:"batchSize"`
	PyramidScale   float64 `yaml:"pyramidScale"`
	ColorOrder     string  `yaml:"colorOrder"`
	Layout         string  `yaml:"layout"`
	Provider       string  `yaml:"provider"`
	IntraOpThreads int     `yaml:"intraOpThreads"`
	InterOpThreads int     `yaml:"interOpThreads"`
	Warmup         int     `yaml:"warmup"`

	FailSafeMargin int    `yaml:"failSafeMargin"`
	Overlay        string `yaml:"overlay"`
	ReplayDir      string `yaml:"replayDir"`
	ReplayPrefix   string `yaml:"replayPrefix"`
	MaxFrames      uint64 `yaml:"maxFrames"`

	MetricsAddr string `yaml:"metricsAddr"`
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`
	Profile     bool   `yaml:"profile"`
}

// DefaultConfig returns the configuration used when no file or flag overrides a key.
func DefaultConfig() Config {
	return Config{
		Model:               DefaultModel,
		WindowWidth:         64,
		WindowHeight:        128,
		Stride:              32,
		ConfidenceThreshold: 0.9,
		MaxWindowsPerFrame:  4000,
		BatchSize:           16,
		ColorOrder:          string(images.RGB),
		Layout:              "auto",
		Provider:            string(providers.CPUProviderBackend),
		Warmup:              1,
		Overlay:             OverlayTk,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load reads path over the defaults. Keys absent from the file keep their default values;
// unknown keys are rejected.
//
// Arguments:
// - path: YAML file. A missing DefaultPath yields the defaults; any other missing path is an error.
//
// Returns:
// - Config: The merged configuration. It is not validated.
// - error: An error if the file cannot be read or parsed.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultPath {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "read config %s", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Model == "" {
		return errors.New("model: path is required")
	}
	if c.WindowWidth < 1 || c.WindowHeight < 1 {
		return errors.Errorf("window %dx%d: must be positive", c.WindowWidth, c.WindowHeight)
	}
	if err := c.ScanConfig().Validate(); err != nil {
		return err
	}
	if c.BatchSize < 1 {
		return errors.Errorf("batchSize %d: must be at least 1", c.BatchSize)
	}
	if c.Warmup < 0 {
		return errors.Errorf("warmup %d: must not be negative", c.Warmup)
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return errors.New("intraOpThreads/interOpThreads: must not be negative")
	}
	if c.FailSafeMargin < 0 {
		return errors.Errorf("failSafeMargin %d: must not be negative", c.FailSafeMargin)
	}
	if c.ROI != nil {
		if err := c.ROI.Validate(); err != nil {
			return errors.Wrap(err, "roi")
		}
	}
	if _, err := images.ParseColorOrder(c.ColorOrder); err != nil {
		return errors.Wrap(err, "colorOrder")
	}
	if _, err := c.layout(); err != nil {
		return errors.Wrap(err, "layout")
	}
	if _, err := providers.ParseBackend(c.Provider); err != nil {
		return errors.Wrap(err, "provider")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Overlay {
	case OverlayTk, OverlayNone:
	case OverlayHighGUI:
		if c.ReplayDir == "" {
			return errors.New("overlay highgui: the opaque window would cover the captured screen, use it with replayDir")
		}
	default:
		return errors.Errorf("overlay %q: want tk, highgui or none", c.Overlay)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.Errorf("logFormat %q: want text or json", c.LogFormat)
	}
	return nil
}

// Warnings lists settings that are valid but leave every frame without candidate windows.
// The loop still runs and reports no detection.
func (c Config) Warnings() []string {
	var w []string
	if c.Stride < 1 {
		w = append(w, fmt.Sprintf("stride %d: no windows will be scanned", c.Stride))
	}
	if c.ROI != nil && !c.Window().Fits(c.ROI.Size()) {
		w = append(w, fmt.Sprintf("roi %v: smaller than the %dx%d window, no windows will be scanned", *c.ROI, c.WindowWidth, c.WindowHeight))
	}
	return w
}

// Window returns the classifier window size.
func (c Config) Window() images.Size {
	return images.Size{Width: c.WindowWidth, Height: c.WindowHeight}
}

// ScanConfig returns the scanner settings.
func (c Config) ScanConfig() detector.Config {
	return detector.Config{
		Stride:       c.Stride,
		Threshold:    float32(c.ConfidenceThreshold),
		MaxWindows:   c.MaxWindowsPerFrame,
		PyramidScale: c.PyramidScale,
	}
}

func (c Config) layout() (images.Layout, error) {
	if c.Layout == "" || strings.EqualFold(c.Layout, "auto") {
		return "", nil
	}
	return images.ParseLayout(c.Layout)
}

// ONNXOptions returns the classifier load options. Call Validate first.
func (c Config) ONNXOptions(logger *slog.Logger) (onnx.Options, error) {
	opts := onnx.DefaultOptions()
	opts.Window = c.Window()
	opts.BatchSize = c.BatchSize
	opts.Warmup = c.Warmup
	opts.Logger = logger

	var err error
	if opts.Order, err = images.ParseColorOrder(c.ColorOrder); err != nil {
		return opts, err
	}
	if opts.Layout, err = c.layout(); err != nil {
		return opts, err
	}
	if opts.Provider.Backend, err = providers.ParseBackend(c.Provider); err != nil {
		return opts, err
	}
	opts.Provider.IntraOpThreads = c.IntraOpThreads
	opts.Provider.InterOpThreads = c.InterOpThreads
	return opts, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, errors.Errorf("logLevel %q: want debug, info, warn or error", s)
	}
	return l, nil
}
