package config

import (
	"flag"

	"github.com/nvr-ai/player-overlay/images"
	"github.com/pkg/errors"
)

// Overrides holds flag values that take precedence over the config file.
type Overrides struct {
	fs     *flag.FlagSet
	values Config
	roi    string
	path   string
}

// RegisterFlags defines one flag per config key on fs, plus -config.
//
// @example
//
//	ov := config.RegisterFlags(flag.CommandLine)
//	flag.Parse()
//	cfg, err := config.Load(ov.Path())
//	err = ov.Apply(&cfg)
func RegisterFlags(fs *flag.FlagSet) *Overrides {
	o := &Overrides{fs: fs, values: DefaultConfig()}
	v := &o.values

	fs.StringVar(&o.path, "config", DefaultPath, "YAML configuration file")
	fs.StringVar(&v.Model, "model", v.Model, "ONNX classifier path")
	fs.IntVar(&v.WindowWidth, "window-width", v.WindowWidth, "Classifier window width")
	fs.IntVar(&v.WindowHeight, "window-height", v.WindowHeight, "Classifier window height")
	fs.IntVar(&v.Stride, "stride", v.Stride, "Window step in pixels")
	fs.Float64Var(&v.ConfidenceThreshold, "threshold", v.ConfidenceThreshold, "Minimum score to report")
	fs.BoolVar(&v.EnableAct, "act", v.EnableAct, "Move the pointer to the detection and click")
	fs.StringVar(&o.roi, "roi", "", "Screen region left,top,width,height (default: primary display)")
	fs.IntVar(&v.MaxWindowsPerFrame, "max-windows", v.MaxWindowsPerFrame, "Window cap per frame")
	fs.IntVar(&v.BatchSize, "batch", v.BatchSize, "Windows per inference call")
	fs.Float64Var(&v.PyramidScale, "pyramid-scale", v.PyramidScale, "Downscale factor between pyramid levels, greater than 1 (0 disables)")
	fs.StringVar(&v.ColorOrder, "color-order", v.ColorOrder, "Model channel order: rgb or bgr")
	fs.StringVar(&v.Layout, "layout", v.Layout, "Model input layout: auto, hwc or chw")
	fs.StringVar(&v.Provider, "provider", v.Provider, "Execution provider: cpu, cuda, coreml or openvino")
	fs.IntVar(&v.IntraOpThreads, "intra-op-threads", v.IntraOpThreads, "Intra-op threads (0 = runtime default)")
	fs.IntVar(&v.InterOpThreads, "inter-op-threads", v.InterOpThreads, "Inter-op threads (0 = runtime default)")
	fs.IntVar(&v.Warmup, "warmup", v.Warmup, "Warmup inferences at load")
	fs.IntVar(&v.FailSafeMargin, "fail-safe-margin", v.FailSafeMargin, "Corner margin that disables clicking")
	fs.StringVar(&v.Overlay, "overlay", v.Overlay, "Overlay: tk, highgui (replay only) or none")
	fs.StringVar(&v.ReplayDir, "replay", v.ReplayDir, "Replay screenshots from this directory instead of the screen")
	fs.StringVar(&v.ReplayPrefix, "replay-prefix", v.ReplayPrefix, "Only replay files with this prefix")
	fs.Uint64Var(&v.MaxFrames, "max-frames", v.MaxFrames, "Stop after this many frames (0 = unlimited)")
	fs.StringVar(&v.MetricsAddr, "metrics-addr", v.MetricsAddr, "Serve Prometheus metrics on this address")
	fs.StringVar(&v.LogLevel, "log-level", v.LogLevel, "debug, info, warn or error")
	fs.StringVar(&v.LogFormat, "log-format", v.LogFormat, "text or json")
	fs.BoolVar(&v.Profile, "profile", v.Profile, "Log periodic runtime profiles")
	return o
}

// Path returns the -config value.
func (o *Overrides) Path() string { return o.path }

// Apply copies every flag that was set on the command line into c.
func (o *Overrides) Apply(c *Config) error {
	var err error
	v := o.values
	o.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			c.Model = v.Model
		case "window-width":
			c.WindowWidth = v.WindowWidth
		case "window-height":
			c.WindowHeight = v.WindowHeight
		case "stride":
			c.Stride = v.Stride
		case "threshold":
			c.ConfidenceThreshold = v.ConfidenceThreshold
		case "act":
			c.EnableAct = v.EnableAct
		case "roi":
			r, perr := images.ParseRegion(o.roi)
			if perr != nil {
				err = errors.Wrap(perr, "-roi")
				return
			}
			c.ROI = &r
		case "max-windows":
			c.MaxWindowsPerFrame = v.MaxWindowsPerFrame
		case "batch":
			c.BatchSize = v.BatchSize
		case "pyramid-scale":
			c.PyramidScale = v.PyramidScale
		case "color-order":
			c.ColorOrder = v.ColorOrder
		case "layout":
			c.Layout = v.Layout
		case "provider":
			c.Provider = v.Provider
		case "intra-op-threads":
			c.IntraOpThreads = v.IntraOpThreads
		case "inter-op-threads":
			c.InterOpThreads = v.InterOpThreads
		case "warmup":
			c.Warmup = v.Warmup
		case "fail-safe-margin":
			c.FailSafeMargin = v.FailSafeMargin
		case "overlay":
			c.Overlay = v.Overlay
		case "replay":
			c.ReplayDir = v.ReplayDir
		case "replay-prefix":
			c.ReplayPrefix = v.ReplayPrefix
		case "max-frames":
			c.MaxFrames = v.MaxFrames
		case "metrics-addr":
			c.MetricsAddr = v.MetricsAddr
		case "log-level":
			c.LogLevel = v.LogLevel
		case "log-format":
			c.LogFormat = v.LogFormat
		case "profile":
			c.Profile = v.Profile
		}
	})
	return err
}
