// Package providers - ONNX Runtime execution provider selection.
package providers

import (
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

const (
	// CPUProviderBackend runs on the default CPU execution provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CUDAProviderBackend uses NVIDIA CUDA for GPU acceleration.
	CUDAProviderBackend ProviderBackend = "cuda"
	// CoreMLProviderBackend uses Apple CoreML for macOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// OpenVINOProviderBackend uses Intel OpenVINO.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// ParseBackend parses a backend name. An empty string selects the CPU.
func ParseBackend(s string) (ProviderBackend, error) {
	switch b := ProviderBackend(strings.ToLower(s)); b {
	case "":
		return CPUProviderBackend, nil
	case CPUProviderBackend, CUDAProviderBackend, CoreMLProviderBackend, OpenVINOProviderBackend:
		return b, nil
	}
	return "", errors.Errorf("unsupported execution provider %q", s)
}

// Config selects and tunes the execution provider for a session.
type Config struct {
	// Backend specifies the backend to use.
	Backend ProviderBackend `yaml:"backend"`
	// IntraOpThreads parallelizes work inside a node. Zero lets the runtime decide.
	IntraOpThreads int `yaml:"intraOpThreads"`
	// InterOpThreads parallelizes independent nodes. Zero lets the runtime decide.
	InterOpThreads int `yaml:"interOpThreads"`

	CUDA     CUDAOptions     `yaml:"cuda"`
	CoreML   CoreMLOptions   `yaml:"coreml"`
	OpenVINO OpenVINOOptions `yaml:"openvino"`
}

// DefaultConfig returns a CPU configuration with runtime-chosen thread counts.
func DefaultConfig() Config {
	return Config{Backend: CPUProviderBackend}
}

// NewSessionOptions builds session options for the configured backend.
//
// The caller owns the returned options and must Destroy them once the session is created.
//
// Returns:
//   - *ort.SessionOptions: Options with threading, graph optimization and the execution
//     provider applied.
//   - error: An error if any option is rejected by the runtime.
func (c Config) NewSessionOptions() (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "create session options")
	}
	if err := c.apply(options); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func (c Config) apply(options *ort.SessionOptions) error {
	if c.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(c.IntraOpThreads); err != nil {
			return errors.Wrap(err, "set intra-op threads")
		}
	}
	if c.InterOpThreads > 0 {
		if err := options.SetInterOpNumThreads(c.InterOpThreads); err != nil {
			return errors.Wrap(err, "set inter-op threads")
		}
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "set graph optimization level")
	}

	switch c.Backend {
	case "", CPUProviderBackend:
		return nil
	case CUDAProviderBackend:
		cuda, err := c.CUDA.ToNativeProviderOptions()
		if err != nil {
			return errors.Wrap(err, "convert CUDA options")
		}
		defer cuda.Destroy()
		return errors.Wrap(options.AppendExecutionProviderCUDA(cuda), "enable CUDA")
	case CoreMLProviderBackend:
		return errors.Wrap(options.AppendExecutionProviderCoreML(c.CoreML.Flags()), "enable CoreML")
	case OpenVINOProviderBackend:
		return errors.Wrap(options.AppendExecutionProviderOpenVINO(c.OpenVINO.ToMap()), "enable OpenVINO")
	}
	return errors.Errorf("unsupported execution provider %q", c.Backend)
}
