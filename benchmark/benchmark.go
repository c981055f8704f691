// Package benchmark - Sweeps scan parameters over captured frames and records throughput.
package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/nvr-ai/player-overlay/common"
	"github.com/nvr-ai/player-overlay/controller"
	"github.com/nvr-ai/player-overlay/detector"
	"github.com/nvr-ai/player-overlay/images"
	"github.com/nvr-ai/player-overlay/inference"
	"github.com/pkg/errors"
)

// Scenario is one scan configuration to measure.
type Scenario struct {
	Name         string  `json:"name"         yaml:"name"`
	Stride       int     `json:"stride"       yaml:"stride"`
	BatchSize    int     `json:"batchSize"    yaml:"batchSize"`
	MaxWindows   int     `json:"maxWindows"   yaml:"maxWindows"`
	PyramidScale float64 `json:"pyramidScale" yaml:"pyramidScale"`
	Threshold    float32 `json:"threshold"    yaml:"threshold"`
	Iterations   int     `json:"iterations"   yaml:"iterations"`
	WarmupRuns   int     `json:"warmupRuns"   yaml:"warmupRuns"`
}

// ScanConfig returns the scanner settings of the scenario.
func (s Scenario) ScanConfig() detector.Config {
	return detector.Config{
		Stride:       s.Stride,
		Threshold:    s.Threshold,
		MaxWindows:   s.MaxWindows,
		PyramidScale: s.PyramidScale,
	}
}

// PerformanceMetrics captures the outcome of one scenario.
type PerformanceMetrics struct {
	Scenario         Scenario      `json:"scenario"`
	Timestamp        time.Time     `json:"timestamp"`
	TotalDuration    time.Duration `json:"total_duration"`
	CaptureDuration  time.Duration `json:"capture_duration"`
	ScanDuration     time.Duration `json:"scan_duration"`
	FramesPerSecond  float64       `json:"frames_per_second"`
	WindowsPerSecond float64       `json:"windows_per_second"`
	AvgWindows       float64       `json:"avg_windows"`
	TruncatedFrames  int           `json:"truncated_frames"`
	DetectionCount   int           `json:"detection_count"`
	ErrorRate        float64       `json:"error_rate"`
	MemoryStats      MemoryMetrics `json:"memory_stats"`
	NumCPU           int           `json:"num_cpu"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}

// Opener creates a classifier preferring batches of batchSize. The suite closes it after the
// scenario.
type Opener func(batchSize int) (inference.Classifier, error)

// Suite manages and executes benchmark scenarios.
type Suite struct {
	open      Opener
	capturer  controller.Capturer
	region    images.Region
	outputDir string
	logger    *slog.Logger

	mu        sync.RWMutex
	scenarios []Scenario
	results   []PerformanceMetrics
}

// NewSuite creates a benchmark suite.
//
// Arguments:
//   - open: Creates the classifier for each scenario.
//   - capturer: Frame source, typically a capture.Replay over harvested screenshots.
//   - region: Region grabbed for every iteration.
//   - outputDir: Where SaveResults writes JSON and CSV files.
//   - logger: Nil uses slog.Default().
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(open Opener, capturer controller.Capturer, region images.Region, outputDir string, logger *slog.Logger) *Suite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Suite{
		open:      open,
		capturer:  capturer,
		region:    region,
		outputDir: outputDir,
		logger:    logger,
	}
}

// AddScenario adds a scenario to the suite.
func (bs *Suite) AddScenario(scenarios ...Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenarios...)
}

// RunScenario measures a single scenario.
//
// Per-frame failures count toward the error rate. Model load and capture errors abort the
// scenario.
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if scenario.Iterations < 1 {
		return nil, errors.Errorf("scenario %s: iterations %d must be at least 1", scenario.Name, scenario.Iterations)
	}

	clf, err := bs.open(scenario.BatchSize)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
	}
	defer clf.Close()

	scanner, err := detector.NewScanner(clf, scenario.ScanConfig(), bs.logger)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, _, err := bs.frame(ctx, scanner); err != nil && (common.IsFatal(err) || ctx.Err() != nil) {
			return nil, errors.Wrapf(err, "scenario %s warmup", scenario.Name)
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
		NumCPU:    runtime.NumCPU(),
	}

	var windows, failures int
	start := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		res, timing, err := bs.frame(ctx, scanner)
		metrics.CaptureDuration += timing.capture
		metrics.ScanDuration += timing.scan
		if err != nil {
			if common.IsFatal(err) || ctx.Err() != nil {
				return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
			}
			failures++
			continue
		}
		windows += res.Stats.Evaluated
		if res.Stats.Truncated {
			metrics.TruncatedFrames++
		}
		if res.Found {
			metrics.DetectionCount++
		}
	}
	metrics.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	if secs := metrics.TotalDuration.Seconds(); secs > 0 {
		metrics.FramesPerSecond = float64(scenario.Iterations) / secs
		metrics.WindowsPerSecond = float64(windows) / secs
	}
	metrics.AvgWindows = float64(windows) / float64(scenario.Iterations)
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)
	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
	}
	return metrics, nil
}

type frameTiming struct {
	capture time.Duration
	scan    time.Duration
}

func (bs *Suite) frame(ctx context.Context, scanner *detector.Scanner) (detector.Result, frameTiming, error) {
	var timing frameTiming

	start := time.Now()
	img, err := bs.capturer.Grab(ctx, bs.region)
	timing.capture = time.Since(start)
	if err != nil {
		return detector.Result{}, timing, err
	}

	start = time.Now()
	res, err := scanner.Scan(ctx, img)
	timing.scan = time.Since(start)
	return res, timing, err
}

// RunAllScenarios executes every scenario, logs each outcome, then saves the results.
// A failed scenario is logged and skipped.
func (bs *Suite) RunAllScenarios(ctx context.Context) error {
	bs.mu.RLock()
	scenarios := append([]Scenario(nil), bs.scenarios...)
	bs.mu.RUnlock()

	for _, scenario := range scenarios {
		if err := ctx.Err(); err != nil {
			return err
		}
		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			bs.logger.Error("scenario failed", "scenario", scenario.Name, "error", err)
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		bs.logger.Info("scenario completed",
			"scenario", scenario.Name,
			"fps", fmt.Sprintf("%.2f", metrics.FramesPerSecond),
			"windows_per_second", fmt.Sprintf("%.0f", metrics.WindowsPerSecond),
		)
	}

	return bs.SaveResults()
}

// SaveResults writes benchmark_results_<ts>.json and benchmark_summary_<ts>.csv.
func (bs *Suite) SaveResults() error {
	results := bs.GetResults()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return errors.Wrap(err, "write results file")
	}

	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return errors.Wrap(err, "save summary CSV")
	}

	bs.logger.Info("results saved", "json", resultsFile, "csv", summaryFile)
	return nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(summaryHeader); err != nil {
		return err
	}
	for _, r := range results {
		if err := w.Write(summaryRow(r)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

var summaryHeader = []string{
	"Scenario", "Stride", "Batch", "Pyramid", "FPS", "Windows_per_s",
	"Avg_Windows", "Total_Duration_ms", "Detections", "Truncated", "Error_Rate",
}

func summaryRow(r PerformanceMetrics) []string {
	return []string{
		r.Scenario.Name,
		strconv.Itoa(r.Scenario.Stride),
		strconv.Itoa(r.Scenario.BatchSize),
		strconv.FormatFloat(r.Scenario.PyramidScale, 'f', 2, 64),
		strconv.FormatFloat(r.FramesPerSecond, 'f', 2, 64),
		strconv.FormatFloat(r.WindowsPerSecond, 'f', 0, 64),
		strconv.FormatFloat(r.AvgWindows, 'f', 1, 64),
		strconv.FormatFloat(float64(r.TotalDuration.Nanoseconds())/1e6, 'f', 2, 64),
		strconv.Itoa(r.DetectionCount),
		strconv.Itoa(r.TruncatedFrames),
		strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
	}
}

// GetResults returns all benchmark results
func (bs *Suite) GetResults() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}
