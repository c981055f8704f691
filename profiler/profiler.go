// Package profiler - Rolling stage timings and runtime stats for the frame loop.
package profiler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/nvr-ai/player-overlay/controller"
)

// Operation names recorded from frame reports.
const (
	OpCapture = "capture"
	OpScan    = "scan"
	OpEmit    = "emit"
	OpFrame   = "frame"
)

// Metric names recorded from frame reports.
const (
	MetricWindowsEvaluated = "windows_evaluated"
	MetricFPS              = "fps"
)

// RuntimeProfiler tracks per-stage frame timings, custom metrics, and runtime memory.
//
// A background sampler reads runtime.MemStats every SampleInterval and a reporter logs a
// summary every ReportInterval. Recording methods are safe for concurrent use.
type RuntimeProfiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	maxSamples     int
	logger         *slog.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	startTime time.Time
	running   bool

	memStats    runtime.MemStats
	goroutines  int
	lastGCCount uint32

	metrics    map[string]*MetricTracker
	operations map[string]*TimeTracker
}

// MetricTracker keeps a rolling window of values plus all-time extremes.
type MetricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

func (t *MetricTracker) add(v float64, limit int) {
	if t.count == 0 || v < t.min {
		t.min = v
	}
	if t.count == 0 || v > t.max {
		t.max = v
	}
	t.values = append(t.values, v)
	t.sum += v
	if len(t.values) > limit {
		t.sum -= t.values[0]
		t.values = t.values[1:]
	}
	t.count++
}

// TimeTracker keeps a rolling window of durations plus all-time extremes.
type TimeTracker struct {
	durations []time.Duration
	total     time.Duration
	min       time.Duration
	max       time.Duration
	count     int64
}

func (t *TimeTracker) add(d time.Duration, limit int) {
	if t.count == 0 || d < t.min {
		t.min = d
	}
	if t.count == 0 || d > t.max {
		t.max = d
	}
	t.durations = append(t.durations, d)
	t.total += d
	if len(t.durations) > limit {
		t.total -= t.durations[0]
		t.durations = t.durations[1:]
	}
	t.count++
}

// ProfilingOptions configures the runtime profiler.
type ProfilingOptions struct {
	// ReportInterval specifies how often to log a report (default: 5s).
	ReportInterval time.Duration
	// SampleInterval specifies how often to read runtime stats (default: 500ms).
	SampleInterval time.Duration
	// MaxSamples bounds each rolling window (default: 600).
	MaxSamples int
	// Logger receives reports. Nil uses slog.Default().
	Logger *slog.Logger
}

// NewRuntimeProfiler creates a stopped profiler.
//
// Arguments:
// - opts: Intervals and window size; zero values take the defaults.
//
// Returns:
// - *RuntimeProfiler: Ready to record; call Start for background sampling and reports.
func NewRuntimeProfiler(opts ProfilingOptions) *RuntimeProfiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 5 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 500 * time.Millisecond
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &RuntimeProfiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		maxSamples:     opts.MaxSamples,
		logger:         opts.Logger,
		startTime:      time.Now(),
		metrics:        make(map[string]*MetricTracker),
		operations:     make(map[string]*TimeTracker),
	}
}

// Start launches the sampler and reporter. They stop with ctx or Stop. Calling Start on a
// running profiler does nothing.
func (rp *RuntimeProfiler) Start(ctx context.Context) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	if rp.running {
		return
	}
	rp.running = true
	rp.startTime = time.Now()

	ctx, rp.cancel = context.WithCancel(ctx)

	rp.wg.Add(2)
	go rp.every(ctx, rp.sampleInterval, rp.sample)
	go rp.every(ctx, rp.reportInterval, rp.emitStatusReport)
}

// Stop halts background work and waits for it to exit.
func (rp *RuntimeProfiler) Stop() {
	rp.mu.Lock()
	if !rp.running {
		rp.mu.Unlock()
		return
	}
	rp.running = false
	cancel := rp.cancel
	rp.mu.Unlock()

	cancel()
	rp.wg.Wait()
}

func (rp *RuntimeProfiler) every(ctx context.Context, interval time.Duration, fn func()) {
	defer rp.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (rp *RuntimeProfiler) sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	rp.mu.Lock()
	rp.memStats = ms
	rp.goroutines = runtime.NumGoroutine()
	rp.mu.Unlock()
}

// RecordMetric adds a value to the named metric.
func (rp *RuntimeProfiler) RecordMetric(name string, value float64) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	t, ok := rp.metrics[name]
	if !ok {
		t = &MetricTracker{}
		rp.metrics[name] = t
	}
	t.add(value, rp.maxSamples)
}

// RecordDuration adds a timing to the named operation.
func (rp *RuntimeProfiler) RecordDuration(name string, d time.Duration) {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	t, ok := rp.operations[name]
	if !ok {
		t = &TimeTracker{}
		rp.operations[name] = t
	}
	t.add(d, rp.maxSamples)
}

// StartOperation begins timing an operation.
//
// Returns:
// - A function to call when the operation completes.
//
// @example
//
//	done := rp.StartOperation("model_load")
//	clf, err := onnx.Load(path, opts)
//	done()
func (rp *RuntimeProfiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		rp.RecordDuration(name, time.Since(start))
	}
}

// ObserveFrame records the stage timings and counters of a completed frame.
func (rp *RuntimeProfiler) ObserveFrame(r controller.Report) {
	rp.RecordDuration(OpCapture, r.Capture)
	rp.RecordDuration(OpScan, r.Scan)
	rp.RecordDuration(OpEmit, r.Emit)
	rp.RecordDuration(OpFrame, r.Total)
	rp.RecordMetric(MetricWindowsEvaluated, float64(r.Evaluated))
	if r.FPS > 0 {
		rp.RecordMetric(MetricFPS, r.FPS)
	}
}

// Summary describes the rolling window of a metric.
type Summary struct {
	Count   int64
	Samples int
	Avg     float64
	Min     float64
	Max     float64
}

// TimingSummary describes the rolling window of an operation.
type TimingSummary struct {
	Count   int64
	Samples int
	Avg     time.Duration
	Min     time.Duration
	Max     time.Duration
}

// Stats is a point-in-time copy of the profiler state.
type Stats struct {
	Uptime     time.Duration
	Goroutines int
	HeapAlloc  uint64
	Sys        uint64
	NumGC      uint32
	Metrics    map[string]Summary
	Operations map[string]TimingSummary
}

// Snapshot returns the current statistics.
func (rp *RuntimeProfiler) Snapshot() Stats {
	rp.mu.RLock()
	defer rp.mu.RUnlock()

	s := Stats{
		Uptime:     time.Since(rp.startTime),
		Goroutines: rp.goroutines,
		HeapAlloc:  rp.memStats.HeapAlloc,
		Sys:        rp.memStats.Sys,
		NumGC:      rp.memStats.NumGC,
		Metrics:    make(map[string]Summary, len(rp.metrics)),
		Operations: make(map[string]TimingSummary, len(rp.operations)),
	}
	for name, t := range rp.metrics {
		if len(t.values) == 0 {
			continue
		}
		s.Metrics[name] = Summary{
			Count:   t.count,
			Samples: len(t.values),
			Avg:     t.sum / float64(len(t.values)),
			Min:     t.min,
			Max:     t.max,
		}
	}
	for name, t := range rp.operations {
		if len(t.durations) == 0 {
			continue
		}
		s.Operations[name] = TimingSummary{
			Count:   t.count,
			Samples: len(t.durations),
			Avg:     t.total / time.Duration(len(t.durations)),
			Min:     t.min,
			Max:     t.max,
		}
	}
	return s
}

// emitStatusReport logs one line per operation and metric, plus a runtime summary.
func (rp *RuntimeProfiler) emitStatusReport() {
	s := rp.Snapshot()

	rp.mu.Lock()
	newGC := s.NumGC - rp.lastGCCount
	rp.lastGCCount = s.NumGC
	rp.mu.Unlock()

	rp.logger.Info("profiler",
		"uptime", s.Uptime.Truncate(time.Millisecond),
		"goroutines", s.Goroutines,
		"heap", formatBytes(s.HeapAlloc),
		"sys", formatBytes(s.Sys),
		"gc", s.NumGC,
		"gc_new", newGC,
	)

	for _, name := range sortedKeys(s.Operations) {
		t := s.Operations[name]
		rp.logger.Info("profiler operation",
			"name", name,
			"avg", t.Avg.Truncate(time.Microsecond),
			"min", t.Min.Truncate(time.Microsecond),
			"max", t.Max.Truncate(time.Microsecond),
			"count", t.Count,
		)
	}
	for _, name := range sortedKeys(s.Metrics) {
		m := s.Metrics[name]
		rp.logger.Info("profiler metric",
			"name", name,
			"avg", m.Avg,
			"min", m.Min,
			"max", m.Max,
			"samples", m.Samples,
		)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
