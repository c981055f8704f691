package profiler

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/nvr-ai/player-overlay/controller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestObserveFrame verifies frame reports feed the stage timings and metrics.
func TestObserveFrame(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{})

	rp.ObserveFrame(controller.Report{
		Counters: controller.Counters{Frame: 1, Evaluated: 10},
		Capture:  2 * time.Millisecond,
		Scan:     30 * time.Millisecond,
		Emit:     time.Millisecond,
		Total:    33 * time.Millisecond,
	})
	rp.ObserveFrame(controller.Report{
		Counters: controller.Counters{Frame: 2, Evaluated: 20},
		FPS:      25,
		Capture:  4 * time.Millisecond,
		Scan:     50 * time.Millisecond,
		Emit:     time.Millisecond,
		Total:    55 * time.Millisecond,
	})

	s := rp.Snapshot()
	require.Contains(t, s.Operations, OpScan)
	scan := s.Operations[OpScan]
	assert.Equal(t, int64(2), scan.Count)
	assert.Equal(t, 40*time.Millisecond, scan.Avg)
	assert.Equal(t, 30*time.Millisecond, scan.Min)
	assert.Equal(t, 50*time.Millisecond, scan.Max)
	assert.Len(t, s.Operations, 4)

	windows := s.Metrics[MetricWindowsEvaluated]
	assert.Equal(t, 15.0, windows.Avg)
	assert.Equal(t, 2, windows.Samples)

	// FPS before the first publish is not recorded.
	fps := s.Metrics[MetricFPS]
	assert.Equal(t, int64(1), fps.Count)
	assert.Equal(t, 25.0, fps.Avg)
}

// TestRollingWindow verifies old samples fall out of the average but not the extremes.
func TestRollingWindow(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{MaxSamples: 3})
	for _, v := range []float64{100, 1, 2, 3} {
		rp.RecordMetric("score", v)
	}

	m := rp.Snapshot().Metrics["score"]
	assert.Equal(t, 3, m.Samples)
	assert.Equal(t, int64(4), m.Count)
	assert.Equal(t, 2.0, m.Avg)
	assert.Equal(t, 1.0, m.Min)
	assert.Equal(t, 100.0, m.Max)
}

// TestStartOperation verifies the returned func records a duration.
func TestStartOperation(t *testing.T) {
	rp := NewRuntimeProfiler(ProfilingOptions{})
	done := rp.StartOperation("model_load")
	done()

	op, ok := rp.Snapshot().Operations["model_load"]
	require.True(t, ok)
	assert.Equal(t, int64(1), op.Count)
	assert.GreaterOrEqual(t, op.Min, time.Duration(0))
}

// TestStartStop verifies background reporting logs and Stop returns.
func TestStartStop(t *testing.T) {
	var buf syncBuffer
	rp := NewRuntimeProfiler(ProfilingOptions{
		ReportInterval: 5 * time.Millisecond,
		SampleInterval: time.Millisecond,
		Logger:         slog.New(slog.NewTextHandler(&buf, nil)),
	})
	rp.RecordDuration(OpFrame, time.Millisecond)

	rp.Start(context.Background())
	rp.Start(context.Background())
	assert.Eventually(t, func() bool {
		return bytes.Contains(buf.Bytes(), []byte("profiler operation"))
	}, time.Second, 5*time.Millisecond)
	rp.Stop()
	rp.Stop()

	assert.Positive(t, rp.Snapshot().Goroutines)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
}
