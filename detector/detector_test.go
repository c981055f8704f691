package detector

import (
	"context"
	"image"
	"testing"

	"github.com/nvr-ai/player-overlay/common"
	"github.com/nvr-ai/player-overlay/images"
	"github.com/nvr-ai/player-overlay/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var window = images.Size{Width: 64, Height: 128}

func defaultConfig() Config {
	return Config{Stride: 32, Threshold: 0.9, MaxWindows: 4000}
}

// TestScanFindsMarker verifies the end-to-end scan on an 800x600 region with one player.
func TestScanFindsMarker(t *testing.T) {
	frame := test.NewMockFrameGenerator(800, 600).GenerateMarkerFrame(image.Rect(320, 256, 384, 384))

	for _, batch := range []int{1, 7, 16, 64} {
		clf := test.NewStubClassifier(window, batch)
		s, err := NewScanner(clf, defaultConfig(), nil)
		require.NoError(t, err)

		res, err := s.Scan(context.Background(), frame)
		require.NoError(t, err)
		require.True(t, res.Found, "batch %d", batch)
		assert.Equal(t, common.BoundingBox{X1: 320, Y1: 256, X2: 384, Y2: 384}, res.Detection.Box)
		assert.InDelta(t, test.StubScale, res.Detection.Score, 1e-6)
		assert.Equal(t, 24*15, res.Stats.Evaluated)
		assert.False(t, res.Stats.Truncated)
		assert.Equal(t, 0, res.Stats.Failed)
		assert.Equal(t, 1, res.Stats.Levels)
		assert.Equal(t, 24*15, clf.Windows())
	}
}

// TestScanNoDetection verifies an empty frame reports nothing.
func TestScanNoDetection(t *testing.T) {
	frame := test.NewMockFrameGenerator(800, 600).GenerateStaticFrame()
	s, err := NewScanner(test.NewStubClassifier(window, 16), defaultConfig(), nil)
	require.NoError(t, err)

	res, err := s.Scan(context.Background(), frame)
	require.NoError(t, err)
	assert.False(t, res.Found)
}

// TestScanZeroStride verifies a stride that yields no windows scans to no detection.
func TestScanZeroStride(t *testing.T) {
	frame := test.NewMockFrameGenerator(800, 600).GenerateMarkerFrame(image.Rect(320, 256, 384, 384))
	for _, stride := range []int{0, -8} {
		clf := test.NewStubClassifier(window, 16)
		s, err := NewScanner(clf, Config{Stride: stride, Threshold: 0.9, MaxWindows: 4000}, nil)
		require.NoError(t, err, "stride %d", stride)

		res, err := s.Scan(context.Background(), frame)
		require.NoError(t, err)
		assert.False(t, res.Found)
		assert.Equal(t, 0, res.Stats.Evaluated)
		assert.Equal(t, 0, clf.Calls())
	}
}

// TestScannerCap verifies the enforced cap is exposed for reporting.
func TestScannerCap(t *testing.T) {
	s, err := NewScanner(test.NewStubClassifier(window, 16), Config{Stride: 32, Threshold: 0.9, MaxWindows: 123}, nil)
	require.NoError(t, err)
	assert.Equal(t, 123, s.Cap())
}

// TestScanRegionSmallerThanWindow verifies zero candidates is not an error.
func TestScanRegionSmallerThanWindow(t *testing.T) {
	frame := test.NewMockFrameGenerator(50, 100).GenerateStaticFrame()
	clf := test.NewStubClassifier(window, 16)
	s, err := NewScanner(clf, defaultConfig(), nil)
	require.NoError(t, err)

	res, err := s.Scan(context.Background(), frame)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, 0, res.Stats.Evaluated)
	assert.Equal(t, 0, clf.Calls())
}

// TestScanWindowCap verifies exactly cap windows are evaluated when more exist.
func TestScanWindowCap(t *testing.T) {
	small := images.Size{Width: 8, Height: 8}
	// 53 x 23 = 1219 candidate windows at stride 1.
	frame := test.NewMockFrameGenerator(60, 30).GenerateMarkerFrame(image.Rect(2, 0, 10, 8))

	for _, batch := range []int{1, 3, 16} {
		clf := test.NewStubClassifier(small, batch)
		s, err := NewScanner(clf, Config{Stride: 1, Threshold: 0.9, MaxWindows: 10}, nil)
		require.NoError(t, err)

		res, err := s.Scan(context.Background(), frame)
		require.NoError(t, err)
		assert.Equal(t, 10, res.Stats.Evaluated)
		assert.Equal(t, 10, clf.Windows())
		assert.True(t, res.Stats.Truncated)
		require.True(t, res.Found)
		assert.Equal(t, common.NewBoundingBox(2, 0, 8, 8), res.Detection.Box)
	}
}

// TestScanCapNotTruncatedWhenExact verifies hitting the cap on the last window is not truncation.
func TestScanCapNotTruncatedWhenExact(t *testing.T) {
	frame := test.NewMockFrameGenerator(64, 128).GenerateStaticFrame()
	s, err := NewScanner(test.NewStubClassifier(window, 4), Config{Stride: 32, Threshold: 0.9, MaxWindows: 1}, nil)
	require.NoError(t, err)

	res, err := s.Scan(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Evaluated)
	assert.False(t, res.Stats.Truncated)
}

// TestScanBatchFailureFallsBack verifies a failed batch is retried window by window.
func TestScanBatchFailureFallsBack(t *testing.T) {
	frame := test.NewMockFrameGenerator(800, 600).GenerateMarkerFrame(image.Rect(320, 256, 384, 384))
	clf := test.NewStubClassifier(window, 16)
	clf.BatchErr = errors.New("out of memory")

	s, err := NewScanner(clf, defaultConfig(), nil)
	require.NoError(t, err)

	res, err := s.Scan(context.Background(), frame)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, common.BoundingBox{X1: 320, Y1: 256, X2: 384, Y2: 384}, res.Detection.Box)
	assert.Equal(t, 0, res.Stats.Failed)
}

// TestScanSkipsFailedWindows verifies per-window failures are skipped, not fatal.
func TestScanSkipsFailedWindows(t *testing.T) {
	// The marker window is the only one with a perfect mean; failing it leaves nothing to report.
	frame := test.NewMockFrameGenerator(800, 600).GenerateMarkerFrame(image.Rect(320, 256, 384, 384))
	clf := test.NewStubClassifier(window, 8)
	clf.WindowErr = func(mean float32) error {
		if mean == 1 {
			return errors.New("bad window")
		}
		return nil
	}

	s, err := NewScanner(clf, defaultConfig(), nil)
	require.NoError(t, err)

	res, err := s.Scan(context.Background(), frame)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, 1, res.Stats.Failed)
	assert.Equal(t, 24*15, res.Stats.Evaluated)
}

// TestScanRejectsOutOfRangeScores verifies NaN and out-of-range scores are treated as failures.
func TestScanRejectsOutOfRangeScores(t *testing.T) {
	frame := test.NewMockFrameGenerator(800, 600).GenerateMarkerFrame(image.Rect(320, 256, 384, 384))
	clf := test.NewStubClassifier(window, 16)
	clf.ScoreFn = func(mean float32) float32 {
		if mean == 1 {
			return 1.5
		}
		return mean
	}

	s, err := NewScanner(clf, defaultConfig(), nil)
	require.NoError(t, err)

	res, err := s.Scan(context.Background(), frame)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, 1, res.Stats.Failed)
}

// TestScanModelLoadErrorIsFatal verifies a lazy shape failure aborts the scan.
func TestScanModelLoadErrorIsFatal(t *testing.T) {
	frame := test.NewMockFrameGenerator(800, 600).GenerateStaticFrame()
	clf := test.NewStubClassifier(window, 16)
	clf.FirstCallErr = errors.New("input shape mismatch")

	s, err := NewScanner(clf, defaultConfig(), nil)
	require.NoError(t, err)

	_, err = s.Scan(context.Background(), frame)
	var mle *common.ModelLoadError
	require.ErrorAs(t, err, &mle)
}

// TestScanCancelled verifies cancellation stops the scan between batches.
func TestScanCancelled(t *testing.T) {
	frame := test.NewMockFrameGenerator(800, 600).GenerateStaticFrame()
	clf := test.NewStubClassifier(window, 16)
	s, err := NewScanner(clf, defaultConfig(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Scan(ctx, frame)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, clf.Calls())
}

// TestScanPyramid verifies multi-scale scans visit every level and keep boxes inside the region.
func TestScanPyramid(t *testing.T) {
	frame := test.NewMockFrameGenerator(800, 600).GenerateMarkerFrame(image.Rect(300, 200, 450, 500))
	cfg := defaultConfig()
	cfg.PyramidScale = 1.5
	cfg.Stride = 8
	cfg.MaxWindows = 20000

	s, err := NewScanner(test.NewStubClassifier(window, 16), cfg, nil)
	require.NoError(t, err)

	res, err := s.Scan(context.Background(), frame)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Greater(t, res.Stats.Levels, 1)
	box := res.Detection.Box
	assert.True(t, box.Within(image.Rect(0, 0, 800, 600)))
	assert.True(t, box.ToRect().Overlaps(image.Rect(300, 200, 450, 500)))
}

// TestConfigValidate covers scan parameter checks.
func TestConfigValidate(t *testing.T) {
	assert.NoError(t, defaultConfig().Validate())

	bad := []Config{
		{Stride: 32, Threshold: 1.1, MaxWindows: 10},
		{Stride: 32, Threshold: 0.9, MaxWindows: 0},
		{Stride: 32, Threshold: 0.9, MaxWindows: 10, PyramidScale: 0.5},
	}
	for _, c := range bad {
		assert.Error(t, c.Validate())
	}
}
