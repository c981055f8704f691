package benchmark

import (
	"context"
	"encoding/csv"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/player-overlay/common"
	"github.com/nvr-ai/player-overlay/images"
	"github.com/nvr-ai/player-overlay/inference"
	"github.com/nvr-ai/player-overlay/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameSource serves one fixed frame, failing every failEvery-th grab when set.
type frameSource struct {
	frame     image.Image
	grabs     int
	failEvery int
	fatal     bool
}

func (f *frameSource) Grab(_ context.Context, _ images.Region) (image.Image, error) {
	f.grabs++
	if f.fatal {
		return nil, &common.CaptureError{Err: errors.New("display gone")}
	}
	return f.frame, nil
}

func newSuite(t *testing.T, src *frameSource) (*Suite, *[]*test.StubClassifier) {
	t.Helper()
	var opened []*test.StubClassifier
	open := func(batch int) (inference.Classifier, error) {
		clf := test.NewStubClassifier(images.Size{Width: 64, Height: 128}, batch)
		opened = append(opened, clf)
		return clf, nil
	}
	region := images.Region{Width: 800, Height: 600}
	return NewSuite(open, src, region, t.TempDir(), nil), &opened
}

// TestRunScenario verifies the metrics of a scan over a frame with one player marker.
func TestRunScenario(t *testing.T) {
	gen := test.NewMockFrameGenerator(800, 600)
	src := &frameSource{frame: gen.GenerateMarkerFrame(image.Rect(320, 256, 384, 384))}
	suite, opened := newSuite(t, src)

	scenario := NewScenarioBuilder("marker").WithIterations(3).WithWarmupRuns(1).WithBatchSize(7).Build()
	m, err := suite.RunScenario(context.Background(), scenario)
	require.NoError(t, err)

	// 24 columns x 15 rows at stride 32.
	assert.Equal(t, 360.0, m.AvgWindows)
	assert.Equal(t, 3, m.DetectionCount)
	assert.Zero(t, m.TruncatedFrames)
	assert.Zero(t, m.ErrorRate)
	assert.Positive(t, m.FramesPerSecond)
	assert.Equal(t, 4, src.grabs)

	require.Len(t, *opened, 1)
	assert.True(t, (*opened)[0].Closed())
	assert.Equal(t, 7, (*opened)[0].Spec().MaxBatch)
}

// TestRunScenarioTruncated verifies capped frames are counted.
func TestRunScenarioTruncated(t *testing.T) {
	gen := test.NewMockFrameGenerator(800, 600)
	suite, _ := newSuite(t, &frameSource{frame: gen.GenerateStaticFrame()})

	m, err := suite.RunScenario(context.Background(),
		NewScenarioBuilder("capped").WithMaxWindows(100).WithIterations(2).WithWarmupRuns(0).Build())
	require.NoError(t, err)
	assert.Equal(t, 100.0, m.AvgWindows)
	assert.Equal(t, 2, m.TruncatedFrames)
	assert.Zero(t, m.DetectionCount)
}

// TestRunScenarioFatal verifies capture errors abort the scenario.
func TestRunScenarioFatal(t *testing.T) {
	suite, _ := newSuite(t, &frameSource{fatal: true})

	_, err := suite.RunScenario(context.Background(), NewScenarioBuilder("fatal").Build())
	var ce *common.CaptureError
	assert.True(t, errors.As(err, &ce))

	_, err = suite.RunScenario(context.Background(), NewScenarioBuilder("none").WithIterations(0).Build())
	assert.Error(t, err)
}

// TestRunAllScenarios verifies failed scenarios are skipped and results are written.
func TestRunAllScenarios(t *testing.T) {
	gen := test.NewMockFrameGenerator(200, 200)
	suite, _ := newSuite(t, &frameSource{frame: gen.GenerateStaticFrame()})
	suite.region = images.Region{Width: 200, Height: 200}

	suite.AddScenario(
		NewScenarioBuilder("ok").WithIterations(2).WithWarmupRuns(0).Build(),
		NewScenarioBuilder("bad stride").WithStride(0).Build(),
	)
	require.NoError(t, suite.RunAllScenarios(context.Background()))

	results := suite.GetResults()
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Scenario.Name)

	csvFiles, err := filepath.Glob(filepath.Join(suite.outputDir, "benchmark_summary_*.csv"))
	require.NoError(t, err)
	require.Len(t, csvFiles, 1)

	f, err := os.Open(csvFiles[0])
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, summaryHeader, rows[0])
	assert.Equal(t, "ok", rows[1][0])

	jsonFiles, err := filepath.Glob(filepath.Join(suite.outputDir, "benchmark_results_*.json"))
	require.NoError(t, err)
	assert.Len(t, jsonFiles, 1)
}

func TestScenarioBuilder(t *testing.T) {
	s := NewScenarioBuilder("custom").
		WithStride(16).
		WithBatchSize(32).
		WithMaxWindows(1000).
		WithPyramid(1.5).
		WithThreshold(0.8).
		WithIterations(10).
		WithWarmupRuns(2).
		Build()

	assert.Equal(t, Scenario{
		Name: "custom", Stride: 16, BatchSize: 32, MaxWindows: 1000,
		PyramidScale: 1.5, Threshold: 0.8, Iterations: 10, WarmupRuns: 2,
	}, s)
	assert.NoError(t, s.ScanConfig().Validate())
}

// TestScenarioSetFile verifies a saved set loads back and omitted fields take defaults.
func TestScenarioSetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stride.yaml")
	require.NoError(t, SaveScenarioSet(StrideScenarios(), path))

	set, err := LoadScenarioSet(path)
	require.NoError(t, err)
	assert.Equal(t, StrideScenarios(), set)

	require.NoError(t, os.WriteFile(path, []byte("name: partial\nscenarios:\n  - name: tight\n    stride: 4\n"), 0o644))
	set, err = LoadScenarioSet(path)
	require.NoError(t, err)
	require.Len(t, set.Scenarios, 1)
	assert.Equal(t, 4, set.Scenarios[0].Stride)
	assert.Equal(t, 16, set.Scenarios[0].BatchSize)
	assert.Equal(t, float32(0.9), set.Scenarios[0].Threshold)
}

func TestPredefinedSets(t *testing.T) {
	for _, set := range []*ScenarioSet{QuickScenarios(), StrideScenarios(), PyramidScenarios()} {
		assert.NotEmpty(t, set.Scenarios, set.Name)
		for _, s := range set.Scenarios {
			assert.NoError(t, s.ScanConfig().Validate(), s.Name)
		}
	}
}
