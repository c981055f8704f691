package onnx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/player-overlay/common"
	"github.com/nvr-ai/player-overlay/images"
	"github.com/nvr-ai/player-overlay/inference/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

// testModelEnv names a real player model to exercise the runtime end to end.
const testModelEnv = "PLAYER_OVERLAY_TEST_MODEL"

// TestInspectInput covers layout inference and spatial size extraction.
func TestInspectInput(t *testing.T) {
	tests := []struct {
		name    string
		dims    []int64
		want    images.Layout
		expect  inputShape
		wantErr bool
	}{
		{
			name:   "keras channels-last dynamic batch",
			dims:   []int64{-1, 128, 64, 3},
			expect: inputShape{batch: 0, height: 128, width: 64, layout: images.LayoutHWC},
		},
		{
			name:   "channels-first fixed batch",
			dims:   []int64{1, 3, 128, 64},
			expect: inputShape{batch: 1, height: 128, width: 64, layout: images.LayoutCHW},
		},
		{
			name:   "dynamic spatial dims",
			dims:   []int64{-1, -1, -1, 3},
			expect: inputShape{layout: images.LayoutHWC},
		},
		{
			name:   "ambiguous resolved by preference",
			dims:   []int64{1, 3, 64, 3},
			want:   images.LayoutCHW,
			expect: inputShape{batch: 1, height: 64, width: 3, layout: images.LayoutCHW},
		},
		{name: "ambiguous without preference", dims: []int64{1, 3, 64, 3}, wantErr: true},
		{name: "conflicting preference", dims: []int64{1, 128, 64, 3}, want: images.LayoutCHW, wantErr: true},
		{name: "rank 2", dims: []int64{1, 24576}, wantErr: true},
		{name: "grayscale", dims: []int64{1, 128, 64, 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := inspectInput(tt.dims, tt.want)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

// TestInputShapeMatches verifies the eager window size check.
func TestInputShapeMatches(t *testing.T) {
	window := images.Size{Width: 64, Height: 128}

	assert.NoError(t, inputShape{height: 128, width: 64}.matches(window))
	assert.NoError(t, inputShape{}.matches(window))
	assert.NoError(t, inputShape{height: 128}.matches(window))
	assert.Error(t, inputShape{height: 64, width: 128}.matches(window))
	assert.Error(t, inputShape{width: 32}.matches(window))
}

// TestLoadMissingModel verifies a missing file is a model load error.
func TestLoadMissingModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.onnx")

	_, err := Load(path, DefaultOptions())
	require.Error(t, err)

	var mle *common.ModelLoadError
	require.ErrorAs(t, err, &mle)
	assert.Equal(t, path, mle.Path)
	assert.True(t, common.IsFatal(err))
}

// TestLoadInvalidOptions verifies options are rejected before touching the file.
func TestLoadInvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.BatchSize = 0

	_, err := Load("player.onnx", opts)
	var mle *common.ModelLoadError
	assert.ErrorAs(t, err, &mle)
}

// TestLoadAndInfer runs a real model when both the runtime and a model are available.
func TestLoadAndInfer(t *testing.T) {
	modelPath := os.Getenv(testModelEnv)
	if modelPath == "" {
		t.Skipf("%s not set", testModelEnv)
	}
	if libPath, err := providers.GetSharedLibPath(); err != nil {
		t.Skip(err)
	} else if _, err := os.Stat(libPath); err != nil {
		t.Skipf("onnxruntime library not available: %v", err)
	}

	clf, err := Load(modelPath, DefaultOptions())
	require.NoError(t, err)
	defer clf.Close()

	spec := clf.Spec()
	assert.Equal(t, images.Size{Width: 64, Height: 128}, spec.Window)
	assert.GreaterOrEqual(t, spec.MaxBatch, 1)

	shape := spec.Normalizer().Shape()
	one := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(make([]float32, shape.TotalSize())))
	scores, err := clf.Infer(context.Background(), one)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.True(t, scores[0] >= 0 && scores[0] <= 1)
}
