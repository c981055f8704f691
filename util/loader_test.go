package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDirectoryImages(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"shot_00010.webp": "ten",
		"shot_00002.png":  "two",
		"shot_00001.PNG":  "one",
		"other_00000.png": "skip by prefix",
		"shot_notes.txt":  "skip by extension",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "shot_sub"), 0o755))

	images, err := LoadDirectoryImageFiles(dir, "shot")
	require.NoError(t, err)
	require.Len(t, images, 3)

	assert.Equal(t, []int{1, 2, 10}, []int{images[0].Frame, images[1].Frame, images[2].Frame})
	assert.Equal(t, "one", string(images[0].Data))
	assert.Equal(t, filepath.Join(dir, "shot_00010.webp"), images[2].Path)

	all, err := LoadDirectoryImageFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, 0, all[0].Frame)
}

func TestLoadDirectoryImagesMissing(t *testing.T) {
	_, err := LoadDirectoryImageFiles(filepath.Join(t.TempDir(), "nope"), "")
	assert.Error(t, err)
}

func TestFrameFileName(t *testing.T) {
	assert.Equal(t, "shot_00042.png", FrameFileName("shot", 42, ".png"))
	assert.Equal(t, "shot_00007.webp", FrameFileName("shot", 7, ".webp"))
	assert.Equal(t, 42, frameNumber("shot_00042.png", ".png"))
	assert.Equal(t, -1, frameNumber("cover.png", ".png"))
}
