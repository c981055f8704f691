package util

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the trailing sequence number of the file name, or -1 when it has none.
	Frame int
}

// FrameFileName returns the harvester's file name for a frame, e.g. shot_00042.png.
// ext includes the leading dot.
func FrameFileName(prefix string, frame int, ext string) string {
	return fmt.Sprintf("%s_%05d%s", prefix, frame, ext)
}

// frameNumber extracts the trailing digits of a file name without its extension.
func frameNumber(name, ext string) int {
	stem := strings.TrimSuffix(name, ext)
	i := len(stem)
	for i > 0 && unicode.IsDigit(rune(stem[i-1])) {
		i--
	}
	n, err := strconv.Atoi(stem[i:])
	if err != nil {
		return -1
	}
	return n
}

// LoadDirectoryImageFiles reads all JPEG, PNG and WebP files from a directory.
//
// Files are ordered by their trailing frame number (as written by the harvester), then by path
// so unnumbered files keep a stable order.
//
// Arguments:
// - dir: Directory path containing image files.
// - prefix: Only files whose name starts with prefix are loaded. Empty loads all.
//
// Returns:
// - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir, prefix string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var images []ImageFile
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), prefix) {
			continue
		}

		ext := filepath.Ext(file.Name())
		switch strings.ToLower(ext) {
		case ".jpg", ".jpeg", ".png", ".webp":
			imgPath := filepath.Join(dir, file.Name())
			data, readErr := os.ReadFile(imgPath)
			if readErr != nil {
				return nil, readErr
			}
			images = append(images, ImageFile{
				Path:  imgPath,
				Data:  data,
				Frame: frameNumber(file.Name(), ext),
			})
		}
	}

	sort.SliceStable(images, func(i, j int) bool {
		if images[i].Frame != images[j].Frame {
			return images[i].Frame < images[j].Frame
		}
		return images[i].Path < images[j].Path
	})

	return images, nil
}
