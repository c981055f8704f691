package capture

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"sync"

	// Registered for image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/nvr-ai/player-overlay/common"
	"github.com/nvr-ai/player-overlay/images"
	"github.com/nvr-ai/player-overlay/util"
	"github.com/pkg/errors"
)

// Replay serves previously harvested screenshots in a loop, standing in for the live desktop.
// Screenshots are treated as full-display captures with their top-left at (0, 0).
type Replay struct {
	frames []image.Image
	paths  []string

	mu   sync.Mutex
	next int
}

// NewReplay decodes every image in dir whose name starts with prefix.
//
// Arguments:
// - dir: Directory of screenshots, typically written by the harvester.
// - prefix: File name prefix filter; empty accepts every image.
// - logger: Receives the load summary. Nil uses slog.Default().
//
// Returns:
// - *Replay: A capturer cycling through the frames in file order.
// - error: An error if the directory holds no decodable images.
func NewReplay(dir, prefix string, logger *slog.Logger) (*Replay, error) {
	if logger == nil {
		logger = slog.Default()
	}
	files, err := util.LoadDirectoryImageFiles(dir, prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "read replay dir %s", dir)
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no images in %s", dir)
	}

	r := &Replay{}
	for _, f := range files {
		img, _, err := image.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", f.Path)
		}
		r.frames = append(r.frames, img)
		r.paths = append(r.paths, f.Path)
	}
	logger.Info("replay loaded", "dir", dir, "frames", len(r.frames))
	return r, nil
}

// Len returns the number of frames in the loop.
func (r *Replay) Len() int { return len(r.frames) }

// Bounds returns the size of the first screenshot with its origin at (0, 0).
func (r *Replay) Bounds() image.Rectangle {
	return image.Rectangle{Max: images.SizeOf(r.frames[0]).Point()}
}

// Grab crops region out of the next screenshot.
func (r *Replay) Grab(ctx context.Context, region images.Region) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	i := r.next
	r.next = (r.next + 1) % len(r.frames)
	r.mu.Unlock()

	frame := r.frames[i]
	rect := region.Rect().Add(frame.Bounds().Min)
	if !rect.In(frame.Bounds()) {
		return nil, &common.CaptureError{
			Region: region.Rect(),
			Err:    errors.Errorf("outside screenshot %s %v", r.paths[i], frame.Bounds()),
		}
	}
	return crop(frame, rect), nil
}

func crop(img image.Image, r image.Rectangle) image.Image {
	if s, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return s.SubImage(r)
	}
	return imaging.Crop(img, r)
}
