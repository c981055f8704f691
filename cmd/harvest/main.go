// Command harvest saves periodic screenshots of one display for labeling and replay.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/chai2010/webp"
	"github.com/kbinani/screenshot"
	"github.com/nvr-ai/player-overlay/util"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

func main() {
	var (
		outDir   string
		prefix   string
		interval time.Duration
		display  int
		limit    int
		format   string
	)
	flag.StringVar(&outDir, "out", "screenshots", "Output directory")
	flag.StringVar(&prefix, "prefix", "shot", "File name prefix")
	flag.DurationVar(&interval, "interval", time.Second, "Time between screenshots")
	flag.IntVar(&display, "display", 0, "Display index to capture")
	flag.IntVar(&limit, "limit", 0, "Stop after this many screenshots (0 = until interrupted)")
	flag.StringVar(&format, "format", "png", "Output format: png (OpenCV) or webp (lossless)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var write writer
	switch format {
	case "png":
		write = writePNG
	case "webp":
		write = writeWebP
	default:
		fmt.Fprintf(os.Stderr, "harvest: unknown format %q\n", format)
		os.Exit(2)
	}

	if err := harvest(ctx, logger, write, "."+format, outDir, prefix, interval, display, limit); err != nil {
		fmt.Fprintf(os.Stderr, "harvest: %v\n", err)
		os.Exit(1)
	}
}

// writer saves one screenshot to path.
type writer func(img *image.RGBA, path string) error

func harvest(ctx context.Context, logger *slog.Logger, write writer, ext, outDir, prefix string, interval time.Duration, display, limit int) error {
	if n := screenshot.NumActiveDisplays(); display < 0 || display >= n {
		return errors.Errorf("display %d out of range, %d active", display, n)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", outDir)
	}

	next, err := nextFrame(outDir, prefix)
	if err != nil {
		return err
	}

	logger.Info("harvesting",
		"display", display,
		"bounds", screenshot.GetDisplayBounds(display).String(),
		"out", outDir,
		"interval", interval,
		"first", next,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	saved := 0
	for limit == 0 || saved < limit {
		path := filepath.Join(outDir, util.FrameFileName(prefix, next, ext))
		img, err := screenshot.CaptureDisplay(display)
		if err != nil {
			return errors.Wrapf(err, "capture display %d", display)
		}
		if err := write(img, path); err != nil {
			return err
		}
		logger.Info("saved", "path", path)
		next++
		saved++

		select {
		case <-ctx.Done():
			logger.Info("interrupted", "saved", saved)
			return nil
		case <-ticker.C:
		}
	}
	logger.Info("done", "saved", saved)
	return nil
}

// nextFrame returns the frame number following the highest one already saved in dir.
func nextFrame(dir, prefix string) (int, error) {
	existing, err := util.LoadDirectoryImageFiles(dir, prefix)
	if err != nil {
		return 0, errors.Wrapf(err, "scan %s", dir)
	}
	next := 0
	for _, f := range existing {
		if f.Frame >= next {
			next = f.Frame + 1
		}
	}
	return next, nil
}

func writePNG(img *image.RGBA, path string) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "convert screenshot")
	}
	defer mat.Close()

	if ok := gocv.IMWrite(path, mat); !ok {
		return errors.Errorf("write %s", path)
	}
	return nil
}

func writeWebP(img *image.RGBA, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := webp.Encode(f, img, &webp.Options{Lossless: true}); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	return f.Close()
}
