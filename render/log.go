package render

import (
	"context"
	"log/slog"

	"github.com/nvr-ai/player-overlay/controller"
)

// Log is a headless sink that reports presentations through slog.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a log sink. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Present logs detections at Info and empty frames at Debug.
func (l *Log) Present(ctx context.Context, p controller.Presentation) error {
	if p.Detection == nil {
		l.logger.DebugContext(ctx, "no player", "frame", p.Frame, "fps", p.FPS)
		return nil
	}
	l.logger.InfoContext(ctx, "player",
		"frame", p.Frame,
		"box", p.Detection.Box.String(),
		"score", p.Detection.Score,
		"fps", p.FPS,
	)
	return nil
}

// Close is a no-op.
func (l *Log) Close() error { return nil }
