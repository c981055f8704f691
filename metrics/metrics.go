// Package metrics - Prometheus collectors fed by frame reports.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nvr-ai/player-overlay/controller"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "player_overlay"

// Metrics holds the frame loop collectors on a private registry.
type Metrics struct {
	Frames           prometheus.Counter
	WindowsEvaluated prometheus.Counter
	InferenceErrors  prometheus.Counter
	Detections       prometheus.Counter
	Clicks           prometheus.Counter
	PointerAborts    prometheus.Counter
	TruncatedFrames  prometheus.Counter

	FPS       prometheus.Gauge
	LastScore prometheus.Gauge

	FrameSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them, along with the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_total",
			Help: "Frames completed by the loop",
		}),
		WindowsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "windows_evaluated_total",
			Help: "Windows sent to the classifier",
		}),
		InferenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "inference_errors_total",
			Help: "Windows skipped because inference failed",
		}),
		Detections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "detections_total",
			Help: "Frames with a detection above the threshold",
		}),
		Clicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "clicks_total",
			Help: "Clicks issued on detections",
		}),
		PointerAborts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "pointer_aborts_total",
			Help: "Clicks blocked by the corner fail-safe",
		}),
		TruncatedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "truncated_frames_total",
			Help: "Frames that hit the window cap with windows left",
		}),
		FPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "fps",
			Help: "Last published frame rate",
		}),
		LastScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_score",
			Help: "Score of the most recent detection, 0 when the last frame had none",
		}),
		FrameSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "stage_seconds",
			Help:    "Time spent per frame stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		m.Frames, m.WindowsEvaluated, m.InferenceErrors, m.Detections,
		m.Clicks, m.PointerAborts, m.TruncatedFrames,
		m.FPS, m.LastScore, m.FrameSeconds,
		collectors.NewGoCollector(),
	)
	return m
}

// TrackState exports the controller state as a gauge read at scrape time.
func (m *Metrics) TrackState(state func() controller.State) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace, Name: "state",
			Help: "Controller state (0 idle through 7 stopped)",
		},
		func() float64 { return float64(state()) },
	))
}

// ObserveFrame updates the collectors from a frame report.
func (m *Metrics) ObserveFrame(r controller.Report) {
	m.Frames.Inc()
	m.WindowsEvaluated.Add(float64(r.Evaluated))
	m.InferenceErrors.Add(float64(r.Failed))
	if r.Truncated {
		m.TruncatedFrames.Inc()
	}
	if r.Detection != nil {
		m.Detections.Inc()
		m.LastScore.Set(float64(r.Detection.Score))
	} else {
		m.LastScore.Set(0)
	}
	if r.Clicked {
		m.Clicks.Inc()
	}
	if r.PointerAborted {
		m.PointerAborts.Inc()
	}
	if r.FPS > 0 {
		m.FPS.Set(r.FPS)
	}

	m.FrameSeconds.WithLabelValues("capture").Observe(r.Capture.Seconds())
	m.FrameSeconds.WithLabelValues("scan").Observe(r.Scan.Seconds())
	m.FrameSeconds.WithLabelValues("emit").Observe(r.Emit.Seconds())
	m.FrameSeconds.WithLabelValues("frame").Observe(r.Total.Seconds())
}

// Handler returns an HTTP handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "serve metrics on %s", addr)
	}
	return nil
}
