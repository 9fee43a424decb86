// Package metrics exports render counters in the Prometheus text format
// for the node-exporter textfile collector.
package metrics

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"montage/internal/logging"
	"montage/internal/render"
)

// Recorder implements render.Observer.
//
// Metrics:
//   - montage_renders_total{status}
//   - montage_chunks_total{state}
//   - montage_placeholders_total
//   - montage_effect_failures_total{kind}
//   - montage_render_duration_seconds
//   - montage_last_render_timestamp_seconds
type Recorder struct {
	registry     *prometheus.Registry
	renders      *prometheus.CounterVec
	chunks       *prometheus.CounterVec
	placeholders prometheus.Counter
	failures     *prometheus.CounterVec
	duration     prometheus.Histogram
	lastRender   prometheus.Gauge
	textfile     string
	logger       *slog.Logger
}

// NewRecorder returns a Recorder. When textfile is non-empty every
// observed render rewrites it.
func NewRecorder(textfile string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "montage_renders_total",
			Help: "Renders by final status",
		}, []string{"status"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "montage_chunks_total",
			Help: "Render chunks by outcome",
		}, []string{"state"}),
		placeholders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "montage_placeholders_total",
			Help: "Clips rendered from placeholders",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "montage_effect_failures_total",
			Help: "Recoverable clip failures by kind",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "montage_render_duration_seconds",
			Help:    "Wall time of whole renders",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		lastRender: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "montage_last_render_timestamp_seconds",
			Help: "Unix time the last render finished",
		}),
		textfile: strings.TrimSpace(textfile),
		logger:   logging.NewComponentLogger(logger, "metrics"),
	}
	r.registry.MustRegister(r.renders, r.chunks, r.placeholders, r.failures, r.duration, r.lastRender)
	return r
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }

// ObserveRender implements render.Observer.
func (r *Recorder) ObserveRender(report render.Report) {
	r.renders.WithLabelValues(string(report.Status)).Inc()
	for _, c := range report.Chunks {
		r.chunks.WithLabelValues(string(c.State)).Inc()
	}
	r.placeholders.Add(float64(len(report.PlaceholdersUsed)))
	for _, f := range report.Failures {
		kind := f.Kind
		if kind == "" {
			kind = "unknown"
		}
		r.failures.WithLabelValues(kind).Inc()
	}
	r.duration.Observe(report.Elapsed.Seconds())
	r.lastRender.Set(float64(report.Started.Add(report.Elapsed).Unix()))

	if r.textfile == "" {
		return
	}
	if err := r.Write(); err != nil {
		logging.WarnWithContext(r.logger, "metrics textfile not written", "metrics_write_failed",
			logging.String("path", r.textfile),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check metrics.textfile"),
			logging.String(logging.FieldImpact, "render metrics not exported"),
		)
	}
}

// Write renders the registry to the textfile.
func (r *Recorder) Write() error {
	if err := os.MkdirAll(filepath.Dir(r.textfile), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(r.textfile, r.registry)
}

var _ render.Observer = (*Recorder)(nil)
